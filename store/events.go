package store

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpNotice carries application notices that are not row changes, e.g. a link handed over the LAN.
	OpNotice Op = "notice"
)

// Event tells observers that a table changed. Observers re-query what they show.
type Event struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	Data  string    `json:"data,omitempty"`
	At    time.Time `json:"at"`
}

// Bus fans events out to subscribers. A slow subscriber drops events rather
// than blocking writers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered channel and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// RegisterCallbacks publishes an Event after every successful create, update
// and delete. Writes made through Transaction are held until it commits.
func RegisterCallbacks(db *gorm.DB, bus *Bus) error {
	emit := func(op Op) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			if tx.Error != nil || tx.Statement == nil || tx.Statement.Table == "" {
				return
			}
			if tx.Statement.RowsAffected == 0 {
				return
			}
			e := Event{Table: tx.Statement.Table, Op: op}
			if p := pendingFrom(tx.Statement.Context); p != nil {
				p.add(bus, e)
				return
			}
			bus.Publish(e)
		}
	}

	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("theo:emit_create", emit(OpCreate)); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("theo:emit_update", emit(OpUpdate)); err != nil {
		return err
	}
	return cb.Delete().After("gorm:delete").Register("theo:emit_delete", emit(OpDelete))
}

type pendingKey struct{}

// pending holds the events of one transaction until it commits.
type pending struct {
	mu     sync.Mutex
	bus    *Bus
	events []Event
}

func pendingFrom(ctx context.Context) *pending {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(pendingKey{}).(*pending)
	return p
}

func (p *pending) add(bus *Bus, e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bus = bus
	p.events = append(p.events, e)
}

func (p *pending) flush() {
	p.mu.Lock()
	events, bus := p.events, p.bus
	p.events = nil
	p.mu.Unlock()
	for _, e := range events {
		bus.Publish(e)
	}
}

// Transaction runs fc in a database transaction. Subscribers hear about its
// writes only after commit; a rollback publishes nothing. A nested call joins
// the outer transaction's events.
func Transaction(ctx context.Context, db *gorm.DB, fc func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if pendingFrom(ctx) != nil {
		return db.WithContext(ctx).Transaction(fc)
	}

	p := &pending{}
	if err := db.WithContext(context.WithValue(ctx, pendingKey{}, p)).Transaction(fc); err != nil {
		return err
	}
	p.flush()
	return nil
}
