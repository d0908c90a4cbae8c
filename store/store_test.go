package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"theo-challengers/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func memoryDSN(t *testing.T) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x", nil, nil)
	require.Error(t, err)
}

func TestCallbacksPublishChanges(t *testing.T) {
	bus := NewBus()
	events, cancel := bus.Subscribe(16)
	defer cancel()

	db, err := Open("sqlite", memoryDSN(t), bus, nil)
	require.NoError(t, err)

	p := models.Player{Nickname: "Ana"}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Model(&p).Update("coins", 5).Error)
	require.NoError(t, db.Delete(&p).Error)

	var got []Event
	for len(got) < 3 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("expected 3 events, got %d", len(got))
		}
	}
	require.Equal(t, Event{Table: "players", Op: OpCreate}, Event{Table: got[0].Table, Op: got[0].Op})
	require.Equal(t, OpUpdate, got[1].Op)
	require.Equal(t, OpDelete, got[2].Op)
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	events, cancel := bus.Subscribe(1)

	bus.Publish(Event{Table: "a"})
	bus.Publish(Event{Table: "b"})

	e := <-events
	require.Equal(t, "a", e.Table)
	require.False(t, e.At.IsZero())

	cancel()
	cancel()
	_, open := <-events
	require.False(t, open)

	// publishing after cancel must not panic
	bus.Publish(Event{Table: "c"})
}

func TestReset(t *testing.T) {
	db, err := Open("sqlite", memoryDSN(t), nil, nil)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Player{Nickname: "Ana"}).Error)
	require.NoError(t, db.Create(&models.Challenge{UUID: "u", ReceiverID: "r", Title: "t"}).Error)

	require.NoError(t, Reset(db))

	var n int64
	require.NoError(t, db.Model(&models.Player{}).Count(&n).Error)
	require.Zero(t, n)
	require.NoError(t, db.Model(&models.Challenge{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestTransactionPublishesAfterCommit(t *testing.T) {
	bus := NewBus()
	events, cancel := bus.Subscribe(16)
	defer cancel()

	db, err := Open("sqlite", memoryDSN(t), bus, nil)
	require.NoError(t, err)
	ctx := context.Background()

	err = Transaction(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Player{Nickname: "Ana"}).Error; err != nil {
			return err
		}
		select {
		case e := <-events:
			t.Fatalf("event %s/%s published before commit", e.Table, e.Op)
		default:
		}
		return nil
	})
	require.NoError(t, err)

	select {
	case e := <-events:
		require.Equal(t, "players", e.Table)
		require.Equal(t, OpCreate, e.Op)
	case <-time.After(time.Second):
		t.Fatal("no event after commit")
	}
}

func TestTransactionRollbackPublishesNothing(t *testing.T) {
	bus := NewBus()
	events, cancel := bus.Subscribe(16)
	defer cancel()

	db, err := Open("sqlite", memoryDSN(t), bus, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Transaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Player{Nickname: "Ana"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, db.Model(&models.Player{}).Count(&n).Error)
	require.Zero(t, n)

	// a later plain write still publishes, and is the only event seen
	require.NoError(t, db.Create(&models.Challenge{UUID: "u", ReceiverID: "r", Title: "t"}).Error)
	select {
	case e := <-events:
		require.Equal(t, "challenges", e.Table)
	case <-time.After(time.Second):
		t.Fatal("no event for plain write")
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event %s/%s", e.Table, e.Op)
	default:
	}
}
