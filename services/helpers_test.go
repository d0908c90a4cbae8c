package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"theo-challengers/codec"
	"theo-challengers/config"
	"theo-challengers/models"
	"theo-challengers/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// device is one phone: its own store, its own player.
type device struct {
	db          *gorm.DB
	bus         *store.Bus
	player      *models.Player
	players     *PlayerService
	leaderboard *LeaderboardService
	inventory   *InventoryService
	badges      *BadgeService
	challenges  *ChallengeService
	proximity   *ProximityService
	dispatcher  *Dispatcher
}

func openDB(t *testing.T, suffix string) *gorm.DB {
	t.Helper()
	return openBusDB(t, suffix, nil)
}

func openBusDB(t *testing.T, suffix string, bus *store.Bus) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name() + "_" + suffix)
	db, err := store.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), bus, nil)
	require.NoError(t, err)
	return db
}

func newDevice(t *testing.T, nickname string) *device {
	t.Helper()
	bus := store.NewBus()
	db := openBusDB(t, nickname, bus)
	log := zap.NewNop()

	d := &device{db: db, bus: bus}
	d.leaderboard = NewLeaderboardService(db, log, DefaultGossipLimit)
	d.players = NewPlayerService(db, log, d.leaderboard)
	d.inventory = NewInventoryService(db, log, DefaultInventoryLimit)
	d.badges = NewBadgeService(db, log)
	d.challenges = NewChallengeService(db, log, codec.Linker{Base: config.DefaultShareBase}, d.leaderboard, d.inventory)
	d.proximity = NewProximityService(d.challenges)
	d.dispatcher = NewDispatcher(d.challenges, d.proximity)

	p, err := d.players.EnsurePlayer(context.Background(), nickname)
	require.NoError(t, err)
	d.player = p
	return d
}

func (d *device) set(t *testing.T, column string, value any) {
	t.Helper()
	require.NoError(t, d.db.Model(&models.Player{}).Where("id = ?", d.player.ID).Update(column, value).Error)
	require.NoError(t, d.players.Reload(context.Background(), d.player))
}

func (d *device) stock(t *testing.T, title string, points int) *models.ChallengeItem {
	t.Helper()
	item := &models.ChallengeItem{OwnerID: d.player.ID, Title: title, Description: title + ".desc", Points: points, Cost: 1, Icon: "⚡"}
	require.NoError(t, d.db.Create(item).Error)
	return item
}

func (d *device) received(t *testing.T, id string, points, reward int) *models.Challenge {
	t.Helper()
	c := &models.Challenge{UUID: id, ReceiverID: d.player.ID, Title: "t", Points: points, Reward: reward, FromPlayer: "Someone"}
	require.NoError(t, d.db.Create(c).Error)
	return c
}

func count(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// failingLinks renders everything except exchange payloads.
type failingLinks struct {
	codec.Linker
}

func (failingLinks) Link(codec.Payload) (string, error) {
	return "", errors.New("share sheet unavailable")
}

func intp(v int) *int { return &v }
