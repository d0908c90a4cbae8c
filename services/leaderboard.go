package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"theo-challengers/codec"
	"theo-challengers/models"
	"theo-challengers/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultGossipLimit = 10

// LeaderboardService keeps the gossiped scoreboard. It only ever writes the
// leaderboard_entries table.
type LeaderboardService struct {
	DB    *gorm.DB
	Log   *zap.Logger
	Limit int
	Now   func() time.Time
}

func NewLeaderboardService(db *gorm.DB, log *zap.Logger, limit int) *LeaderboardService {
	if limit <= 0 {
		limit = DefaultGossipLimit
	}
	return &LeaderboardService{DB: db, Log: log, Limit: limit, Now: time.Now}
}

// MergeIncoming folds everything a payload says about scores into the local
// table: first the peer that sent it, then ourselves, then the gossip batch.
func (s *LeaderboardService) MergeIncoming(ctx context.Context, payload codec.GossipCarrier, local *models.Player) error {
	now := s.Now().UTC()

	return store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		if peer, score := payload.Peer(); score != nil && NormalizeNickname(peer) != "" && !SameNickname(peer, local.Nickname) {
			if err := upsertEntry(tx, peer, *score, now, false); err != nil {
				return err
			}
		}

		if err := upsertEntry(tx, local.Nickname, local.Score, now, true); err != nil {
			return err
		}

		skipped := 0
		for _, e := range payload.GossipEntries() {
			if e.Score == nil || SameNickname(e.Nickname, local.Nickname) {
				skipped++
				continue
			}
			at := now
			if e.UpdatedAt != nil {
				at = e.UpdatedAt.UTC()
			}
			if err := upsertEntry(tx, e.Nickname, *e.Score, at, false); err != nil {
				return err
			}
		}
		if skipped > 0 {
			s.Log.Debug("[GOSSIP] skipped entries", zap.Int("count", skipped))
		}
		return nil
	})
}

// RecordSelf writes the local player's current score unconditionally.
func (s *LeaderboardService) RecordSelf(ctx context.Context, p *models.Player, at time.Time) error {
	return upsertEntry(s.DB.WithContext(ctx), p.Nickname, p.Score, at.UTC(), true)
}

// upsertEntry inserts unknown nicknames. An existing row is only overwritten
// when the score differs or the incoming timestamp is strictly newer, unless force is set.
func upsertEntry(tx *gorm.DB, nickname string, score int, at time.Time, force bool) error {
	nickname = NormalizeNickname(nickname)
	if nickname == "" {
		return nil
	}

	var existing models.LeaderboardEntry
	err := tx.Where("nickname = ?", nickname).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry := models.LeaderboardEntry{Nickname: nickname, Score: score, UpdatedAt: at}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "nickname"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&entry).Error; err != nil {
			return fmt.Errorf("insert leaderboard entry %q: %w", nickname, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load leaderboard entry %q: %w", nickname, err)
	}

	if !force && existing.Score == score && !at.After(existing.UpdatedAt) {
		return nil
	}
	if err := tx.Model(&existing).Updates(map[string]any{"score": score, "updated_at": at}).Error; err != nil {
		return fmt.Errorf("update leaderboard entry %q: %w", nickname, err)
	}
	return nil
}

// TopEntries returns the highest scores. The same slice is what goes out as gossip.
func (s *LeaderboardService) TopEntries(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.Limit
	}
	var entries []models.LeaderboardEntry
	err := s.DB.WithContext(ctx).
		Order("score DESC").
		Order("updated_at DESC").
		Order("nickname ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("top entries: %w", err)
	}
	return entries, nil
}

// GossipBatch is TopEntries in wire form.
func (s *LeaderboardService) GossipBatch(ctx context.Context) ([]codec.GossipEntry, error) {
	entries, err := s.TopEntries(ctx, s.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]codec.GossipEntry, 0, len(entries))
	for _, e := range entries {
		score := e.Score
		at := e.UpdatedAt.UTC()
		out = append(out, codec.GossipEntry{Nickname: e.Nickname, Score: &score, UpdatedAt: &at})
	}
	return out, nil
}
