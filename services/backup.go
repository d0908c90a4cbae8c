package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"theo-challengers/models"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Uploader stores an object remotely (R2 in production).
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// Snapshot is a full export of the local replica.
type Snapshot struct {
	Version     int                       `json:"version"`
	ExportedAt  time.Time                 `json:"exported_at"`
	Player      *models.Player            `json:"player"`
	Inventory   []models.ChallengeItem    `json:"inventory"`
	Sent        []models.SentChallenge    `json:"sent"`
	Challenges  []models.Challenge        `json:"challenges"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
}

type BackupService struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Uploader Uploader
	Now      func() time.Time
}

func NewBackupService(db *gorm.DB, log *zap.Logger, uploader Uploader) *BackupService {
	return &BackupService{DB: db, Log: log, Uploader: uploader, Now: time.Now}
}

func (s *BackupService) Export(ctx context.Context, p *models.Player) (*Snapshot, error) {
	db := s.DB.WithContext(ctx)
	snap := &Snapshot{Version: 1, ExportedAt: s.Now().UTC(), Player: p}

	if err := db.Where("owner_id = ?", p.ID).Find(&snap.Inventory).Error; err != nil {
		return nil, fmt.Errorf("export inventory: %w", err)
	}
	if err := db.Where("sender_id = ?", p.ID).Find(&snap.Sent).Error; err != nil {
		return nil, fmt.Errorf("export sent: %w", err)
	}
	if err := db.Where("receiver_id = ?", p.ID).Find(&snap.Challenges).Error; err != nil {
		return nil, fmt.Errorf("export challenges: %w", err)
	}
	if err := db.Order("score DESC").Find(&snap.Leaderboard).Error; err != nil {
		return nil, fmt.Errorf("export leaderboard: %w", err)
	}
	return snap, nil
}

// ObjectKey is backups/<nickname-slug>/<timestamp>.json
func ObjectKey(nickname string, at time.Time) string {
	name := slug.Make(nickname)
	if name == "" {
		name = "player"
	}
	return fmt.Sprintf("backups/%s/%s.json", name, at.UTC().Format("20060102T150405Z"))
}

// Run exports and uploads; it returns the object key.
func (s *BackupService) Run(ctx context.Context, p *models.Player) (string, error) {
	snap, err := s.Export(ctx, p)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := ObjectKey(p.Nickname, snap.ExportedAt)
	if err := s.Uploader.Upload(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	s.Log.Info("[BACKUP] ✅ snapshot uploaded", zap.String("key", key), zap.Int("bytes", len(body)))
	return key, nil
}
