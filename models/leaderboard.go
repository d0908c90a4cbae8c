package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaderboardEntry is a gossiped view of another player's score.
// UpdatedAt is protocol data carried between devices, so GORM must not stamp it.
type LeaderboardEntry struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Nickname  string    `gorm:"uniqueIndex;not null" json:"nickname"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false;index" json:"updated_at"`
}

func (e *LeaderboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
