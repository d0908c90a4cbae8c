package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Challenge is the receiver-side record. CompletedAt == nil means active.
type Challenge struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	UUID        string     `gorm:"column:uuid;uniqueIndex;not null" json:"uuid"`
	ReceiverID  string     `gorm:"index;not null" json:"receiver_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Reward      int        `json:"reward"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FromPlayer  string     `json:"from_player"`
	Message     string     `gorm:"type:text" json:"message"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Challenge) IsCompleted() bool {
	return c.CompletedAt != nil
}
