package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChallengeItem is an unsent challenge in a player's inventory.
// It is destroyed when shared and restored if the share is rolled back.
type ChallengeItem struct {
	ID          string `gorm:"primaryKey" json:"id"`
	OwnerID     string `gorm:"index;not null" json:"owner_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Cost        int    `json:"cost"`
	Icon        string `gorm:"size:16" json:"icon"`
}

func (i *ChallengeItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
