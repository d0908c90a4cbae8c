package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Player is the local profile. Exactly one row represents "me" on a device.
type Player struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Nickname string `gorm:"uniqueIndex;not null" json:"nickname"`

	Coins int `json:"coins" gorm:"default:0"`
	// Score is the monthly figure and is zeroed on reset; LifetimeScore only grows.
	Score         int `json:"score" gorm:"default:0"`
	LifetimeScore int `json:"lifetime_score" gorm:"default:0"`
	Streak        int `json:"streak" gorm:"default:0"`

	LastMonthlyReset string `json:"last_monthly_reset"` // "2006-01"
	LastWeeklyBonus  string `json:"last_weekly_bonus"`  // ISO week, "2006-W01"
	LastDailyBonus   string `json:"last_daily_bonus"`   // "2006-01-02"
	LastShopUpdate   string `json:"last_shop_update"`   // "2006-01-02"

	ShopItems    []CatalogChallenge `gorm:"serializer:json" json:"shop_items"`
	Badges       []string           `gorm:"serializer:json" json:"badges"`
	TutorialSeen bool               `json:"tutorial_seen" gorm:"default:false"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Player) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}
