package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SentChallengeStatus string

const (
	SentChallengeStatusPending  SentChallengeStatus = "pending"
	SentChallengeStatusAccepted SentChallengeStatus = "accepted"
	SentChallengeStatusRejected SentChallengeStatus = "rejected"
)

// SentChallenge is the sender-side record of a challenge in flight.
// UUID is the cross-device correlation key and is never reused.
type SentChallenge struct {
	ID          string              `gorm:"primaryKey" json:"id"`
	UUID        string              `gorm:"column:uuid;uniqueIndex;not null" json:"uuid"`
	SenderID    string              `gorm:"index;not null" json:"sender_id"`
	Title       string              `gorm:"not null" json:"title"`
	Description string              `json:"description"`
	Points      int                 `json:"points"`
	Message     string              `gorm:"type:text" json:"message"`
	CreatedAt   time.Time           `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	ExpiryCost  int                 `json:"expiry_cost" gorm:"default:0"`
	ClaimedBy   *string             `json:"claimed_by,omitempty"`
	Status      SentChallengeStatus `gorm:"not null;default:'pending';index" json:"status"`
}

func (s *SentChallenge) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsExpired is display metadata only; an expired pending challenge can still be claimed.
func (s *SentChallenge) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
