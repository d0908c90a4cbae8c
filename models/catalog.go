package models

import "time"

// CatalogChallenge is a purchasable challenge template.
type CatalogChallenge struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Cost        int    `json:"cost"`
	Reward      int    `json:"reward"`
	Icon        string `json:"icon"`
}

var ChallengeCatalog = []CatalogChallenge{
	{Title: "challenges.first_comment.title", Description: "challenges.first_comment.desc", Points: 1, Cost: 1, Reward: 1, Icon: "⚡"},
	{Title: "challenges.bible_comment.title", Description: "challenges.bible_comment.desc", Points: 1, Cost: 1, Reward: 1, Icon: "📖"},
	{Title: "challenges.encourage_brother.title", Description: "challenges.encourage_brother.desc", Points: 1, Cost: 1, Reward: 1, Icon: "🧡"},
	{Title: "challenges.more_comments.title", Description: "challenges.more_comments.desc", Points: 2, Cost: 3, Reward: 1, Icon: "🗣️"},
	{Title: "challenges.talk_older.title", Description: "challenges.talk_older.desc", Points: 5, Cost: 5, Reward: 3, Icon: "👴"},
	{Title: "challenges.preach_different.title", Description: "challenges.preach_different.desc", Points: 5, Cost: 5, Reward: 3, Icon: "🤝"},
	{Title: "challenges.help_cleaning.title", Description: "challenges.help_cleaning.desc", Points: 3, Cost: 3, Reward: 1, Icon: "🧹"},
	{Title: "challenges.hospitality.title", Description: "challenges.hospitality.desc", Points: 10, Cost: 5, Reward: 8, Icon: "☕"},
	{Title: "challenges.hardest_hello.title", Description: "challenges.hardest_hello.desc", Points: 4, Cost: 2, Reward: 3, Icon: "🤝"},
	{Title: "challenges.pioneer_date.title", Description: "challenges.pioneer_date.desc", Points: 7, Cost: 4, Reward: 5, Icon: "👜"},
	{Title: "challenges.encouragement_correspondent.title", Description: "challenges.encouragement_correspondent.desc", Points: 5, Cost: 3, Reward: 4, Icon: "✉️"},
	{Title: "challenges.meeting_echo.title", Description: "challenges.meeting_echo.desc", Points: 3, Cost: 2, Reward: 2, Icon: "📢"},
	{Title: "challenges.bible_researcher.title", Description: "challenges.bible_researcher.desc", Points: 6, Cost: 3, Reward: 4, Icon: "🔍"},
	{Title: "challenges.right_hand.title", Description: "challenges.right_hand.desc", Points: 5, Cost: 3, Reward: 4, Icon: "🛠️"},
	{Title: "challenges.faith_interview.title", Description: "challenges.faith_interview.desc", Points: 9, Cost: 3, Reward: 7, Icon: "🎤"},
}

type ExpiryKey string

const (
	ExpiryNone ExpiryKey = "none"
	Expiry72h  ExpiryKey = "72h"
	Expiry24h  ExpiryKey = "24h"
	Expiry6h   ExpiryKey = "6h"
	Expiry1h   ExpiryKey = "1h"
)

type ExpiryOption struct {
	Key   ExpiryKey     `json:"key"`
	After time.Duration `json:"-"` // zero means no expiry
	Cost  int           `json:"cost"`
}

var ExpiryOptions = []ExpiryOption{
	{Key: ExpiryNone, Cost: 0},
	{Key: Expiry72h, After: 72 * time.Hour, Cost: 1},
	{Key: Expiry24h, After: 24 * time.Hour, Cost: 2},
	{Key: Expiry6h, After: 6 * time.Hour, Cost: 4},
	{Key: Expiry1h, After: time.Hour, Cost: 6},
}

// ResolveExpiry falls back to "none" for unknown keys.
func ResolveExpiry(key string) ExpiryOption {
	for _, opt := range ExpiryOptions {
		if string(opt.Key) == key {
			return opt
		}
	}
	return ExpiryOptions[0]
}

// ExpiresAt returns nil when the option never expires.
func (o ExpiryOption) ExpiresAt(now time.Time) *time.Time {
	if o.After <= 0 {
		return nil
	}
	t := now.Add(o.After)
	return &t
}
