package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const MaxProfileBadges = 6

type ProfileBadge struct {
	ID   string `json:"id"`
	Icon string `json:"icon"`
	Name string `json:"name"`
}

// ProfileCard is a read-only snapshot; opening one never touches local state.
type ProfileCard struct {
	Nickname    string         `json:"nickname"`
	AvatarChar  string         `json:"avatar_char"`
	AvatarImage string         `json:"avatar_image,omitempty"`
	Level       int            `json:"level"`
	Title       string         `json:"title"`
	Score       int            `json:"score"`
	Badges      []ProfileBadge `json:"badges"`
	Theme       string         `json:"theme,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (c ProfileCard) compact() []any {
	badges := c.Badges
	if len(badges) > MaxProfileBadges {
		badges = badges[:MaxProfileBadges]
	}
	cb := make([][]string, 0, len(badges))
	for _, b := range badges {
		cb = append(cb, []string{b.ID, b.Icon, b.Name})
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{c.Nickname, c.AvatarChar, c.AvatarImage, c.Level, c.Title, c.Score, cb, c.Theme, created.UnixMilli()}
}

func EncodeProfileCard(c ProfileCard) (string, error) {
	return Encode(c.compact())
}

// DecodeProfileCard only reads the versioned form; cards never had a legacy encoding.
func DecodeProfileCard(token string) (ProfileCard, error) {
	if _, _, versioned := splitVersion(strings.TrimSpace(token)); !versioned {
		return ProfileCard{}, fmt.Errorf("%w: profile card without version prefix", ErrDecode)
	}
	raw, err := Decode(token)
	if err != nil {
		return ProfileCard{}, err
	}
	raw = bytes.TrimSpace(raw)
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 9 {
		return ProfileCard{}, fmt.Errorf("%w: profile card is not a compact snapshot", ErrDecode)
	}

	nickname, err := at[string](arr, 0)
	if err != nil {
		return ProfileCard{}, err
	}
	avatarChar, err := at[string](arr, 1)
	if err != nil {
		return ProfileCard{}, err
	}
	title, err := at[string](arr, 4)
	if err != nil {
		return ProfileCard{}, err
	}

	card := ProfileCard{
		Nickname:    nickname,
		AvatarChar:  avatarChar,
		AvatarImage: orDefault(arr, 2, ""),
		Level:       orDefault(arr, 3, 1),
		Title:       title,
		Score:       orDefault(arr, 5, 0),
		Badges:      parseProfileBadges(arr[6]),
		Theme:       orDefault(arr, 7, ""),
		CreatedAt:   time.Now().UTC(),
	}
	if ms := orDefault[int64](arr, 8, 0); ms > 0 {
		card.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return card, nil
}

func parseProfileBadges(raw json.RawMessage) []ProfileBadge {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []ProfileBadge{}
	}
	out := make([]ProfileBadge, 0, len(items))
	for _, item := range items {
		var b []string
		if err := json.Unmarshal(item, &b); err != nil || len(b) < 3 {
			continue
		}
		out = append(out, ProfileBadge{ID: b[0], Icon: b[1], Name: b[2]})
		if len(out) == MaxProfileBadges {
			break
		}
	}
	return out
}
