package services

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"theo-challengers/codec"
	"theo-challengers/models"
)

type ProfileCardService struct {
	Links  LinkBuilder
	Badges *BadgeService
}

func NewProfileCardService(links LinkBuilder, badges *BadgeService) *ProfileCardService {
	return &ProfileCardService{Links: links, Badges: badges}
}

func avatarChar(nickname string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(nickname))
	if r == utf8.RuneError {
		return "P"
	}
	return string(unicode.ToUpper(r))
}

// Snapshot freezes what a viewer of the card will see.
func (s *ProfileCardService) Snapshot(p *models.Player, theme string) codec.ProfileCard {
	level := LevelFor(p.LifetimeScore)

	owned := s.Badges.Owned(p)
	badges := make([]codec.ProfileBadge, 0, len(owned))
	for _, b := range owned {
		if len(badges) == codec.MaxProfileBadges {
			break
		}
		badges = append(badges, codec.ProfileBadge{ID: b.ID, Icon: b.Icon, Name: b.Name})
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return codec.ProfileCard{
		Nickname:   p.Nickname,
		AvatarChar: avatarChar(p.Nickname),
		Level:      level,
		Title:      TitleFor(level),
		Score:      p.Score,
		Badges:     badges,
		Theme:      theme,
		CreatedAt:  created.UTC(),
	}
}

func (s *ProfileCardService) Link(p *models.Player, theme string) (string, error) {
	return s.Links.ProfileCardLink(s.Snapshot(p, theme))
}
