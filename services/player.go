package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"theo-challengers/models"
	"theo-challengers/store"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
	// shopSize is how many catalog challenges the daily shop offers.
	shopSize = 4
)

type PlayerService struct {
	DB  *gorm.DB
	Log *zap.Logger
	// Leaderboard, when set, gets the local row refreshed after a reset.
	Leaderboard *LeaderboardService
}

func NewPlayerService(db *gorm.DB, log *zap.Logger, leaderboard *LeaderboardService) *PlayerService {
	return &PlayerService{DB: db, Log: log, Leaderboard: leaderboard}
}

// NormalizeNickname trims and NFC-normalizes so that visually identical
// nicknames compare equal across devices.
func NormalizeNickname(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// SameNickname reports whether two nicknames name the same player.
func SameNickname(a, b string) bool {
	return NormalizeNickname(a) == NormalizeNickname(b)
}

var ErrNoPlayer = errors.New("no local player")

// Current returns the local player. Handlers call this once per request and
// pass the result down explicitly.
func (s *PlayerService) Current(ctx context.Context) (*models.Player, error) {
	var p models.Player
	err := s.DB.WithContext(ctx).Order("created_at ASC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPlayer
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}
	return &p, nil
}

// EnsurePlayer returns the local player, creating it with nickname on first run (idempotent).
func (s *PlayerService) EnsurePlayer(ctx context.Context, nickname string) (*models.Player, error) {
	p, err := s.Current(ctx)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNoPlayer) {
		return nil, err
	}

	nickname = NormalizeNickname(nickname)
	if nickname == "" {
		return nil, CodeInvalidNickname
	}

	p = &models.Player{
		Nickname:         nickname,
		LastMonthlyReset: time.Now().Format(monthLayout),
		ShopItems:        []models.CatalogChallenge{},
		Badges:           []string{},
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	s.Log.Info("👤 player created", zap.String("nickname", p.Nickname))
	return p, nil
}

// Reload refreshes p from the store.
func (s *PlayerService) Reload(ctx context.Context, p *models.Player) error {
	return s.DB.WithContext(ctx).First(p, "id = ?", p.ID).Error
}

// ApplyMonthlyReset zeroes the monthly score once per calendar month.
// Lifetime score, coins and streak are untouched. It reports whether a reset happened.
func (s *PlayerService) ApplyMonthlyReset(ctx context.Context, p *models.Player, now time.Time) (bool, error) {
	month := now.Format(monthLayout)
	if p.LastMonthlyReset == month {
		return false, nil
	}

	res := s.DB.WithContext(ctx).Model(&models.Player{}).
		Where("id = ? AND (last_monthly_reset IS NULL OR last_monthly_reset <> ?)", p.ID, month).
		Updates(map[string]any{"score": 0, "last_monthly_reset": month})
	if res.Error != nil {
		return false, fmt.Errorf("monthly reset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	p.Score = 0
	p.LastMonthlyReset = month

	// the drop must gossip out with a fresh timestamp or peers would keep the old score
	if s.Leaderboard != nil {
		if err := s.Leaderboard.RecordSelf(ctx, p, now); err != nil {
			return true, err
		}
	}
	s.Log.Info("🗓️ monthly score reset", zap.String("nickname", p.Nickname), zap.String("month", month))
	return true, nil
}

// Wipe deletes every local row, the player included.
func (s *PlayerService) Wipe(ctx context.Context) error {
	if err := store.Reset(s.DB.WithContext(ctx)); err != nil {
		return err
	}
	s.Log.Warn("🧹 local data wiped")
	return nil
}

// WeekID keys the weekly bonus by ISO week, e.g. "2026-W07".
func WeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeeklyBonus is the coin amount a streak earns once per week.
func WeeklyBonus(streak int) int {
	switch {
	case streak >= 7:
		return 3
	case streak >= 3:
		return 2
	default:
		return 1
	}
}

type BonusResult struct {
	Result
	Coins int    `json:"coins,omitempty"`
	Week  string `json:"week"`
}

// ClaimWeeklyBonus pays the streak bonus at most once per ISO week.
func (s *PlayerService) ClaimWeeklyBonus(ctx context.Context, p *models.Player, now time.Time) (BonusResult, error) {
	week := WeekID(now)
	var amount int

	err := store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		var fresh models.Player
		if err := tx.First(&fresh, "id = ?", p.ID).Error; err != nil {
			return err
		}
		if fresh.LastWeeklyBonus == week {
			return CodeBonusClaimed
		}
		amount = WeeklyBonus(fresh.Streak)

		res := tx.Model(&models.Player{}).
			Where("id = ? AND (last_weekly_bonus IS NULL OR last_weekly_bonus <> ?)", fresh.ID, week).
			Updates(map[string]any{
				"coins":             gorm.Expr("coins + ?", amount),
				"last_weekly_bonus": week,
				"last_daily_bonus":  now.Format(dayLayout),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return CodeBonusClaimed
		}
		fresh.Coins += amount
		fresh.LastWeeklyBonus = week
		fresh.LastDailyBonus = now.Format(dayLayout)
		*p = fresh
		return nil
	})
	if code, isCode := asCode(err); isCode {
		return BonusResult{Result: fail(code), Week: week}, nil
	}
	if err != nil {
		return BonusResult{}, fmt.Errorf("weekly bonus: %w", err)
	}

	s.Log.Info("🎁 weekly bonus", zap.String("nickname", p.Nickname), zap.String("week", week), zap.Int("coins", amount))
	return BonusResult{Result: ok(), Coins: amount, Week: week}, nil
}

// shopFor picks the day's offer: a window over the catalog that moves one
// step per day, so every device shows the same shop on the same date.
func shopFor(day time.Time) []models.CatalogChallenge {
	catalog := models.ChallengeCatalog
	n := min(shopSize, len(catalog))
	if n == 0 {
		return []models.CatalogChallenge{}
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	start := int(midnight.Unix()/86400) % len(catalog)

	items := make([]models.CatalogChallenge, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, catalog[(start+i)%len(catalog)])
	}
	return items
}

// DailyShop returns today's shop, refreshing the stored offer on the first
// call of each day.
func (s *PlayerService) DailyShop(ctx context.Context, p *models.Player, now time.Time) ([]models.CatalogChallenge, error) {
	day := now.Format(dayLayout)
	if p.LastShopUpdate == day && len(p.ShopItems) > 0 {
		return p.ShopItems, nil
	}

	items := shopFor(now)
	fresh := models.Player{ID: p.ID, ShopItems: items, LastShopUpdate: day}
	if err := s.DB.WithContext(ctx).Model(&fresh).Select("shop_items", "last_shop_update").Updates(&fresh).Error; err != nil {
		return nil, fmt.Errorf("refresh shop: %w", err)
	}
	p.ShopItems = items
	p.LastShopUpdate = day
	return items, nil
}

func (s *PlayerService) MarkTutorialSeen(ctx context.Context, p *models.Player) error {
	if p.TutorialSeen {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.Player{}).Where("id = ?", p.ID).Update("tutorial_seen", true).Error; err != nil {
		return fmt.Errorf("mark tutorial: %w", err)
	}
	p.TutorialSeen = true
	return nil
}
