package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"theo-challengers/codec"
	"theo-challengers/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnsurePlayer(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, "store")
	players := NewPlayerService(db, zap.NewNop(), nil)

	_, err := players.Current(ctx)
	require.ErrorIs(t, err, ErrNoPlayer)

	_, err = players.EnsurePlayer(ctx, "   ")
	require.ErrorIs(t, err, CodeInvalidNickname)

	p, err := players.EnsurePlayer(ctx, "  Ana ")
	require.NoError(t, err)
	require.Equal(t, "Ana", p.Nickname)
	require.NotEmpty(t, p.ID)

	again, err := players.EnsurePlayer(ctx, "Someone else")
	require.NoError(t, err)
	require.Equal(t, p.ID, again.ID)
}

func TestLevelAndTitle(t *testing.T) {
	tests := []struct {
		lifetime int
		level    int
		title    string
	}{
		{lifetime: 0, level: 1, title: "Bronze"},
		{lifetime: 99, level: 1, title: "Bronze"},
		{lifetime: 100, level: 2, title: "Bronze"},
		{lifetime: 100 + xpForNextLevel(2), level: 3, title: "Bronze"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.level, LevelFor(tt.lifetime), "lifetime %d", tt.lifetime)
		require.Equal(t, tt.title, TitleFor(tt.level))
	}
	require.Equal(t, "Silver", TitleFor(10))
	require.Equal(t, "Diamond", TitleFor(150))
}

func TestMonthlyReset(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.set(t, "score", 40)
	ana.set(t, "lifetime_score", 90)
	ana.set(t, "last_monthly_reset", "2026-04")

	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	reset, err := ana.players.ApplyMonthlyReset(ctx, ana.player, now)
	require.NoError(t, err)
	require.True(t, reset)

	require.NoError(t, ana.players.Reload(ctx, ana.player))
	require.Zero(t, ana.player.Score)
	require.Equal(t, 90, ana.player.LifetimeScore)
	require.Equal(t, "2026-05", ana.player.LastMonthlyReset)

	self := entry(t, ana, "Ana")
	require.Zero(t, self.Score)
	require.True(t, self.UpdatedAt.Equal(now))

	reset, err = ana.players.ApplyMonthlyReset(ctx, ana.player, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.False(t, reset)
}

func TestInventoryBuy(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.set(t, "coins", 10)
	tpl := models.ChallengeCatalog[0]

	for i := 0; i < DefaultInventoryLimit; i++ {
		res, err := ana.inventory.Buy(ctx, ana.player, tpl)
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, tpl.Title, res.Item.Title)
	}
	require.Equal(t, 10-DefaultInventoryLimit*tpl.Cost, ana.player.Coins)

	full, err := ana.inventory.Buy(ctx, ana.player, tpl)
	require.NoError(t, err)
	require.Equal(t, CodeInventoryFull, full.Error)

	items, err := ana.inventory.List(ctx, ana.player)
	require.NoError(t, err)
	require.Len(t, items, DefaultInventoryLimit)

	removed, err := ana.inventory.Remove(ctx, ana.player, items[0].ID)
	require.NoError(t, err)
	require.True(t, removed.Success)

	removed, err = ana.inventory.Remove(ctx, ana.player, items[0].ID)
	require.NoError(t, err)
	require.Equal(t, CodeItemNotFound, removed.Error)

	ana.set(t, "coins", 0)
	broke, err := ana.inventory.Buy(ctx, ana.player, tpl)
	require.NoError(t, err)
	require.Equal(t, CodeInsufficientCoins, broke.Error)
}

func TestBuyBadge(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.set(t, "coins", 60)

	res, err := ana.badges.Buy(ctx, ana.player, "early_adopter")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 10, ana.player.Coins)
	require.True(t, ana.player.HasBadge("early_adopter"))

	res, err = ana.badges.Buy(ctx, ana.player, "early_adopter")
	require.NoError(t, err)
	require.Equal(t, CodeBadgeOwned, res.Error)

	res, err = ana.badges.Buy(ctx, ana.player, "supporter")
	require.NoError(t, err)
	require.Equal(t, CodeInsufficientCoins, res.Error)

	res, err = ana.badges.Buy(ctx, ana.player, "made_up")
	require.NoError(t, err)
	require.Equal(t, CodeUnknownBadge, res.Error)

	require.NoError(t, ana.players.Reload(ctx, ana.player))
	require.Equal(t, []string{"early_adopter"}, ana.player.Badges)
}

func TestProfileCardLink(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "ana")
	ana.set(t, "coins", 5000)
	for _, b := range models.BadgeCatalog {
		res, err := ana.badges.Buy(ctx, ana.player, b.ID)
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	ana.set(t, "lifetime_score", 100)
	ana.set(t, "score", 12)

	cards := NewProfileCardService(ana.challenges.Links, ana.badges)
	link, err := cards.Link(ana.player, "dark")
	require.NoError(t, err)

	opened, err := ana.dispatcher.Open(ctx, ana.player, link)
	require.NoError(t, err)
	require.True(t, opened.Success)
	card := opened.Data.(codec.ProfileCard)
	require.Equal(t, "A", card.AvatarChar)
	require.Equal(t, 2, card.Level)
	require.Equal(t, "Bronze", card.Title)
	require.Equal(t, 12, card.Score)
	require.Len(t, card.Badges, codec.MaxProfileBadges)
	require.Equal(t, "dark", card.Theme)
}

func TestOpenUnrecognized(t *testing.T) {
	ana := newDevice(t, "Ana")
	for _, input := range []string{"", "hello", "https://x.test/?nothing=1", "http://[::1"} {
		res, err := ana.dispatcher.Open(context.Background(), ana.player, input)
		require.NoError(t, err)
		require.Equal(t, CodeNotRecognized, res.Error, "input %q", input)
	}
}

type memoryUploader struct {
	key  string
	body []byte
	err  error
}

func (m *memoryUploader) Upload(_ context.Context, key string, body []byte, _ string) error {
	m.key, m.body = key, body
	return m.err
}

func TestBackupRun(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana Bé")
	ana.stock(t, "t", 1)
	up := &memoryUploader{}
	backup := NewBackupService(ana.db, zap.NewNop(), up)
	backup.Now = func() time.Time { return t0 }

	key, err := backup.Run(ctx, ana.player)
	require.NoError(t, err)
	require.Equal(t, "backups/ana-be/20260501T100000Z.json", key)
	require.Equal(t, key, up.key)
	require.Contains(t, string(up.body), `"inventory":[{`)

	up.err = errors.New("bucket gone")
	_, err = backup.Run(ctx, ana.player)
	require.Error(t, err)
}

func TestWipe(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.stock(t, "t", 1)
	ana.received(t, "c-1", 1, 1)

	require.NoError(t, ana.players.Wipe(ctx))
	require.Zero(t, count(t, ana.db, &models.Challenge{}, ""))
	require.Zero(t, count(t, ana.db, &models.ChallengeItem{}, ""))
	_, err := ana.players.Current(ctx)
	require.ErrorIs(t, err, ErrNoPlayer)
}

func TestWeekID(t *testing.T) {
	require.Equal(t, "2026-W19", WeekID(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2026-W19", WeekID(time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, "2026-W20", WeekID(time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)))
	// ISO years straddle the calendar year
	require.Equal(t, "2026-W53", WeekID(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestClaimWeeklyBonus(t *testing.T) {
	monday := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		streak int
		bonus  int
	}{
		{name: "no streak", streak: 0, bonus: 1},
		{name: "short streak", streak: 2, bonus: 1},
		{name: "streak of three", streak: 3, bonus: 2},
		{name: "streak of six", streak: 6, bonus: 2},
		{name: "streak of seven", streak: 7, bonus: 3},
		{name: "long streak", streak: 30, bonus: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ana := newDevice(t, "Ana")
			ana.set(t, "coins", 5)
			ana.set(t, "streak", tt.streak)
			ana.set(t, "last_weekly_bonus", "2020-W01")

			res, err := ana.players.ClaimWeeklyBonus(ctx, ana.player, monday)
			require.NoError(t, err)
			require.True(t, res.Success)
			require.Equal(t, tt.bonus, res.Coins)
			require.Equal(t, "2026-W19", res.Week)
			require.Equal(t, 5+tt.bonus, ana.player.Coins)

			require.NoError(t, ana.players.Reload(ctx, ana.player))
			require.Equal(t, 5+tt.bonus, ana.player.Coins)
			require.Equal(t, "2026-W19", ana.player.LastWeeklyBonus)
			require.Equal(t, "2026-05-04", ana.player.LastDailyBonus)
		})
	}
}

func TestClaimWeeklyBonusOncePerWeek(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.set(t, "streak", 3)
	monday := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	res, err := ana.players.ClaimWeeklyBonus(ctx, ana.player, monday)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, ana.player.Coins)

	// same ISO week, even from a stale copy of the player
	stale := *ana.player
	stale.LastWeeklyBonus = ""
	res, err = ana.players.ClaimWeeklyBonus(ctx, &stale, monday.Add(6*24*time.Hour))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, CodeBonusClaimed, res.Error)
	require.Zero(t, res.Coins)

	require.NoError(t, ana.players.Reload(ctx, ana.player))
	require.Equal(t, 2, ana.player.Coins)

	res, err = ana.players.ClaimWeeklyBonus(ctx, ana.player, monday.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "2026-W20", res.Week)
	require.Equal(t, 4, ana.player.Coins)
}

func TestPlayerProfileFieldsPersist(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	require.NotNil(t, ana.player.ShopItems)
	require.Empty(t, ana.player.ShopItems)
	require.False(t, ana.player.TutorialSeen)

	require.NoError(t, ana.players.MarkTutorialSeen(ctx, ana.player))
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	items, err := ana.players.DailyShop(ctx, ana.player, day)
	require.NoError(t, err)
	require.Len(t, items, shopSize)

	fresh, err := ana.players.Current(ctx)
	require.NoError(t, err)
	require.True(t, fresh.TutorialSeen)
	require.Equal(t, "2026-03-01", fresh.LastShopUpdate)
	require.Equal(t, items, fresh.ShopItems)
}

func TestDailyShopRefreshesOncePerDay(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := ana.players.DailyShop(ctx, ana.player, day)
	require.NoError(t, err)
	again, err := ana.players.DailyShop(ctx, ana.player, day.Add(8*time.Hour))
	require.NoError(t, err)
	require.Equal(t, first, again)

	next, err := ana.players.DailyShop(ctx, ana.player, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, next, shopSize)
	require.Equal(t, first[1], next[0])
	require.Equal(t, "2026-03-02", ana.player.LastShopUpdate)

	// another device sees the same offer on the same date
	bob := newDevice(t, "Bob")
	theirs, err := bob.players.DailyShop(ctx, bob.player, day.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first, theirs)
}
