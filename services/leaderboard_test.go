package services

import (
	"context"
	"testing"
	"time"

	"theo-challengers/codec"
	"theo-challengers/models"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func entry(t *testing.T, d *device, nickname string) models.LeaderboardEntry {
	t.Helper()
	var e models.LeaderboardEntry
	require.NoError(t, d.db.Where("nickname = ?", nickname).First(&e).Error)
	return e
}

func gossipOnly(entries ...codec.GossipEntry) *codec.Claim {
	return &codec.Claim{CID: "x", Gossip: entries}
}

func at(ts time.Time) *time.Time { return &ts }

func TestMergeIncomingAppliesPeerSelfThenBatch(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.set(t, "score", 5)
	ana.leaderboard.Now = func() time.Time { return t0 }

	payload := &codec.Claim{
		CID:          "x",
		Claimer:      "Bob",
		ClaimerScore: intp(3),
		Gossip: []codec.GossipEntry{
			{Nickname: "Ana", Score: intp(999), UpdatedAt: at(t0.Add(time.Hour))},
			{Nickname: "Cid", Score: intp(7), UpdatedAt: at(t0.Add(-time.Hour))},
			{Nickname: "Bob", Score: intp(1), UpdatedAt: at(t0.Add(-time.Hour))},
		},
	}
	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, payload, ana.player))

	self := entry(t, ana, "Ana")
	require.Equal(t, 5, self.Score, "gossip about ourselves is ignored")
	require.True(t, self.UpdatedAt.Equal(t0))

	// the stale batch entry for Bob differs in score, so it lands after the peer write
	require.Equal(t, 1, entry(t, ana, "Bob").Score)
	require.Equal(t, 7, entry(t, ana, "Cid").Score)
}

func TestMergeIncomingSkipsPeerThatIsUs(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	payload := &codec.ChallengeRequest{ID: "x", From: "Ana", FromScore: intp(50), Item: codec.Item{Title: "t"}}

	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, payload, ana.player))
	require.Equal(t, 0, entry(t, ana, "Ana").Score)
}

func TestGossipNewerTimestampWins(t *testing.T) {
	tests := []struct {
		name         string
		first, later int
	}{
		{name: "score rises", first: 10, later: 25},
		{name: "score drops after reset", first: 25, later: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ana := newDevice(t, "Ana")

			require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(codec.GossipEntry{Nickname: "Bob", Score: intp(tt.first), UpdatedAt: at(t0)}), ana.player))
			require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(codec.GossipEntry{Nickname: "Bob", Score: intp(tt.later), UpdatedAt: at(t0.Add(time.Minute))}), ana.player))

			e := entry(t, ana, "Bob")
			require.Equal(t, tt.later, e.Score)
			require.True(t, e.UpdatedAt.Equal(t0.Add(time.Minute)))
		})
	}
}

func TestGossipSameTimestampSecondWriteWins(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")

	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(codec.GossipEntry{Nickname: "Bob", Score: intp(10), UpdatedAt: at(t0)}), ana.player))
	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(codec.GossipEntry{Nickname: "Bob", Score: intp(8), UpdatedAt: at(t0)}), ana.player))

	require.Equal(t, 8, entry(t, ana, "Bob").Score)
}

func TestGossipOlderSameScoreIsNoop(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")

	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(codec.GossipEntry{Nickname: "Bob", Score: intp(10), UpdatedAt: at(t0)}), ana.player))
	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(codec.GossipEntry{Nickname: "Bob", Score: intp(10), UpdatedAt: at(t0.Add(-time.Hour))}), ana.player))

	e := entry(t, ana, "Bob")
	require.Equal(t, 10, e.Score)
	require.True(t, e.UpdatedAt.Equal(t0))
}

func TestGossipScoreEdgeCases(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.leaderboard.Now = func() time.Time { return t0 }

	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(
		codec.GossipEntry{Nickname: "NoScore"},
		codec.GossipEntry{Nickname: "Zero", Score: intp(0)},
	), ana.player))

	require.Zero(t, count(t, ana.db, &models.LeaderboardEntry{}, "nickname = ?", "NoScore"))
	zero := entry(t, ana, "Zero")
	require.Equal(t, 0, zero.Score)
	require.True(t, zero.UpdatedAt.Equal(t0), "missing timestamp defaults to now")
}

func TestTopEntries(t *testing.T) {
	ctx := context.Background()
	ana := newDevice(t, "Ana")
	ana.leaderboard.Limit = 3

	var batch []codec.GossipEntry
	for i, name := range []string{"A", "B", "C", "D", "E"} {
		batch = append(batch, codec.GossipEntry{Nickname: name, Score: intp(i * 10), UpdatedAt: at(t0)})
	}
	require.NoError(t, ana.leaderboard.MergeIncoming(ctx, gossipOnly(batch...), ana.player))

	top, err := ana.leaderboard.TopEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, []string{"E", "D", "C"}, []string{top[0].Nickname, top[1].Nickname, top[2].Nickname})

	out, err := ana.leaderboard.GossipBatch(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, 40, *out[0].Score)
	require.True(t, out[0].UpdatedAt.Equal(t0))
}
