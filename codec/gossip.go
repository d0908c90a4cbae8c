package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// GossipEntry is a second-hand leaderboard observation. A nil Score is kept so
// the merge can reject it; a nil UpdatedAt means "now" at merge time.
type GossipEntry struct {
	Nickname  string
	Score     *int
	UpdatedAt *time.Time
}

// legacy form: {nickname, score, updated_at}
type legacyGossipEntry struct {
	Nickname  string          `json:"nickname"`
	Score     *int            `json:"score"`
	UpdatedAt json.RawMessage `json:"updated_at,omitempty"`
	// older builds wrote camelCase
	UpdatedAtAlt json.RawMessage `json:"updatedAt,omitempty"`
}

func (g GossipEntry) compact() []any {
	var ts any
	if g.UpdatedAt != nil {
		ts = g.UpdatedAt.UnixMilli()
	}
	var score any
	if g.Score != nil {
		score = *g.Score
	}
	return []any{g.Nickname, score, ts}
}

func (g GossipEntry) legacy() map[string]any {
	m := map[string]any{"nickname": g.Nickname, "score": g.Score}
	if g.UpdatedAt != nil {
		m["updated_at"] = g.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func compactGossip(entries []GossipEntry) [][]any {
	out := make([][]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.compact())
	}
	return out
}

func legacyGossip(entries []GossipEntry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.legacy())
	}
	return out
}

// parseGossip accepts either entry shape and silently drops malformed entries.
func parseGossip(raw json.RawMessage) []GossipEntry {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]GossipEntry, 0, len(items))
	for _, item := range items {
		if e, ok := parseGossipEntry(item); ok {
			out = append(out, e)
		}
	}
	return out
}

func parseGossipEntry(raw json.RawMessage) (GossipEntry, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return GossipEntry{}, false
	}

	switch raw[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
			return GossipEntry{}, false
		}
		nickname, err := at[string](arr, 0)
		if err != nil || strings.TrimSpace(nickname) == "" {
			return GossipEntry{}, false
		}
		score, err := optAt[int](arr, 1)
		if err != nil {
			return GossipEntry{}, false
		}
		var ts json.RawMessage
		if len(arr) > 2 {
			ts = arr[2]
		}
		updatedAt, ok := parseTimestamp(ts)
		if !ok {
			return GossipEntry{}, false
		}
		return GossipEntry{Nickname: nickname, Score: score, UpdatedAt: updatedAt}, true

	case '{':
		var e legacyGossipEntry
		if err := json.Unmarshal(raw, &e); err != nil || strings.TrimSpace(e.Nickname) == "" {
			return GossipEntry{}, false
		}
		ts := e.UpdatedAt
		if isNull(ts) {
			ts = e.UpdatedAtAlt
		}
		updatedAt, ok := parseTimestamp(ts)
		if !ok {
			return GossipEntry{}, false
		}
		return GossipEntry{Nickname: e.Nickname, Score: e.Score, UpdatedAt: updatedAt}, true
	}
	return GossipEntry{}, false
}

// parseTimestamp reads epoch milliseconds or an RFC 3339 string. Absent, null
// and zero map to nil.
func parseTimestamp(raw json.RawMessage) (*time.Time, bool) {
	if isNull(raw) {
		return nil, true
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms <= 0 {
			return nil, true
		}
		t := time.UnixMilli(int64(ms)).UTC()
		return &t, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}
