package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	TypeChallengeRequest = "theo-challenge-req-v1"
	TypeClaim            = "theo-claim-v1"
	TypeAuth             = "theo-auth-v1"
)

// Payload is one of the exchange messages. Only this package implements it.
type Payload interface {
	PayloadType() string
	compact() []any
	legacy() any
}

// GossipCarrier is what the leaderboard merge reads from any payload.
type GossipCarrier interface {
	// Peer returns the sender of the payload and the score it advertised for itself.
	Peer() (nickname string, score *int)
	GossipEntries() []GossipEntry
}

type Item struct {
	Title       string `json:"title"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

func (i Item) compact() []any { return []any{i.Title, i.Points, i.Description} }

// ChallengeRequest travels sender -> receiver.
type ChallengeRequest struct {
	ID        string
	From      string
	FromScore *int
	Item      Item
	Message   string
	Gossip    []GossipEntry
	ExpiresAt *time.Time
}

// Claim travels receiver -> sender once the challenge is done.
type Claim struct {
	CID          string
	Claimer      string
	ClaimerScore *int
	Gossip       []GossipEntry
}

// Auth travels sender -> receiver and finalizes the reward.
type Auth struct {
	CID         string
	Valid       bool
	SenderScore *int
	Item        Item
	Message     string
	From        string
	Gossip      []GossipEntry
}

func (*ChallengeRequest) PayloadType() string { return TypeChallengeRequest }
func (*Claim) PayloadType() string            { return TypeClaim }
func (*Auth) PayloadType() string             { return TypeAuth }

func (r *ChallengeRequest) Peer() (string, *int) { return r.From, r.FromScore }
func (c *Claim) Peer() (string, *int)            { return c.Claimer, c.ClaimerScore }
func (a *Auth) Peer() (string, *int)             { return a.From, a.SenderScore }

func (r *ChallengeRequest) GossipEntries() []GossipEntry { return r.Gossip }
func (c *Claim) GossipEntries() []GossipEntry            { return c.Gossip }
func (a *Auth) GossipEntries() []GossipEntry             { return a.Gossip }

func (r *ChallengeRequest) compact() []any {
	var expires int64
	if r.ExpiresAt != nil {
		expires = r.ExpiresAt.UnixMilli()
	}
	return []any{TypeChallengeRequest, r.ID, r.From, r.FromScore, r.Item.compact(), r.Message, compactGossip(r.Gossip), expires}
}

func (c *Claim) compact() []any {
	return []any{TypeClaim, c.CID, c.Claimer, c.ClaimerScore, compactGossip(c.Gossip)}
}

func (a *Auth) compact() []any {
	return []any{TypeAuth, a.CID, a.Valid, a.SenderScore, a.Item.compact(), a.Message, a.From, compactGossip(a.Gossip)}
}

func (r *ChallengeRequest) legacy() any {
	m := map[string]any{
		"type":      TypeChallengeRequest,
		"id":        r.ID,
		"from":      r.From,
		"fromScore": r.FromScore,
		"item":      r.Item,
		"message":   r.Message,
		"gossip":    legacyGossip(r.Gossip),
	}
	if r.ExpiresAt != nil {
		m["expiresAt"] = r.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func (c *Claim) legacy() any {
	return map[string]any{
		"type":         TypeClaim,
		"cid":          c.CID,
		"claimer":      c.Claimer,
		"claimerScore": c.ClaimerScore,
		"gossip":       legacyGossip(c.Gossip),
	}
}

func (a *Auth) legacy() any {
	return map[string]any{
		"type":        TypeAuth,
		"cid":         a.CID,
		"valid":       a.Valid,
		"senderScore": a.SenderScore,
		"item":        a.Item,
		"message":     a.Message,
		"from":        a.From,
		"gossip":      legacyGossip(a.Gossip),
	}
}

// EncodePayload renders p in the requested generation.
func EncodePayload(p Payload, gen Generation) (string, error) {
	if gen == GenerationLegacy {
		return EncodeLegacy(p.legacy())
	}
	return Encode(p.compact())
}

// DecodePayload decodes a token of either generation and validates it into the
// variant named by its type tag.
func DecodePayload(token string) (Payload, error) {
	raw, err := Decode(token)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	switch raw[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return decodeCompact(arr)
	case '{':
		return decodeLegacyObject(raw)
	}
	return nil, fmt.Errorf("%w: unexpected payload shape", ErrDecode)
}

func decodeCompact(arr []json.RawMessage) (Payload, error) {
	typ, err := at[string](arr, 0)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeChallengeRequest:
		r := &ChallengeRequest{
			ID:        orDefault(arr, 1, ""),
			From:      orDefault(arr, 2, ""),
			FromScore: nullable[int](arr, 3),
			Item:      compactItem(rawAt(arr, 4)),
			Message:   orDefault(arr, 5, ""),
			Gossip:    parseGossip(rawAt(arr, 6)),
			ExpiresAt: parseExpiry(rawAt(arr, 7)),
		}
		return validated(r, r.validate())

	case TypeClaim:
		c := &Claim{
			CID:          orDefault(arr, 1, ""),
			Claimer:      orDefault(arr, 2, ""),
			ClaimerScore: nullable[int](arr, 3),
			Gossip:       parseGossip(rawAt(arr, 4)),
		}
		return validated(c, c.validate())

	case TypeAuth:
		a := &Auth{
			CID:         orDefault(arr, 1, ""),
			Valid:       orDefault(arr, 2, false),
			SenderScore: nullable[int](arr, 3),
			Item:        compactItem(rawAt(arr, 4)),
			Message:     orDefault(arr, 5, ""),
			From:        orDefault(arr, 6, ""),
			Gossip:      parseGossip(rawAt(arr, 7)),
		}
		return validated(a, a.validate())
	}
	return nil, fmt.Errorf("%w: %w %q", ErrDecode, ErrUnknownType, typ)
}

// compactItem reads [title, points, description]. Anything else is an empty item.
func compactItem(raw json.RawMessage) Item {
	if isNull(raw) {
		return Item{}
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return Item{}
	}
	return Item{
		Title:       orDefault(arr, 0, ""),
		Points:      orDefault(arr, 1, 0),
		Description: orDefault(arr, 2, ""),
	}
}

// parseExpiry treats a malformed expiry as no expiry.
func parseExpiry(raw json.RawMessage) *time.Time {
	t, ok := parseTimestamp(raw)
	if !ok {
		return nil
	}
	return t
}

func legacyItem(obj map[string]json.RawMessage) Item {
	item := field[map[string]json.RawMessage](obj, "item")
	if item == nil {
		return Item{}
	}
	return Item{
		Title:       fieldOr(*item, "title", ""),
		Points:      fieldOr(*item, "points", 0),
		Description: fieldOr(*item, "description", ""),
	}
}

// decodeLegacyObject reads the object form field by field so that one
// wrong-typed field is dropped instead of failing the payload.
func decodeLegacyObject(raw []byte) (Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	typ := fieldOr(obj, "type", "")

	switch typ {
	case TypeChallengeRequest:
		r := &ChallengeRequest{
			ID:        fieldOr(obj, "id", ""),
			From:      fieldOr(obj, "from", ""),
			FromScore: field[int](obj, "fromScore"),
			Item:      legacyItem(obj),
			Message:   fieldOr(obj, "message", ""),
			Gossip:    parseGossip(obj["gossip"]),
			ExpiresAt: parseExpiry(obj["expiresAt"]),
		}
		return validated(r, r.validate())
	case TypeClaim:
		c := &Claim{
			CID:          fieldOr(obj, "cid", ""),
			Claimer:      fieldOr(obj, "claimer", ""),
			ClaimerScore: field[int](obj, "claimerScore"),
			Gossip:       parseGossip(obj["gossip"]),
		}
		return validated(c, c.validate())
	case TypeAuth:
		a := &Auth{
			CID:         fieldOr(obj, "cid", ""),
			Valid:       fieldOr(obj, "valid", false),
			SenderScore: field[int](obj, "senderScore"),
			Item:        legacyItem(obj),
			Message:     fieldOr(obj, "message", ""),
			From:        fieldOr(obj, "from", ""),
			Gossip:      parseGossip(obj["gossip"]),
		}
		return validated(a, a.validate())
	}
	return nil, fmt.Errorf("%w: %w %q", ErrDecode, ErrUnknownType, typ)
}

func (r *ChallengeRequest) validate() error {
	if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.Item.Title) == "" {
		return ErrMissingDetails
	}
	return nil
}

func (c *Claim) validate() error {
	if strings.TrimSpace(c.CID) == "" {
		return ErrMissingDetails
	}
	return nil
}

func (a *Auth) validate() error {
	if strings.TrimSpace(a.CID) == "" {
		return ErrMissingDetails
	}
	return nil
}

func validated(p Payload, err error) (Payload, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
