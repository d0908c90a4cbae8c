package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ProximityPrefix marks a QR string meant for in-person approval.
const ProximityPrefix = "TA:"

// Approval is the in-person proof: challenge uuid, approver nickname, points.
type Approval struct {
	UUID     string
	Approver string
	Points   int
}

func (a Approval) token() (string, error) {
	raw, err := json.Marshal([]any{a.UUID, a.Approver, a.Points})
	if err != nil {
		return "", fmt.Errorf("codec: marshal approval: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// EncodeApproval renders the QR string.
func EncodeApproval(a Approval) (string, error) {
	token, err := a.token()
	if err != nil {
		return "", err
	}
	return ProximityPrefix + token, nil
}

// IsProximity reports whether s looks like a scanned approval string.
func IsProximity(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), ProximityPrefix)
}

// DecodeApproval accepts "TA:<payload>" or a bare payload taken from an approve link.
func DecodeApproval(s string) (Approval, error) {
	body := strings.TrimPrefix(strings.TrimSpace(s), ProximityPrefix)
	if body == "" {
		return Approval{}, fmt.Errorf("%w: empty approval", ErrDecode)
	}
	body = strings.ReplaceAll(body, " ", "+")

	enc := base64.URLEncoding
	if strings.ContainsAny(body, "+/") {
		enc = base64.StdEncoding
	}
	raw, err := enc.DecodeString(restorePadding(body))
	if err != nil {
		return Approval{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Approval{}, fmt.Errorf("%w: empty approval", ErrDecode)
	}

	var a Approval
	switch raw[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return Approval{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		a = Approval{UUID: orDefault(arr, 0, ""), Approver: orDefault(arr, 1, ""), Points: orDefault(arr, 2, 0)}
	case '{':
		var obj struct {
			I string `json:"i"`
			N string `json:"n"`
			P int    `json:"p"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Approval{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		a = Approval{UUID: obj.I, Approver: obj.N, Points: obj.P}
	default:
		return Approval{}, fmt.Errorf("%w: unexpected approval shape", ErrDecode)
	}

	if strings.TrimSpace(a.UUID) == "" {
		return Approval{}, ErrMissingDetails
	}
	return a, nil
}
