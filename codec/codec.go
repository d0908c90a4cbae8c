// Package codec turns protocol payloads into URL-safe tokens and back.
//
// Two generations are understood on decode:
//
//	legacy  base64(json(object))
//	v2      "v2." + base64url_nopad(json(positional array))
//
// Encoding produces v2 unless the caller asks for legacy.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDecode         = errors.New("codec: cannot decode payload")
	ErrUnknownVersion = errors.New("codec: unknown payload version")
	ErrUnknownType    = errors.New("codec: unknown payload type")
	// ErrMissingDetails means the payload parsed but lacks a field the protocol needs.
	ErrMissingDetails = errors.New("codec: payload is missing required fields")
)

const CurrentVersion = "v2"

type Generation int

const (
	GenerationV2 Generation = iota
	GenerationLegacy
)

// ParseGeneration maps a config value to a Generation, defaulting to v2.
func ParseGeneration(s string) Generation {
	if strings.EqualFold(strings.TrimSpace(s), "legacy") {
		return GenerationLegacy
	}
	return GenerationV2
}

// Encode produces a current-generation token from an already compact value.
func Encode(compact any) (string, error) {
	raw, err := json.Marshal(compact)
	if err != nil {
		return "", fmt.Errorf("codec: marshal: %w", err)
	}
	return CurrentVersion + "." + base64.RawURLEncoding.EncodeToString(raw), nil
}

// EncodeLegacy produces a legacy token: standard base64 of the JSON text.
func EncodeLegacy(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("codec: marshal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode returns the JSON text carried by a token of either generation.
func Decode(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrDecode)
	}

	if version, body, ok := splitVersion(token); ok {
		if version != CurrentVersion {
			return nil, fmt.Errorf("%w: %w %q", ErrDecode, ErrUnknownVersion, version)
		}
		raw, err := base64.URLEncoding.DecodeString(restorePadding(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return checkJSON(raw)
	}

	return decodeLegacy(token)
}

// splitVersion recognizes a "v<digits>." prefix. The dot never occurs in base64,
// so a legacy token cannot be mistaken for a versioned one.
func splitVersion(token string) (version, body string, ok bool) {
	dot := strings.IndexByte(token, '.')
	if dot < 2 || token[0] != 'v' {
		return "", "", false
	}
	for _, r := range token[1:dot] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return token[:dot], token[dot+1:], true
}

func restorePadding(s string) string {
	s = strings.TrimRight(s, "=")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return s
}

func decodeLegacy(token string) ([]byte, error) {
	// a '+' that went through form decoding comes back as a space
	token = strings.ReplaceAll(token, " ", "+")
	enc := base64.StdEncoding
	if strings.ContainsAny(token, "-_") {
		enc = base64.URLEncoding
	}
	raw, err := enc.DecodeString(restorePadding(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return checkJSON(raw)
}

func checkJSON(raw []byte) ([]byte, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: not JSON", ErrDecode)
	}
	return raw, nil
}
