package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// at reads a required positional element.
func at[T any](arr []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(arr) || isNull(arr[i]) {
		return v, fmt.Errorf("%w: element %d missing", ErrDecode, i)
	}
	if err := json.Unmarshal(arr[i], &v); err != nil {
		return v, fmt.Errorf("%w: element %d: %v", ErrDecode, i, err)
	}
	return v, nil
}

// optAt reads an optional positional element; absent or null yields nil.
func optAt[T any](arr []json.RawMessage, i int) (*T, error) {
	if i >= len(arr) || isNull(arr[i]) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(arr[i], &v); err != nil {
		return nil, fmt.Errorf("%w: element %d: %v", ErrDecode, i, err)
	}
	return &v, nil
}

// orDefault reads an element, falling back when it is absent or of the wrong type.
func orDefault[T any](arr []json.RawMessage, i int, def T) T {
	v, err := optAt[T](arr, i)
	if err != nil || v == nil {
		return def
	}
	return *v
}

// nullable reads an optional element; absent, null or wrong-typed yields nil.
func nullable[T any](arr []json.RawMessage, i int) *T {
	v, err := optAt[T](arr, i)
	if err != nil {
		return nil
	}
	return v
}

// field reads a key of a legacy object; absent, null or wrong-typed yields nil.
func field[T any](obj map[string]json.RawMessage, key string) *T {
	raw, found := obj[key]
	if !found || isNull(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func fieldOr[T any](obj map[string]json.RawMessage, key string, def T) T {
	if v := field[T](obj, key); v != nil {
		return *v
	}
	return def
}

func rawAt(arr []json.RawMessage, i int) json.RawMessage {
	if i >= len(arr) {
		return nil
	}
	return arr[i]
}
