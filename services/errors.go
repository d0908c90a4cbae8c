package services

import (
	"errors"

	"theo-challengers/codec"
)

// ErrorCode is an expected protocol failure. The value doubles as the
// user-facing message key.
type ErrorCode string

const (
	CodeInvalidCode          ErrorCode = "invalid_code"
	CodeMissingDetails       ErrorCode = "missing_details"
	CodeNotRecognized        ErrorCode = "not_recognized"
	CodeAcceptOwn            ErrorCode = "accept_own"
	CodeAlreadyAccepted      ErrorCode = "already_accepted"
	CodeAlreadyClaimed       ErrorCode = "already_claimed"
	CodeAlreadyAchievement   ErrorCode = "already_achievement"
	CodeChallengeNotFound    ErrorCode = "challenge_not_found"
	CodeWrongAccount         ErrorCode = "wrong_account"
	CodeInvalidAuthorization ErrorCode = "invalid_authorization"
	CodeInsufficientCoins    ErrorCode = "insufficient_coins"
	CodeInventoryFull        ErrorCode = "inventory_full"
	CodeItemNotFound         ErrorCode = "item_not_found"
	CodeBadgeOwned           ErrorCode = "badge_owned"
	CodeUnknownBadge         ErrorCode = "unknown_badge"
	CodeInvalidNickname      ErrorCode = "invalid_nickname"
	CodeBonusClaimed         ErrorCode = "bonus_claimed"
)

func (c ErrorCode) Error() string { return string(c) }

// decodeFailure maps a codec error onto the code shown to the player.
func decodeFailure(err error) ErrorCode {
	if errors.Is(err, codec.ErrMissingDetails) {
		return CodeMissingDetails
	}
	return CodeInvalidCode
}

// asCode extracts an ErrorCode returned through an error path (e.g. out of a
// transaction closure).
func asCode(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return "", false
}

// Result is the outcome of a protocol step. Error is empty on success.
type Result struct {
	Success bool      `json:"success"`
	Error   ErrorCode `json:"error,omitempty"`
}

func ok() Result                 { return Result{Success: true} }
func fail(code ErrorCode) Result { return Result{Error: code} }
