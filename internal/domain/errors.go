package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("invalid position parameters")
	ErrDecode        = errors.New("malformed obscured field")
	ErrParse         = errors.New("malformed ledger payload")
	ErrNetwork       = errors.New("ledger unreachable")
	ErrUserRejected  = errors.New("rejected by user")
	ErrAuthorization = errors.New("not authorized")
	ErrIndexConflict = errors.New("position index changed concurrently")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")
	ErrDisabled      = errors.New("feature disabled")
)
