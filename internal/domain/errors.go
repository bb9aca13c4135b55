package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every operation failure wraps exactly one of these so
// callers can classify with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrArithmetic        = errors.New("arithmetic error")
	ErrPaused            = errors.New("paused")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
)

var (
	ErrWrongAmount       = fmt.Errorf("%w: wrong amount", ErrValidation)
	ErrWrongBondID       = fmt.Errorf("%w: wrong bond id", ErrValidation)
	ErrWrongValue        = fmt.Errorf("%w: wrong value", ErrValidation)
	ErrBondInactive      = fmt.Errorf("%w: bond is inactive", ErrValidation)
	ErrBondNotVault      = fmt.Errorf("%w: bond is not a vault", ErrValidation)
	ErrParentNotVault    = fmt.Errorf("%w: parent bond is not a vault", ErrValidation)
	ErrParentInactive    = fmt.Errorf("%w: parent bond is not active", ErrValidation)
	ErrInvalidRange      = fmt.Errorf("%w: invalid nonce range", ErrValidation)
	ErrWrongOwner        = fmt.Errorf("%w: wrong owner", ErrValidation)
	ErrMintMismatch      = fmt.Errorf("%w: mint mismatch", ErrValidation)
	ErrWrongCollection   = fmt.Errorf("%w: mint from wrong collection", ErrValidation)
	ErrNotCreator        = fmt.Errorf("%w: not the mint creator", ErrValidation)
	ErrInvalidProof      = fmt.Errorf("%w: invalid merkle proof", ErrValidation)
	ErrVaultBondMismatch = fmt.Errorf("%w: vault bond id mismatch", ErrValidation)
	ErrAssetIDMismatch   = fmt.Errorf("%w: asset id mismatch", ErrValidation)

	ErrArithmeticOverflow  = fmt.Errorf("%w: overflow", ErrArithmetic)
	ErrArithmeticUnderflow = fmt.Errorf("%w: underflow", ErrArithmetic)
	ErrDivisionByZero      = fmt.Errorf("%w: division by zero", ErrArithmetic)

	ErrProgramPaused = fmt.Errorf("%w: bond config is inactive", ErrPaused)
	ErrRewardsPaused = fmt.Errorf("%w: reward pool is inactive", ErrPaused)

	ErrNotEnoughBalance = fmt.Errorf("%w: not enough balance", ErrInsufficientFunds)
)

// ErrorKind names the category of an operation failure.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindValidation        ErrorKind = "validation"
	KindArithmetic        ErrorKind = "arithmetic"
	KindPaused            ErrorKind = "paused"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInternal          ErrorKind = "internal"
)

// KindOf classifies err into one of the error categories.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrArithmetic):
		return KindArithmetic
	case errors.Is(err, ErrPaused):
		return KindPaused
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrLockHeld):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
