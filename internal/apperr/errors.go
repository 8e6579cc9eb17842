// Package apperr defines the error kinds the escrow core surfaces to
// callers. Handlers and operational tooling branch on these, so every
// service returns (or wraps) one of them rather than a bare error.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrGatewayFailure = errors.New("payout gateway failure")

	// ErrInsufficientBal is a conflict: the guard on the balance debit
	// rejected the withdrawal.
	ErrInsufficientBal = fmt.Errorf("%w: insufficient balance", ErrConflict)
)

// Validationf wraps ErrValidation with a caller-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrValidation, args)...)
}

// NotFoundf wraps ErrNotFound with a caller-facing message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrNotFound, args)...)
}

// Forbiddenf wraps ErrForbidden with a caller-facing message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrForbidden, args)...)
}

// Conflictf wraps ErrConflict with a caller-facing message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrConflict, args)...)
}

func prepend(err error, args []any) []any {
	return append([]any{err}, args...)
}
