// Package apperr defines the error taxonomy shared by the core services.
// Handlers map these onto HTTP statuses; the services themselves never retry.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the simple categories.
var (
	ErrNotFound  = errors.New("not found")        // Missing user/deposit/withdrawal/setting
	ErrConflict  = errors.New("conflict")         // Duplicate submission or double resolution
	ErrDisabled  = errors.New("feature disabled") // Gated off by a setting
	ErrForbidden = errors.New("forbidden")        // Access-control failure
)

// NotFound wraps ErrNotFound with the missing entity's name.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// Conflict wraps ErrConflict with a reason.
func Conflict(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}

// Disabled wraps ErrDisabled with the gated feature's name.
func Disabled(feature string) error {
	return fmt.Errorf("%s: %w", feature, ErrDisabled)
}

// ValidationError signals malformed or out-of-range input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError signals a debit exceeding the available balance at
// the serialization point. The balance is left untouched.
type InsufficientBalanceError struct {
	Requested float64 // Amount the caller tried to debit
	Available float64 // Balance at the time of the attempt
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %.2f, available %.2f", e.Requested, e.Available)
}

// LockedBalanceError rejects a withdrawal inside the lock period. It carries
// the figures the user sees instead of a bare insufficient-funds error.
type LockedBalanceError struct {
	LockedAmount     float64 // Amount frozen by the lock rule
	AvailableBalance float64 // balance - locked amount, floored at zero
	RemainingDays    int     // Whole days until the lock expires
}

func (e *LockedBalanceError) Error() string {
	return fmt.Sprintf("balance locked: %.2f locked for %d more day(s), %.2f available",
		e.LockedAmount, e.RemainingDays, e.AvailableBalance)
}
