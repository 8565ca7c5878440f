package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidIdentity    = errors.New("no customer identity key present")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidPoints      = errors.New("points must be positive")

	ErrOrderNotFound  = errors.New("order not found")
	ErrRewardNotFound = errors.New("reward not found")
	ErrRewardInactive = errors.New("reward is not active")

	ErrVoucherNotFound   = errors.New("voucher not found")
	ErrVoucherNotUsable  = errors.New("voucher is not active")
	ErrBelowMinimumOrder = errors.New("order subtotal is below the voucher minimum")

	ErrInvalidClaimDay    = errors.New("invalid claim day")
	ErrClaimNotOpen       = errors.New("claim day is not open today")
	ErrSlotNotConfigured  = errors.New("claim day has no reward assigned")
	ErrSlotAlreadyClaimed = errors.New("claim day already claimed")
	ErrClaimNotFound      = errors.New("claim not found")
)

// ValidationError carries the offending field alongside the message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid returns a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err belongs to the synchronous-rejection class.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidIdentity) ||
		errors.Is(err, ErrInvalidPoints) ||
		errors.Is(err, ErrInvalidClaimDay) ||
		errors.Is(err, ErrBelowMinimumOrder)
}
