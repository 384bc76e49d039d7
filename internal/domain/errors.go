package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrAlreadyPaid            = errors.New("order is already paid")
	ErrVerificationFailed     = errors.New("payment verification failed")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrRequestInProgress      = errors.New("request with this idempotency key is in progress")
	ErrRateLimited            = errors.New("rate limit exceeded")
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// UnavailableError is returned by the availability check for the first day
// without an available slot.
type UnavailableError struct {
	ProductID string
	Date      string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("Item not available on %s", e.Date)
}

// ConflictError is returned when a slot stopped being available between the
// check and the reservation commit.
type ConflictError struct {
	ProductID string
	Date      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Item was reserved by another booking on %s", e.Date)
}

// ValidationError carries a client-facing reason. It matches ErrInvalidInput.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// GatewayError is a non-success answer from the payment gateway. The message
// is the gateway's own and is safe to show to the caller.
type GatewayError struct {
	Op      string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment gateway %s failed", e.Op)
	}
	return e.Message
}

// IsDateError reports whether err names a specific unavailable date.
func IsDateError(err error) bool {
	var u *UnavailableError
	var c *ConflictError
	return errors.As(err, &u) || errors.As(err, &c)
}
