package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING ERROR TAXONOMY
// ============================================================================

// Validation error codes
const (
	CodeInvalidDateRange  = "INVALID_DATE_RANGE"
	CodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	CodePriceMismatch     = "PRICE_MISMATCH"
	CodeDatesUnavailable  = "DATES_UNAVAILABLE"
	CodeInvalidMetadata   = "INVALID_SESSION_METADATA"
	CodeMissingSessionID  = "MISSING_SESSION_ID"
	CodeInvalidPropertyID = "INVALID_PROPERTY_ID"
)

// ErrEventIgnored is returned for webhook events that carry no booking confirmation
var ErrEventIgnored = errors.New("webhook event ignored")

// ValidationError is returned for malformed or inconsistent booking input.
// It is always raised before the store is touched.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with a code
func NewValidationError(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AuthenticityError is returned when a payment confirmation cannot be trusted:
// a bad webhook signature, or a session the processor does not report as paid.
type AuthenticityError struct {
	Reason string
	Err    error
}

func (e *AuthenticityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment confirmation not authentic: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("payment confirmation not authentic: %s", e.Reason)
}

func (e *AuthenticityError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// BookingConflict describes a paid reservation that overlaps other paid
// reservations of the same property under different checkout sessions.
// The reservation is recorded; the conflict is flagged for manual resolution.
type BookingConflict struct {
	ReservationID  uuid.UUID   `json:"reservation_id"`
	PropertyID     uuid.UUID   `json:"property_id"`
	SessionID      string      `json:"session_id"`
	ConflictingIDs []uuid.UUID `json:"conflicting_reservation_ids"`
}

func (c *BookingConflict) Error() string {
	ids := make([]string, 0, len(c.ConflictingIDs))
	for _, id := range c.ConflictingIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("reservation %s for property %s overlaps paid reservations [%s]",
		c.ReservationID, c.PropertyID, strings.Join(ids, ", "))
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuthenticityError reports whether err is an AuthenticityError
func IsAuthenticityError(err error) bool {
	var target *AuthenticityError
	return errors.As(err, &target)
}

// IsNotFoundError reports whether err is a NotFoundError
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
