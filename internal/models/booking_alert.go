package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingAlertType classifies an operational alert
type BookingAlertType string

const (
	// AlertBookingConflict: a paid reservation overlaps another session's paid reservation
	AlertBookingConflict BookingAlertType = "BOOKING_CONFLICT"
	// AlertPropertyMissing: money was captured for a property that no longer exists
	AlertPropertyMissing BookingAlertType = "PROPERTY_MISSING"
)

// BookingAlert is an operational alert that needs manual resolution
type BookingAlert struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	AlertType     BookingAlertType `json:"alert_type" db:"alert_type"`
	SessionID     string           `json:"session_id" db:"session_id"`
	PropertyID    *uuid.UUID       `json:"property_id,omitempty" db:"property_id"`
	ReservationID *uuid.UUID       `json:"reservation_id,omitempty" db:"reservation_id"`
	Details       JSONB            `json:"details,omitempty" db:"details"`
	Resolved      bool             `json:"resolved" db:"resolved"`
	ResolvedBy    *uuid.UUID       `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// NewConflictAlert builds an alert for an overlapping paid reservation
func NewConflictAlert(conflict *BookingConflict) *BookingAlert {
	propertyID := conflict.PropertyID
	reservationID := conflict.ReservationID

	ids := make([]string, 0, len(conflict.ConflictingIDs))
	for _, id := range conflict.ConflictingIDs {
		ids = append(ids, id.String())
	}

	return &BookingAlert{
		ID:            uuid.New(),
		AlertType:     AlertBookingConflict,
		SessionID:     conflict.SessionID,
		PropertyID:    &propertyID,
		ReservationID: &reservationID,
		Details: JSONB{
			"conflicting_reservation_ids": ids,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// NewPropertyMissingAlert builds an alert for a captured payment with no property
func NewPropertyMissingAlert(payment *ConfirmedPayment) *BookingAlert {
	propertyID := payment.PropertyID
	return &BookingAlert{
		ID:         uuid.New(),
		AlertType:  AlertPropertyMissing,
		SessionID:  payment.SessionID,
		PropertyID: &propertyID,
		Details: JSONB{
			"amount":     payment.TotalPrice,
			"currency":   payment.Currency,
			"payer_id":   payment.Payer.ID.String(),
			"payer":      payment.Payer.Email,
			"start_date": FormatDate(payment.StartDate),
			"end_date":   FormatDate(payment.EndDate),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// BookingAlertListResponse is returned by the admin alert listing
type BookingAlertListResponse struct {
	Alerts []BookingAlert `json:"alerts"`
	Total  int            `json:"total"`
}
