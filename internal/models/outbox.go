package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox message
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEventReservationCreated triggers the invoice email for a new reservation
const OutboxEventReservationCreated = "reservation.created"

// OutboxMessage is a side-effect task written in the same transaction as the
// reservation it belongs to and delivered later by the dispatcher.
type OutboxMessage struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	AggregateID uuid.UUID    `json:"aggregate_id" db:"aggregate_id"`
	EventType   string       `json:"event_type" db:"event_type"`
	Payload     JSONB        `json:"payload" db:"payload"`
	Status      OutboxStatus `json:"status" db:"status"`
	Attempts    int          `json:"attempts" db:"attempts"`
	LastError   *string      `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty" db:"processed_at"`
	// ClaimedUntil is the end of the current dispatcher's lease on a pending message
	ClaimedUntil *time.Time `json:"claimed_until,omitempty" db:"claimed_until"`
}

// InvoicePayload is the payload of a reservation.created message
type InvoicePayload struct {
	ReservationID  string  `json:"reservation_id"`
	SessionID      string  `json:"session_id"`
	PropertyName   string  `json:"property_name"`
	PropertyAddr   string  `json:"property_address"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	NumberOfNights int     `json:"number_of_nights"`
	Guests         int     `json:"guests"`
	TotalPrice     float64 `json:"total_price"`
	Currency       string  `json:"currency"`
	PayerEmail     string  `json:"payer_email"`
	PayerName      string  `json:"payer_name"`
}

// NewInvoiceMessage builds the reservation.created outbox message
func NewInvoiceMessage(res *Reservation, property *Property, payment *ConfirmedPayment) *OutboxMessage {
	return &OutboxMessage{
		ID:          uuid.New(),
		AggregateID: res.ID,
		EventType:   OutboxEventReservationCreated,
		Payload: JSONB{
			"reservation_id":   res.ID.String(),
			"session_id":       payment.SessionID,
			"property_name":    property.Title,
			"property_address": property.Country,
			"start_date":       FormatDate(res.StartDate),
			"end_date":         FormatDate(res.EndDate),
			"number_of_nights": res.NumberOfNights,
			"guests":           res.Guests,
			"total_price":      res.TotalPrice,
			"currency":         payment.Currency,
			"payer_email":      payment.Payer.Email,
			"payer_name":       payment.Payer.Name,
		},
		Status:    OutboxPending,
		CreatedAt: time.Now().UTC(),
	}
}
