package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentConfirmationEvent is either a RedirectConfirmation or a WebhookConfirmation.
// The two variants carry different trust and are normalized by reconciliation.
type PaymentConfirmationEvent interface {
	Source() PaymentEventSource
	confirmation()
}

// RedirectConfirmation arrives on the paying guest's browser. The session id
// alone proves nothing; the session must be fetched from the processor.
type RedirectConfirmation struct {
	SessionID string
	// Payer is the authenticated caller, when the redirect carried a token
	Payer *uuid.UUID
}

// Source implements PaymentConfirmationEvent
func (RedirectConfirmation) Source() PaymentEventSource { return PaymentSourceRedirect }

func (RedirectConfirmation) confirmation() {}

// WebhookConfirmation is a processor-signed server-to-server notification.
// Payload must be signature-verified before it is parsed.
type WebhookConfirmation struct {
	Payload   []byte
	Signature string
}

// Source implements PaymentConfirmationEvent
func (WebhookConfirmation) Source() PaymentEventSource { return PaymentSourceWebhook }

func (WebhookConfirmation) confirmation() {}

// ConfirmedPayment is the normalized, trusted shape both variants reduce to
type ConfirmedPayment struct {
	SessionID  string
	PropertyID uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Guests     int
	TotalPrice float64
	Currency   string
	Payer      PayerSummary
	Source     PaymentEventSource
}

// Nights returns the number of nights paid for
func (cp *ConfirmedPayment) Nights() int {
	return NightsBetween(cp.StartDate, cp.EndDate)
}

// ToReservation builds the row to materialize for this payment
func (cp *ConfirmedPayment) ToReservation() *Reservation {
	sessionID := cp.SessionID
	return &Reservation{
		ID:               uuid.New(),
		PropertyID:       cp.PropertyID,
		StartDate:        cp.StartDate,
		EndDate:          cp.EndDate,
		NumberOfNights:   cp.Nights(),
		Guests:           cp.Guests,
		TotalPrice:       cp.TotalPrice,
		StripeCheckoutID: &sessionID,
		HasPaid:          true,
		CreatedBy:        cp.Payer.ID,
		CreatedAt:        time.Now().UTC(),
	}
}

// ReconcileOutcome describes how a confirmation was materialized
type ReconcileOutcome string

const (
	// OutcomeCreated means this call inserted the reservation
	OutcomeCreated ReconcileOutcome = "created"
	// OutcomeDuplicate means the session was already materialized
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	// OutcomeConflict means the reservation was inserted but overlaps another session
	OutcomeConflict ReconcileOutcome = "conflict"
)

// ReconcileResult is the successful result of reconciliation
type ReconcileResult struct {
	Reservation *Reservation
	Property    *Property
	Payer       PayerSummary
	Outcome     ReconcileOutcome
	Conflict    *BookingConflict
}

// Summary builds the redirect response shape
func (r *ReconcileResult) Summary() ReservationSummary {
	return r.Reservation.ToSummary(r.Property.ToSummary(), r.Payer)
}
