package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment audit event
type PaymentEventType string

const (
	PaymentEventCheckoutCreated      PaymentEventType = "checkout_created"
	PaymentEventConfirmationReceived PaymentEventType = "confirmation_received"
	PaymentEventSignatureInvalid     PaymentEventType = "signature_invalid"
	PaymentEventSessionUnpaid        PaymentEventType = "session_unpaid"
	PaymentEventReservationCreated   PaymentEventType = "reservation_created"
	PaymentEventReservationDuplicate PaymentEventType = "reservation_duplicate"
	PaymentEventReservationConflict  PaymentEventType = "reservation_conflict"
	PaymentEventPropertyMissing      PaymentEventType = "property_missing"
	PaymentEventIgnored              PaymentEventType = "event_ignored"
	PaymentEventError                PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceRedirect PaymentEventSource = "redirect"
	PaymentSourceWebhook  PaymentEventSource = "stripe_webhook"
	PaymentSourceCheckout PaymentEventSource = "checkout"
	PaymentSourceSystem   PaymentEventSource = "system"
)

// PaymentAudit is an immutable audit log entry for a payment event
type PaymentAudit struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	SessionID     *string            `json:"session_id,omitempty" db:"session_id"`
	ReservationID *uuid.UUID         `json:"reservation_id,omitempty" db:"reservation_id"`
	EventType     PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource   PaymentEventSource `json:"event_source" db:"event_source"`

	Amount        *float64 `json:"amount,omitempty" db:"amount"`
	Currency      *string  `json:"currency,omitempty" db:"currency"`
	PaymentStatus *string  `json:"payment_status,omitempty" db:"payment_status"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`

	ProcessingTimeMs *int `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool `json:"is_duplicate" db:"is_duplicate"`

	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo JSONB   `json:"device_info,omitempty" db:"device_info"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetSession sets the checkout session id
func (pa *PaymentAudit) SetSession(sessionID string) *PaymentAudit {
	if sessionID != "" {
		pa.SessionID = &sessionID
	}
	return pa
}

// SetReservation links the entry to a reservation
func (pa *PaymentAudit) SetReservation(reservationID uuid.UUID) *PaymentAudit {
	pa.ReservationID = &reservationID
	return pa
}

// SetAmount records the confirmed amount
func (pa *PaymentAudit) SetAmount(amount float64, currency string) *PaymentAudit {
	pa.Amount = &amount
	if currency != "" {
		pa.Currency = &currency
	}
	return pa
}

// SetPaymentStatus sets the payment status reported by the processor
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code string) *PaymentAudit {
	pa.ErrorMessage = &message
	if code != "" {
		pa.ErrorCode = &code
	}
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}

// SetDeviceInfo stores parsed user agent details
func (pa *PaymentAudit) SetDeviceInfo(info JSONB) *PaymentAudit {
	pa.DeviceInfo = info
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a repeated confirmation
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
