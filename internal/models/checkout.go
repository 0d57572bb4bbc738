package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Checkout session metadata keys
const (
	MetaPropertyID     = "property_id"
	MetaStartDate      = "start_date"
	MetaEndDate        = "end_date"
	MetaNumberOfNights = "number_of_nights"
	MetaGuests         = "guests"
	MetaTotalPrice     = "total_price"
	MetaCreatedBy      = "created_by"
)

// CheckoutIntent is the booking intent carried inside a processor session.
// It is never persisted; on confirmation it is untrusted input.
type CheckoutIntent struct {
	PropertyID     uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	NumberOfNights int
	Guests         int
	TotalPrice     int64
	CreatedBy      uuid.UUID
	SessionID      string
}

// ToMetadata encodes the intent as processor session metadata
func (ci *CheckoutIntent) ToMetadata() map[string]string {
	return map[string]string{
		MetaPropertyID:     ci.PropertyID.String(),
		MetaStartDate:      FormatDate(ci.StartDate),
		MetaEndDate:        FormatDate(ci.EndDate),
		MetaNumberOfNights: strconv.Itoa(ci.NumberOfNights),
		MetaGuests:         strconv.Itoa(ci.Guests),
		MetaTotalPrice:     strconv.FormatInt(ci.TotalPrice, 10),
		MetaCreatedBy:      ci.CreatedBy.String(),
	}
}

// IntentFromMetadata decodes session metadata back into an intent.
// Any missing or malformed field is a ValidationError.
func IntentFromMetadata(sessionID string, meta map[string]string) (*CheckoutIntent, error) {
	invalid := func(field string) error {
		return NewValidationError(CodeInvalidMetadata, "session %s has invalid metadata field %q", sessionID, field)
	}

	propertyID, err := uuid.Parse(meta[MetaPropertyID])
	if err != nil {
		return nil, invalid(MetaPropertyID)
	}
	start, err := ParseDate(meta[MetaStartDate])
	if err != nil {
		return nil, invalid(MetaStartDate)
	}
	end, err := ParseDate(meta[MetaEndDate])
	if err != nil {
		return nil, invalid(MetaEndDate)
	}
	guests, err := strconv.Atoi(meta[MetaGuests])
	if err != nil || guests < 1 {
		return nil, invalid(MetaGuests)
	}
	createdBy, err := uuid.Parse(meta[MetaCreatedBy])
	if err != nil {
		return nil, invalid(MetaCreatedBy)
	}

	intent := &CheckoutIntent{
		PropertyID:     propertyID,
		StartDate:      start,
		EndDate:        end,
		NumberOfNights: NightsBetween(start, end),
		Guests:         guests,
		CreatedBy:      createdBy,
		SessionID:      sessionID,
	}

	// total_price is informational; the confirmed amount is authoritative
	if raw, ok := meta[MetaTotalPrice]; ok {
		if total, err := strconv.ParseInt(raw, 10, 64); err == nil {
			intent.TotalPrice = total
		}
	}

	return intent, nil
}

// ============================================================================
// REQUEST / RESPONSE SHAPES
// ============================================================================

// CheckoutRequest is the body of POST /checkout
type CheckoutRequest struct {
	PropertyID string `json:"property_id" binding:"required,uuid"`
	StartDate  string `json:"start_date" binding:"required,isodate"`
	EndDate    string `json:"end_date" binding:"required,isodate"`
	Guests     int    `json:"guests" binding:"required,min=1"`
	// TotalPrice is the client's displayed estimate; it is checked, never used
	TotalPrice *int64 `json:"total_price,omitempty" binding:"omitempty,min=0"`
}

// CheckoutResponse is returned after a processor session is opened
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}
