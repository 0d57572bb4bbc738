package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is the durable booking record. Rows are only created by
// payment reconciliation and never have their dates changed once paid.
type Reservation struct {
	ID               uuid.UUID `json:"id" db:"id"`
	PropertyID       uuid.UUID `json:"property_id" db:"property_id"`
	StartDate        time.Time `json:"start_date" db:"start_date"`
	EndDate          time.Time `json:"end_date" db:"end_date"`
	NumberOfNights   int       `json:"number_of_nights" db:"number_of_nights"`
	Guests           int       `json:"guests" db:"guests"`
	TotalPrice       float64   `json:"total_price" db:"total_price"`
	StripeCheckoutID *string   `json:"stripe_checkout_id,omitempty" db:"stripe_checkout_id"`
	HasPaid          bool      `json:"has_paid" db:"has_paid"`
	ConflictFlagged  bool      `json:"conflict_flagged" db:"conflict_flagged"`
	CreatedBy        uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Overlaps reports whether r overlaps the half-open range [start, end)
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && r.EndDate.After(start)
}

// SessionID returns the checkout session id or an empty string
func (r *Reservation) SessionID() string {
	if r.StripeCheckoutID == nil {
		return ""
	}
	return *r.StripeCheckoutID
}

// ============================================================================
// RESPONSE SHAPES
// ============================================================================

// PayerSummary identifies who paid for a reservation
type PayerSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
	Name  string    `json:"name,omitempty"`
}

// ReservationSummary is returned by the payment success redirect.
// Repeated calls for the same session return the same summary.
type ReservationSummary struct {
	ReservationID  uuid.UUID       `json:"reservation_id"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	NumberOfNights int             `json:"number_of_nights"`
	Guests         int             `json:"guests"`
	TotalPrice     float64         `json:"total_price"`
	HasPaid        bool            `json:"has_paid"`
	Property       PropertySummary `json:"property"`
	Payer          PayerSummary    `json:"payer"`
}

// PaymentSuccessResponse wraps the reservation summary for the redirect endpoint
type PaymentSuccessResponse struct {
	Success     bool               `json:"success"`
	Reservation ReservationSummary `json:"reservation"`
	Conflict    bool               `json:"conflict"`
}

// PaymentCancelResponse is returned when the guest abandons checkout
type PaymentCancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookAckResponse is the bare webhook acknowledgement
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// ReservationDates is the calendar shape for a property's paid reservations
type ReservationDates struct {
	ID        uuid.UUID `json:"id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

// UserReservationItem is one entry in the caller's reservation list
type UserReservationItem struct {
	ID             uuid.UUID       `json:"id"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	NumberOfNights int             `json:"number_of_nights"`
	Guests         int             `json:"guests"`
	TotalPrice     float64         `json:"total_price"`
	HasPaid        bool            `json:"has_paid"`
	Property       PropertySummary `json:"property"`
}

// ReservationWithProperty is a joined row used by the reservation list query
type ReservationWithProperty struct {
	Reservation
	PropertyTitle    string `db:"property_title"`
	PropertyCountry  string `db:"property_country"`
	PropertyImageURL string `db:"property_image_url"`
}

// ToSummary builds the redirect response shape
func (r *Reservation) ToSummary(property PropertySummary, payer PayerSummary) ReservationSummary {
	return ReservationSummary{
		ReservationID:  r.ID,
		StartDate:      FormatDate(r.StartDate),
		EndDate:        FormatDate(r.EndDate),
		NumberOfNights: r.NumberOfNights,
		Guests:         r.Guests,
		TotalPrice:     r.TotalPrice,
		HasPaid:        r.HasPaid,
		Property:       property,
		Payer:          payer,
	}
}

// ToDates builds the calendar response shape
func (r *Reservation) ToDates() ReservationDates {
	return ReservationDates{
		ID:        r.ID,
		StartDate: FormatDate(r.StartDate),
		EndDate:   FormatDate(r.EndDate),
	}
}

// ToUserItem builds the caller's reservation list entry
func (r *ReservationWithProperty) ToUserItem() UserReservationItem {
	return UserReservationItem{
		ID:             r.ID,
		StartDate:      FormatDate(r.StartDate),
		EndDate:        FormatDate(r.EndDate),
		NumberOfNights: r.NumberOfNights,
		Guests:         r.Guests,
		TotalPrice:     r.TotalPrice,
		HasPaid:        r.HasPaid,
		Property: PropertySummary{
			ID:       r.PropertyID,
			Name:     r.PropertyTitle,
			Address:  r.PropertyCountry,
			ImageURL: r.PropertyImageURL,
		},
	}
}

// AvailabilityResponse is returned by the availability endpoint
type AvailabilityResponse struct {
	PropertyID uuid.UUID `json:"property_id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Available  bool      `json:"available"`
}

// BatchAvailabilityRequest asks which of several properties are free for one range
type BatchAvailabilityRequest struct {
	PropertyIDs []uuid.UUID `json:"property_ids" binding:"required,min=1,max=100"`
	StartDate   string      `json:"start_date" binding:"required,isodate"`
	EndDate     string      `json:"end_date" binding:"required,isodate"`
}

// BatchAvailabilityResponse lists the free properties in request order
type BatchAvailabilityResponse struct {
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Available []uuid.UUID `json:"available"`
}
