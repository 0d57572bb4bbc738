package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// PropertyReader loads a property by id. A missing property is (nil, nil).
type PropertyReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

// CheckoutInput is a validated checkout request from an authenticated guest
type CheckoutInput struct {
	PropertyID uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Guests     int
	// ClientTotal is what the client displayed; it must match the server price
	ClientTotal *int64
	Payer       models.PayerSummary
}

// CheckoutService opens processor sessions for booking intents.
// It never writes reservations; the booking lives only in session metadata
// until reconciliation confirms payment.
type CheckoutService struct {
	properties   PropertyReader
	availability *AvailabilityService
	processor    PaymentProcessor
	audit        *PaymentAuditService
	frontendURL  string
	queryTimeout time.Duration
	logger       *logrus.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	properties PropertyReader,
	availability *AvailabilityService,
	processor PaymentProcessor,
	audit *PaymentAuditService,
	frontendURL string,
	queryTimeout time.Duration,
	logger *logrus.Logger,
) *CheckoutService {
	return &CheckoutService{
		properties:   properties,
		availability: availability,
		processor:    processor,
		audit:        audit,
		frontendURL:  frontendURL,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// CreateCheckout validates the request, prices it server-side and opens a
// processor session carrying the booking intent as metadata.
func (s *CheckoutService) CreateCheckout(ctx context.Context, in *CheckoutInput) (*models.CheckoutResponse, error) {
	ctx, span := tracer.Start(ctx, "checkout.CreateCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("property_id", in.PropertyID.String()))

	if err := ValidateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	property, err := s.loadProperty(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, &models.NotFoundError{Resource: "property", ID: in.PropertyID.String()}
	}

	if in.Guests < 1 || in.Guests > property.Guests {
		return nil, models.NewValidationError(models.CodeCapacityExceeded,
			"property %s accommodates at most %d guests, requested %d", property.ID, property.Guests, in.Guests)
	}

	nights := models.NightsBetween(in.StartDate, in.EndDate)
	total := property.PriceFor(nights)
	if in.ClientTotal != nil && *in.ClientTotal != total {
		return nil, models.NewValidationError(models.CodePriceMismatch,
			"total_price %d does not match %d nights at %d", *in.ClientTotal, nights, property.PricePerNight)
	}

	// Courtesy check only. Two guests can still pay for the same dates;
	// reconciliation flags that case.
	available, err := s.availability.IsAvailable(ctx, property.ID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, models.NewValidationError(models.CodeDatesUnavailable,
			"property %s is already booked between %s and %s",
			property.ID, models.FormatDate(in.StartDate), models.FormatDate(in.EndDate))
	}

	intent := &models.CheckoutIntent{
		PropertyID:     property.ID,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		NumberOfNights: nights,
		Guests:         in.Guests,
		TotalPrice:     total,
		CreatedBy:      in.Payer.ID,
	}

	session, err := s.processor.CreateSession(ctx, &CreateSessionParams{
		ProductName:   property.Title,
		UnitAmount:    total,
		CustomerEmail: in.Payer.Email,
		Metadata:      intent.ToMetadata(),
		SuccessURL:    s.frontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     fmt.Sprintf("%s/properties/%s", s.frontendURL, property.ID),
	})
	if err != nil {
		s.audit.RecordError(ctx, models.PaymentEventError, models.PaymentSourceCheckout, "", err, "PROCESSOR_ERROR")
		return nil, err
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventCheckoutCreated, models.PaymentSourceCheckout).
		SetSession(session.ID).
		SetAmount(float64(total), session.Currency))

	s.logger.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"property_id": property.ID,
		"nights":      nights,
		"total":       total,
		"payer":       in.Payer.ID,
	}).Info("Checkout session created")

	return &models.CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

func (s *CheckoutService) loadProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	property, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	return property, nil
}
