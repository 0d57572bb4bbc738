package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/staybook/reservation-engine/internal/config"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EventCheckoutSessionCompleted is the only webhook event that confirms a booking
const EventCheckoutSessionCompleted = "checkout.session.completed"

var (
	// ErrInvalidSignature is returned when a webhook payload fails signature verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrSessionNotFound is returned when the processor has no session with the given id
	ErrSessionNotFound = errors.New("checkout session not found")
)

// ProcessorError wraps a failed call to the payment processor
type ProcessorError struct {
	Op  string
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// IsProcessorError reports whether err is a ProcessorError
func IsProcessorError(err error) bool {
	var target *ProcessorError
	return errors.As(err, &target)
}

// ProcessorSession is the processor-side view of a checkout session
type ProcessorSession struct {
	ID            string
	URL           string
	PaymentStatus string
	// AmountTotal is in the currency's minor unit
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
	CustomerEmail string
	CustomerName  string
}

// IsPaid reports whether the processor captured the payment
func (s *ProcessorSession) IsPaid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// AmountMajor returns the captured amount in whole currency units
func (s *ProcessorSession) AmountMajor() float64 {
	return float64(s.AmountTotal) / 100
}

// WebhookEvent is a verified webhook notification
type WebhookEvent struct {
	ID      string
	Type    string
	Session *ProcessorSession
}

// CreateSessionParams describes a new checkout session
type CreateSessionParams struct {
	ProductName   string
	UnitAmount    int64 // whole currency units
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// PaymentProcessor is the external payment processor. It is injected so
// tests can substitute a fake.
type PaymentProcessor interface {
	CreateSession(ctx context.Context, params *CreateSessionParams) (*ProcessorSession, error)
	GetSession(ctx context.Context, sessionID string) (*ProcessorSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeProcessor implements PaymentProcessor on Stripe Checkout
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	currency      string
	timeout       time.Duration
	breaker       *gobreaker.CircuitBreaker
	logger        *logrus.Logger
}

// NewStripeProcessor creates a Stripe client bounded by cfg.Timeout
func NewStripeProcessor(cfg config.StripeConfig, logger *logrus.Logger) *StripeProcessor {
	backendConfig := &stripe.BackendConfig{
		HTTPClient:    &http.Client{Timeout: cfg.Timeout},
		LeveledLogger: logger,
	}

	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	})

	return &StripeProcessor{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		currency:      strings.ToLower(cfg.Currency),
		timeout:       cfg.Timeout,
		breaker:       newProcessorBreaker("stripe", logger),
		logger:        logger,
	}
}

func newProcessorBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Payment processor circuit breaker changed state")
		},
	})
}

// CreateSession opens a one-line-item payment session
func (p *StripeProcessor) CreateSession(ctx context.Context, in *CreateSessionParams) (*ProcessorSession, error) {
	ctx, span := tracer.Start(ctx, "stripe.CreateSession")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
					UnitAmount: stripe.Int64(in.UnitAmount * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.api.CheckoutSessions.New(params)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session failed")
		p.logger.WithError(err).Error("Failed to create Stripe checkout session")
		return nil, &ProcessorError{Op: "create session", Err: err}
	}

	session := fromStripeSession(result.(*stripe.CheckoutSession))
	span.SetAttributes(attribute.String("stripe.session_id", session.ID))

	p.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"amount":     in.UnitAmount,
		"currency":   p.currency,
	}).Info("Stripe checkout session created")

	return session, nil
}

// GetSession re-fetches a session from Stripe. Used to authenticate redirects.
func (p *StripeProcessor) GetSession(ctx context.Context, sessionID string) (*ProcessorSession, error) {
	ctx, span := tracer.Start(ctx, "stripe.GetSession")
	defer span.End()
	span.SetAttributes(attribute.String("stripe.session_id", sessionID))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	// unknown session ids do not count as breaker failures
	result, err := p.breaker.Execute(func() (interface{}, error) {
		session, err := p.api.CheckoutSessions.Get(sessionID, params)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, nil
		}
		return session, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get session failed")
		p.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to fetch Stripe checkout session")
		return nil, &ProcessorError{Op: "get session", Err: err}
	}

	session, ok := result.(*stripe.CheckoutSession)
	if !ok || session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	return fromStripeSession(session), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Session is set only for checkout.session.completed events.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if err := webhook.ValidatePayloadWithTolerance(payload, signature, p.webhookSecret, webhook.DefaultTolerance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	// The payload is authentic from here on; decode failures are not signature failures
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	parsed := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if parsed.Type != EventCheckoutSessionCompleted {
		return parsed, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("failed to decode checkout session: event %s has no data", event.ID)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	parsed.Session = fromStripeSession(&session)

	return parsed, nil
}

func fromStripeSession(s *stripe.CheckoutSession) *ProcessorSession {
	session := &ProcessorSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
		CustomerEmail: s.CustomerEmail,
	}
	if s.CustomerDetails != nil {
		if s.CustomerDetails.Email != "" {
			session.CustomerEmail = s.CustomerDetails.Email
		}
		session.CustomerName = s.CustomerDetails.Name
	}
	if session.Metadata == nil {
		session.Metadata = map[string]string{}
	}
	return session
}
