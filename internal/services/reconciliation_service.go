package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/database"
	"github.com/staybook/reservation-engine/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReservationWriter materializes confirmed payments into reservations
type ReservationWriter interface {
	Materialize(ctx context.Context, res *models.Reservation, outbox *models.OutboxMessage) (*database.MaterializeResult, error)
}

// AlertStore records operational booking alerts
type AlertStore interface {
	Create(ctx context.Context, alert *models.BookingAlert) error
	ExistsForSession(ctx context.Context, alertType models.BookingAlertType, sessionID string) (bool, error)
}

// ReconciliationService turns payment confirmations into reservations.
//
// Both delivery paths (the guest's redirect and the processor's webhook)
// call Reconcile. Either may arrive first, both may arrive, and either may be
// retried; the unique key on the checkout session id makes every call after
// the first return the same reservation.
type ReconciliationService struct {
	processor    PaymentProcessor
	properties   PropertyReader
	reservations ReservationWriter
	alerts       AlertStore
	audit        *PaymentAuditService
	queryTimeout time.Duration
	logger       *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	processor PaymentProcessor,
	properties PropertyReader,
	reservations ReservationWriter,
	alerts AlertStore,
	audit *PaymentAuditService,
	queryTimeout time.Duration,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		processor:    processor,
		properties:   properties,
		reservations: reservations,
		alerts:       alerts,
		audit:        audit,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Reconcile verifies a payment confirmation and materializes its reservation.
//
// Errors:
//   - *models.AuthenticityError: bad signature, unknown or unpaid session. Nothing is written.
//   - *models.ValidationError: session metadata is missing or inconsistent.
//   - *models.NotFoundError: the property was deleted after payment. A PROPERTY_MISSING alert is raised.
//   - models.ErrEventIgnored: a verified webhook that does not confirm a booking.
//
// A repeated session is not an error: the existing reservation is returned
// with OutcomeDuplicate. An overlap with another paid session is recorded and
// returned with OutcomeConflict.
func (s *ReconciliationService) Reconcile(ctx context.Context, event models.PaymentConfirmationEvent) (*models.ReconcileResult, error) {
	startTime := time.Now()
	source := event.Source()

	ctx, span := tracer.Start(ctx, "reconciliation.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("source", string(source)))

	session, err := s.confirmedSession(ctx, event)
	if err != nil {
		if !errors.Is(err, models.ErrEventIgnored) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "confirmation rejected")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("stripe.session_id", session.ID))

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventConfirmationReceived, source).
		SetSession(session.ID).
		SetPaymentStatus(session.PaymentStatus).
		SetAmount(session.AmountMajor(), session.Currency))

	payment, err := s.normalize(session, event)
	if err != nil {
		code := models.CodeInvalidMetadata
		if models.IsAuthenticityError(err) {
			code = "PAYER_MISMATCH"
			s.logger.WithFields(logrus.Fields{
				"session_id": session.ID,
				"source":     source,
			}).Warn("Redirect caller is not the payer of the checkout session")
		}
		s.audit.RecordError(ctx, models.PaymentEventError, source, session.ID, err, code)
		return nil, err
	}

	property, err := s.loadProperty(ctx, payment)
	if err != nil {
		return nil, err
	}

	res := payment.ToReservation()
	outbox := models.NewInvoiceMessage(res, property, payment)

	materialized, err := s.materialize(ctx, res, outbox)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "materialize failed")
		s.audit.RecordError(ctx, models.PaymentEventError, source, session.ID, err, "STORE_ERROR")
		return nil, err
	}

	result := &models.ReconcileResult{
		Reservation: materialized.Reservation,
		Property:    property,
		Payer:       payment.Payer,
		Outcome:     models.OutcomeCreated,
	}

	audit := models.NewPaymentAudit(models.PaymentEventReservationCreated, source).
		SetSession(session.ID).
		SetReservation(result.Reservation.ID).
		SetAmount(result.Reservation.TotalPrice, payment.Currency)

	logFields := logrus.Fields{
		"session_id":     session.ID,
		"reservation_id": result.Reservation.ID,
		"property_id":    property.ID,
		"source":         source,
	}

	switch {
	case !materialized.Created:
		result.Outcome = models.OutcomeDuplicate
		result.Payer.ID = result.Reservation.CreatedBy
		audit.EventType = models.PaymentEventReservationDuplicate
		audit.MarkAsDuplicate()
		s.logger.WithFields(logFields).Info("Checkout session already reconciled")

	case len(materialized.ConflictingIDs) > 0:
		result.Outcome = models.OutcomeConflict
		result.Conflict = &models.BookingConflict{
			ReservationID:  result.Reservation.ID,
			PropertyID:     property.ID,
			SessionID:      session.ID,
			ConflictingIDs: materialized.ConflictingIDs,
		}
		audit.EventType = models.PaymentEventReservationConflict
		logFields["conflicting_ids"] = materialized.ConflictingIDs
		s.logger.WithFields(logFields).Error("BOOKING CONFLICT: paid reservation overlaps another session")

	default:
		s.logger.WithFields(logFields).Info("Reservation created from confirmed payment")
	}

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	s.audit.Record(ctx, audit.SetProcessingTime(startTime))

	return result, nil
}

// confirmedSession authenticates the event and returns the paid session it refers to
func (s *ReconciliationService) confirmedSession(ctx context.Context, event models.PaymentConfirmationEvent) (*ProcessorSession, error) {
	var session *ProcessorSession

	switch ev := event.(type) {
	case models.WebhookConfirmation:
		parsed, err := s.processor.ParseWebhook(ev.Payload, ev.Signature)
		if err != nil {
			if errors.Is(err, ErrInvalidSignature) {
				s.audit.RecordError(ctx, models.PaymentEventSignatureInvalid, ev.Source(), "", err, "INVALID_SIGNATURE")
				return nil, &models.AuthenticityError{Reason: "webhook signature verification failed", Err: err}
			}
			s.audit.RecordError(ctx, models.PaymentEventError, ev.Source(), "", err, models.CodeInvalidMetadata)
			return nil, models.NewValidationError(models.CodeInvalidMetadata, "webhook payload could not be decoded: %v", err)
		}
		if parsed.Type != EventCheckoutSessionCompleted || parsed.Session == nil {
			s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventIgnored, ev.Source()).
				SetPaymentStatus(parsed.Type))
			s.logger.WithFields(logrus.Fields{
				"event_id":   parsed.ID,
				"event_type": parsed.Type,
			}).Debug("Ignoring webhook event")
			return nil, models.ErrEventIgnored
		}
		session = parsed.Session

	case models.RedirectConfirmation:
		if ev.SessionID == "" {
			return nil, models.NewValidationError(models.CodeMissingSessionID, "session_id is required")
		}
		fetched, err := s.processor.GetSession(ctx, ev.SessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				s.audit.RecordError(ctx, models.PaymentEventError, ev.Source(), ev.SessionID, err, "SESSION_NOT_FOUND")
				return nil, &models.AuthenticityError{Reason: "unknown checkout session", Err: err}
			}
			s.audit.RecordError(ctx, models.PaymentEventError, ev.Source(), ev.SessionID, err, "PROCESSOR_ERROR")
			return nil, err
		}
		session = fetched

	default:
		return nil, fmt.Errorf("unsupported payment confirmation %T", event)
	}

	if !session.IsPaid() {
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSessionUnpaid, event.Source()).
			SetSession(session.ID).
			SetPaymentStatus(session.PaymentStatus))
		return nil, &models.AuthenticityError{
			Reason: fmt.Sprintf("session %s payment_status is %q", session.ID, session.PaymentStatus),
		}
	}

	return session, nil
}

// normalize reduces a verified session to the payment to materialize. The
// amount comes from the processor; the metadata total is informational.
// The payer is always created_by from the signed session metadata. A redirect
// from a different signed-in caller is rejected before anything is written.
func (s *ReconciliationService) normalize(session *ProcessorSession, event models.PaymentConfirmationEvent) (*models.ConfirmedPayment, error) {
	intent, err := models.IntentFromMetadata(session.ID, session.Metadata)
	if err != nil {
		return nil, err
	}
	if err := ValidateRange(intent.StartDate, intent.EndDate); err != nil {
		return nil, err
	}

	payer := models.PayerSummary{
		ID:    intent.CreatedBy,
		Email: session.CustomerEmail,
		Name:  session.CustomerName,
	}
	if redirect, ok := event.(models.RedirectConfirmation); ok && redirect.Payer != nil && *redirect.Payer != intent.CreatedBy {
		return nil, &models.AuthenticityError{
			Reason: fmt.Sprintf("session %s was not paid by the signed-in caller", session.ID),
		}
	}

	return &models.ConfirmedPayment{
		SessionID:  session.ID,
		PropertyID: intent.PropertyID,
		StartDate:  intent.StartDate,
		EndDate:    intent.EndDate,
		Guests:     intent.Guests,
		TotalPrice: session.AmountMajor(),
		Currency:   session.Currency,
		Payer:      payer,
		Source:     event.Source(),
	}, nil
}

func (s *ReconciliationService) loadProperty(ctx context.Context, payment *models.ConfirmedPayment) (*models.Property, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	property, err := s.properties.GetByID(lookupCtx, payment.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property != nil {
		return property, nil
	}

	s.raisePropertyMissing(ctx, payment)
	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventPropertyMissing, payment.Source).
		SetSession(payment.SessionID).
		SetAmount(payment.TotalPrice, payment.Currency))

	return nil, &models.NotFoundError{Resource: "property", ID: payment.PropertyID.String()}
}

// raisePropertyMissing records a PROPERTY_MISSING alert once per session.
// Money was captured for a listing that no longer exists and needs a refund.
func (s *ReconciliationService) raisePropertyMissing(ctx context.Context, payment *models.ConfirmedPayment) {
	fields := logrus.Fields{
		"session_id":  payment.SessionID,
		"property_id": payment.PropertyID,
		"amount":      payment.TotalPrice,
		"payer":       payment.Payer.ID,
	}
	s.logger.WithFields(fields).Error("PROPERTY MISSING: payment captured for deleted property")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.queryTimeout)
	defer cancel()

	exists, err := s.alerts.ExistsForSession(ctx, models.AlertPropertyMissing, payment.SessionID)
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Failed to check existing property alert")
		return
	}
	if exists {
		return
	}
	if err := s.alerts.Create(ctx, models.NewPropertyMissingAlert(payment)); err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Failed to record property missing alert")
	}
}

func (s *ReconciliationService) materialize(ctx context.Context, res *models.Reservation, outbox *models.OutboxMessage) (*database.MaterializeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	result, err := s.reservations.Materialize(ctx, res, outbox)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize reservation: %w", err)
	}
	return result, nil
}
