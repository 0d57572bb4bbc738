package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/staybook/reservation-engine/internal/utils"
)

// PaymentAuditStore persists payment audit entries
type PaymentAuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

type requestMetaKey struct{}

// RequestMeta is the caller information attached to audit entries
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches caller information to ctx for audit logging
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, RequestMeta{IPAddress: ip, UserAgent: userAgent})
}

// RequestMetaFrom returns the caller information attached by WithRequestMeta
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

// PaymentAuditService records the payment audit trail. Audit failures are
// logged and never fail the payment flow.
type PaymentAuditService struct {
	store   PaymentAuditStore
	enabled bool
	logger  *logrus.Logger
}

// NewPaymentAuditService creates a new payment audit service
func NewPaymentAuditService(store PaymentAuditStore, enabled bool, logger *logrus.Logger) *PaymentAuditService {
	return &PaymentAuditService{
		store:   store,
		enabled: enabled,
		logger:  logger,
	}
}

// Record writes an audit entry enriched with request metadata from ctx
func (s *PaymentAuditService) Record(ctx context.Context, audit *models.PaymentAudit) {
	if s == nil || !s.enabled || audit == nil {
		return
	}

	if meta, ok := RequestMetaFrom(ctx); ok {
		audit.SetMetadata(meta.IPAddress, meta.UserAgent)
		audit.SetDeviceInfo(models.JSONB(utils.ParseUserAgent(meta.UserAgent).ToMap()))
	}

	// the audit trail must survive a request that was cancelled mid-flight
	if err := s.store.Log(context.WithoutCancel(ctx), audit); err != nil {
		s.logger.WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"source":     audit.EventSource,
			"error":      err.Error(),
		}).Error("AUDIT ERROR: failed to record payment audit")
	}
}

// RecordError writes an error entry for a failed payment step
func (s *PaymentAuditService) RecordError(ctx context.Context, eventType models.PaymentEventType, source models.PaymentEventSource, sessionID string, err error, code string) {
	s.Record(ctx, models.NewPaymentAudit(eventType, source).
		SetSession(sessionID).
		SetError(err.Error(), code))
}
