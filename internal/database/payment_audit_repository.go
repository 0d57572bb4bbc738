package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audit_logs (
			id, session_id, reservation_id,
			event_type, event_source,
			amount, currency, payment_status,
			error_message, error_code,
			processing_time_ms, is_duplicate,
			ip_address, user_agent, device_info,
			created_at
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7, $8,
			$9, $10,
			$11, $12,
			$13, $14, $15,
			$16
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.SessionID, audit.ReservationID,
		audit.EventType, audit.EventSource,
		audit.Amount, audit.Currency, audit.PaymentStatus,
		audit.ErrorMessage, audit.ErrorCode,
		audit.ProcessingTimeMs, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.DeviceInfo,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"audit_id":   audit.ID,
			"event_type": audit.EventType,
			"session_id": audit.SessionID,
			"error":      err.Error(),
		}).Error("CRITICAL: Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"source":     audit.EventSource,
	}).Debug("Payment audit logged")

	return nil
}

// GetBySessionID returns the audit trail for a checkout session, oldest first
func (r *PaymentAuditRepository) GetBySessionID(ctx context.Context, sessionID string) ([]models.PaymentAudit, error) {
	query := `
		SELECT
			id, session_id, reservation_id, event_type, event_source,
			amount, currency, payment_status, error_message, error_code,
			processing_time_ms, is_duplicate, ip_address, user_agent, device_info,
			created_at
		FROM payment_audit_logs
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	audits := []models.PaymentAudit{}
	if err := r.db.SelectContext(ctx, &audits, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get payment audits: %w", err)
	}

	return audits, nil
}
