package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/staybook/reservation-engine/internal/models"
)

const bookingAlertColumns = `
	id, alert_type, session_id, property_id, reservation_id, details,
	resolved, resolved_by, resolved_at, created_at
`

// BookingAlertRepository stores operational booking alerts
type BookingAlertRepository struct {
	db *sqlx.DB
}

// NewBookingAlertRepository creates a new booking alert repository
func NewBookingAlertRepository(db *sqlx.DB) *BookingAlertRepository {
	return &BookingAlertRepository{db: db}
}

func insertBookingAlert(ctx context.Context, ext sqlx.ExecerContext, alert *models.BookingAlert) error {
	query := `
		INSERT INTO booking_alerts (
			id, alert_type, session_id, property_id, reservation_id, details, resolved, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`
	if _, err := ext.ExecContext(ctx, query,
		alert.ID, alert.AlertType, alert.SessionID, alert.PropertyID, alert.ReservationID, alert.Details, alert.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create booking alert: %w", err)
	}
	return nil
}

// Create stores a new alert
func (r *BookingAlertRepository) Create(ctx context.Context, alert *models.BookingAlert) error {
	return insertBookingAlert(ctx, r.db, alert)
}

// ExistsForSession reports whether an alert of the given type was already raised for a session
func (r *BookingAlertRepository) ExistsForSession(ctx context.Context, alertType models.BookingAlertType, sessionID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM booking_alerts WHERE alert_type = $1 AND session_id = $2)`,
		alertType, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to check booking alert: %w", err)
	}
	return exists, nil
}

// ListUnresolved returns unresolved alerts, newest first
func (r *BookingAlertRepository) ListUnresolved(ctx context.Context, limit, offset int) ([]models.BookingAlert, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM booking_alerts WHERE resolved = FALSE`); err != nil {
		return nil, 0, fmt.Errorf("failed to count booking alerts: %w", err)
	}

	query := `
		SELECT ` + bookingAlertColumns + `
		FROM booking_alerts
		WHERE resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	alerts := []models.BookingAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list booking alerts: %w", err)
	}

	return alerts, total, nil
}

// Resolve marks an alert resolved. Returns false when the alert does not exist
// or was already resolved.
func (r *BookingAlertRepository) Resolve(ctx context.Context, id, resolvedBy uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE booking_alerts
		SET resolved = TRUE, resolved_by = $2, resolved_at = $3
		WHERE id = $1 AND resolved = FALSE
	`, id, resolvedBy, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to resolve booking alert: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// CountUnresolvedOlderThan counts unresolved alerts raised before the cutoff
func (r *BookingAlertRepository) CountUnresolvedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM booking_alerts WHERE resolved = FALSE AND created_at < $1`, cutoff)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count stale booking alerts: %w", err)
	}
	return count, nil
}
