package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/staybook/reservation-engine/internal/models"
)

const reservationColumns = `
	id, property_id, start_date, end_date, number_of_nights, guests, total_price,
	stripe_checkout_id, has_paid, conflict_flagged, created_by, created_at
`

// MaterializeResult is the outcome of an insert-if-absent
type MaterializeResult struct {
	Reservation *models.Reservation
	// Created is false when the session had already been materialized
	Created bool
	// ConflictingIDs lists paid reservations of other sessions that overlap
	ConflictingIDs []uuid.UUID
}

// ReservationRepository handles reservation storage
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// paidOverlap is the half-open overlap predicate against a paid reservation.
// The two %d verbs take the placeholder indexes of the range end and start,
// in that order. alias qualifies the reservations columns when non-empty.
func paidOverlap(alias string) string {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	return col("has_paid") + " = TRUE AND " + col("start_date") + " < $%d AND " + col("end_date") + " > $%d"
}

// HasPaidOverlap reports whether a paid reservation overlaps [start, end)
func (r *ReservationRepository) HasPaidOverlap(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM reservations WHERE property_id = $1 AND `+paidOverlap("")+`)`, 2, 3)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, propertyID, end, start); err != nil {
		return false, fmt.Errorf("failed to check reservation overlap: %w", err)
	}

	return exists, nil
}

// BlockedPropertyIDs returns which of the given properties have a paid
// reservation overlapping [start, end)
func (r *ReservationRepository) BlockedPropertyIDs(ctx context.Context, propertyIDs []uuid.UUID, start, end time.Time) ([]uuid.UUID, error) {
	if len(propertyIDs) == 0 {
		return []uuid.UUID{}, nil
	}

	ids := make([]string, len(propertyIDs))
	for i, id := range propertyIDs {
		ids[i] = id.String()
	}
	query := fmt.Sprintf(`SELECT DISTINCT property_id FROM reservations WHERE property_id = ANY($1::uuid[]) AND `+paidOverlap(""), 2, 3)

	blocked := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &blocked, query, pq.Array(ids), end, start); err != nil {
		return nil, fmt.Errorf("failed to find blocked properties: %w", err)
	}

	return blocked, nil
}

// GetBySessionID returns the reservation for a checkout session, or nil
func (r *ReservationRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE stripe_checkout_id = $1`

	var reservation models.Reservation
	err := r.db.GetContext(ctx, &reservation, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by session: %w", err)
	}

	return &reservation, nil
}

// Materialize inserts the reservation unless one already exists for its
// checkout session. The unique constraint on stripe_checkout_id is the
// idempotency guard; the per-property advisory lock serializes overlap
// detection so concurrent sessions for the same dates see each other.
//
// When the row is new, the outbox message (if any) and a conflict alert
// (when overlaps were found) are written in the same transaction.
func (r *ReservationRepository) Materialize(ctx context.Context, res *models.Reservation, outbox *models.OutboxMessage) (*MaterializeResult, error) {
	sessionID := res.SessionID()
	if sessionID == "" {
		return nil, fmt.Errorf("reservation has no checkout session id")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, res.PropertyID.String()); err != nil {
		return nil, fmt.Errorf("failed to lock property: %w", err)
	}

	var conflicting []uuid.UUID
	overlapQuery := fmt.Sprintf(`
		SELECT id FROM reservations
		WHERE property_id = $1 AND `+paidOverlap("")+`
		  AND stripe_checkout_id IS DISTINCT FROM $4
		ORDER BY created_at
	`, 2, 3)
	err = tx.SelectContext(ctx, &conflicting, overlapQuery, res.PropertyID, res.EndDate, res.StartDate, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check overlapping reservations: %w", err)
	}
	res.ConflictFlagged = len(conflicting) > 0

	insert := `
		INSERT INTO reservations (
			id, property_id, start_date, end_date, number_of_nights, guests, total_price,
			stripe_checkout_id, has_paid, conflict_flagged, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stripe_checkout_id) DO NOTHING
		RETURNING ` + reservationColumns

	var inserted models.Reservation
	err = tx.GetContext(ctx, &inserted, insert,
		res.ID, res.PropertyID, res.StartDate, res.EndDate, res.NumberOfNights, res.Guests, res.TotalPrice,
		sessionID, res.HasPaid, res.ConflictFlagged, res.CreatedBy, res.CreatedAt,
	)

	switch {
	case err == sql.ErrNoRows:
		// Another delivery path already materialized this session
		var existing models.Reservation
		if err := tx.GetContext(ctx, &existing,
			`SELECT `+reservationColumns+` FROM reservations WHERE stripe_checkout_id = $1`, sessionID); err != nil {
			return nil, fmt.Errorf("failed to fetch existing reservation: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &MaterializeResult{Reservation: &existing, Created: false}, nil

	case isUniqueViolation(err):
		tx.Rollback()
		existing, getErr := r.GetBySessionID(ctx, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, fmt.Errorf("unique violation for session %s but no reservation found: %w", sessionID, err)
		}
		return &MaterializeResult{Reservation: existing, Created: false}, nil

	case err != nil:
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	if outbox != nil {
		outbox.AggregateID = inserted.ID
		if err := insertOutboxMessage(ctx, tx, outbox); err != nil {
			return nil, err
		}
	}

	if len(conflicting) > 0 {
		alert := models.NewConflictAlert(&models.BookingConflict{
			ReservationID:  inserted.ID,
			PropertyID:     inserted.PropertyID,
			SessionID:      sessionID,
			ConflictingIDs: conflicting,
		})
		if err := insertBookingAlert(ctx, tx, alert); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &MaterializeResult{
		Reservation:    &inserted,
		Created:        true,
		ConflictingIDs: conflicting,
	}, nil
}

// ListPaidForProperty returns paid reservations of a property, oldest first
func (r *ReservationRepository) ListPaidForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE property_id = $1 AND has_paid = TRUE
		ORDER BY start_date
	`

	reservations := []models.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, propertyID); err != nil {
		return nil, fmt.Errorf("failed to list property reservations: %w", err)
	}

	return reservations, nil
}

// ListByUser returns the user's reservations joined with property details
func (r *ReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReservationWithProperty, error) {
	query := `
		SELECT
			r.id, r.property_id, r.start_date, r.end_date, r.number_of_nights, r.guests,
			r.total_price, r.stripe_checkout_id, r.has_paid, r.conflict_flagged,
			r.created_by, r.created_at,
			p.title AS property_title,
			p.country AS property_country,
			p.image_url AS property_image_url
		FROM reservations r
		JOIN properties p ON p.id = r.property_id
		WHERE r.created_by = $1
		ORDER BY r.start_date DESC
		LIMIT $2 OFFSET $3
	`

	rows := []models.ReservationWithProperty{}
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list user reservations: %w", err)
	}

	return rows, nil
}

// CountBySession returns the number of rows for a session. Used by maintenance checks.
func (r *ReservationRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM reservations WHERE stripe_checkout_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}
