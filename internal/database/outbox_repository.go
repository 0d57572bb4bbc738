package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/staybook/reservation-engine/internal/models"
)

const outboxColumns = `
	id, aggregate_id, event_type, payload, status, attempts, last_error, created_at, processed_at, claimed_until
`

// outboxClaimLease must outlast one dispatch batch. A message whose lease has
// expired without being marked is claimed again.
const outboxClaimLease = 5 * time.Minute

// OutboxRepository stores side-effect tasks written alongside reservations
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func insertOutboxMessage(ctx context.Context, ext sqlx.ExecerContext, msg *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_id, event_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := ext.ExecContext(ctx, query,
		msg.ID, msg.AggregateID, msg.EventType, msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to enqueue outbox message: %w", err)
	}
	return nil
}

// Enqueue writes a message outside of a reservation transaction
func (r *OutboxRepository) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	return insertOutboxMessage(ctx, r.db, msg)
}

// ClaimPending leases up to limit pending messages to the caller and
// increments their attempt counter. Messages under another dispatcher's
// unexpired lease are skipped. Delivery is at-least-once.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit, maxAttempts int) ([]models.OutboxMessage, error) {
	query := `
		UPDATE outbox_messages
		SET attempts = attempts + 1,
		    claimed_until = NOW() + ($3 * INTERVAL '1 second')
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = 'pending' AND attempts < $2
			  AND (claimed_until IS NULL OR claimed_until < NOW())
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	messages := []models.OutboxMessage{}
	lease := int(outboxClaimLease / time.Second)
	if err := r.db.SelectContext(ctx, &messages, query, limit, maxAttempts, lease); err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}

	return messages, nil
}

// MarkSent records successful delivery
func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_messages
		SET status = 'sent', last_error = NULL, processed_at = $2, claimed_until = NULL
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to mark outbox message sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure. When final is true the message is
// parked as failed and no longer retried.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, final bool) error {
	status := models.OutboxPending
	var processedAt *time.Time
	if final {
		status = models.OutboxFailed
		now := time.Now()
		processedAt = &now
	}

	query := `
		UPDATE outbox_messages
		SET status = $2, last_error = $3, processed_at = $4, claimed_until = NULL
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, status, reason, processedAt); err != nil {
		return fmt.Errorf("failed to mark outbox message failed: %w", err)
	}
	return nil
}

// CountByStatus returns message counts grouped by status
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error) {
	var rows []struct {
		Status models.OutboxStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM outbox_messages GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count outbox messages: %w", err)
	}

	counts := make(map[models.OutboxStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
