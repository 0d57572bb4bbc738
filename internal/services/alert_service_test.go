package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertRepo struct {
	open   map[uuid.UUID]bool
	stale  int
	limits []int
}

func (r *fakeAlertRepo) ListUnresolved(_ context.Context, limit, _ int) ([]models.BookingAlert, int, error) {
	r.limits = append(r.limits, limit)
	alerts := []models.BookingAlert{}
	for id, open := range r.open {
		if open {
			alerts = append(alerts, models.BookingAlert{ID: id, AlertType: models.AlertBookingConflict})
		}
	}
	return alerts, len(alerts), nil
}

func (r *fakeAlertRepo) Resolve(_ context.Context, id, _ uuid.UUID) (bool, error) {
	if !r.open[id] {
		return false, nil
	}
	r.open[id] = false
	return true, nil
}

func (r *fakeAlertRepo) CountUnresolvedOlderThan(_ context.Context, _ time.Time) (int, error) {
	return r.stale, nil
}

func TestAlertService(t *testing.T) {
	id := uuid.New()
	repo := &fakeAlertRepo{open: map[uuid.UUID]bool{id: true}, stale: 2}
	svc := NewAlertService(repo, testLogger())
	ctx := context.Background()

	list, err := svc.ListUnresolved(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, []int{50}, repo.limits, "limit defaults when out of range")

	require.NoError(t, svc.Resolve(ctx, id, uuid.New()))

	err = svc.Resolve(ctx, id, uuid.New())
	assert.True(t, models.IsNotFoundError(err), "resolving twice is not found")

	stale, err := svc.ReportStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, stale)
}

func TestPaymentAuditService(t *testing.T) {
	store := &memAudit{}
	svc := NewPaymentAuditService(store, true, testLogger())

	ctx := WithRequestMeta(context.Background(), "203.0.113.9", "Stripe/1.0 (+https://stripe.com/docs/webhooks)")
	svc.Record(ctx, models.NewPaymentAudit(models.PaymentEventConfirmationReceived, models.PaymentSourceWebhook).SetSession("sess_123"))

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "203.0.113.9", *entry.IPAddress)
	assert.Equal(t, true, entry.DeviceInfo["is_bot"])

	t.Run("Disabled", func(t *testing.T) {
		disabled := NewPaymentAuditService(store, false, testLogger())
		disabled.Record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceSystem))
		assert.Len(t, store.entries, 1)
	})
}
