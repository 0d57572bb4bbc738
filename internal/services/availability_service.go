package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/staybook/reservation-engine/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = tracing.Tracer("github.com/staybook/reservation-engine/internal/services")

// ReservationReader is the part of the reservation store availability depends on
type ReservationReader interface {
	HasPaidOverlap(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error)
	BlockedPropertyIDs(ctx context.Context, propertyIDs []uuid.UUID, start, end time.Time) ([]uuid.UUID, error)
}

// AvailabilityService answers whether a property can be booked for a date range.
// Ranges are half-open [start, end): a stay ending on day D does not block
// a stay starting on D. Only paid reservations block dates.
// It always reads the store, never the listing cache.
type AvailabilityService struct {
	reservations ReservationReader
	queryTimeout time.Duration
	logger       *logrus.Logger
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(reservations ReservationReader, queryTimeout time.Duration, logger *logrus.Logger) *AvailabilityService {
	return &AvailabilityService{
		reservations: reservations,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// ValidateRange rejects empty or inverted ranges
func ValidateRange(start, end time.Time) error {
	if !start.Before(end) {
		return models.NewValidationError(models.CodeInvalidDateRange,
			"start_date %s must be before end_date %s", models.FormatDate(start), models.FormatDate(end))
	}
	return nil
}

// IsAvailable reports whether no paid reservation of the property overlaps [start, end)
func (s *AvailabilityService) IsAvailable(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	if err := ValidateRange(start, end); err != nil {
		return false, err
	}

	ctx, span := tracer.Start(ctx, "availability.IsAvailable")
	defer span.End()
	span.SetAttributes(attribute.String("property_id", propertyID.String()))

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	overlap, err := s.reservations.HasPaidOverlap(ctx, propertyID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}

	return !overlap, nil
}

// FilterAvailable returns the subset of propertyIDs that are free for [start, end)
func (s *AvailabilityService) FilterAvailable(ctx context.Context, propertyIDs []uuid.UUID, start, end time.Time) (map[uuid.UUID]struct{}, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	available := make(map[uuid.UUID]struct{}, len(propertyIDs))
	if len(propertyIDs) == 0 {
		return available, nil
	}

	ctx, span := tracer.Start(ctx, "availability.FilterAvailable")
	defer span.End()
	span.SetAttributes(attribute.Int("candidates", len(propertyIDs)))

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	blocked, err := s.reservations.BlockedPropertyIDs(ctx, propertyIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to filter availability: %w", err)
	}

	blockedSet := make(map[uuid.UUID]struct{}, len(blocked))
	for _, id := range blocked {
		blockedSet[id] = struct{}{}
	}
	for _, id := range propertyIDs {
		if _, ok := blockedSet[id]; !ok {
			available[id] = struct{}{}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"candidates": len(propertyIDs),
		"available":  len(available),
	}).Debug("Filtered property availability")

	return available, nil
}
