package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/staybook/reservation-engine/internal/models"
)

// ReservationLister reads reservations for calendars and guest history
type ReservationLister interface {
	ListPaidForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReservationWithProperty, error)
}

// ReservationQueryService serves read-only reservation views
type ReservationQueryService struct {
	reservations ReservationLister
	properties   PropertyReader
	queryTimeout time.Duration
}

// NewReservationQueryService creates a new reservation query service
func NewReservationQueryService(reservations ReservationLister, properties PropertyReader, queryTimeout time.Duration) *ReservationQueryService {
	return &ReservationQueryService{
		reservations: reservations,
		properties:   properties,
		queryTimeout: queryTimeout,
	}
}

// PropertyCalendar returns the paid date ranges of a property
func (s *ReservationQueryService) PropertyCalendar(ctx context.Context, propertyID uuid.UUID) ([]models.ReservationDates, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	property, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return nil, &models.NotFoundError{Resource: "property", ID: propertyID.String()}
	}

	reservations, err := s.reservations.ListPaidForProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	dates := make([]models.ReservationDates, 0, len(reservations))
	for i := range reservations {
		dates = append(dates, reservations[i].ToDates())
	}
	return dates, nil
}

// UserReservations returns the caller's reservations, newest first
func (s *ReservationQueryService) UserReservations(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.UserReservationItem, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > models.MaxListingPageSize {
		pageSize = models.DefaultListingPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.reservations.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]models.UserReservationItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToUserItem())
	}
	return items, nil
}
