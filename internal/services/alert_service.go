package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
)

// AlertRepository is the booking alert store used by operators
type AlertRepository interface {
	ListUnresolved(ctx context.Context, limit, offset int) ([]models.BookingAlert, int, error)
	Resolve(ctx context.Context, id, resolvedBy uuid.UUID) (bool, error)
	CountUnresolvedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertService exposes booking alerts to operators
type AlertService struct {
	alerts AlertRepository
	logger *logrus.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alerts AlertRepository, logger *logrus.Logger) *AlertService {
	return &AlertService{alerts: alerts, logger: logger}
}

// ListUnresolved returns a page of open alerts
func (s *AlertService) ListUnresolved(ctx context.Context, limit, offset int) (*models.BookingAlertListResponse, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	alerts, total, err := s.alerts.ListUnresolved(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &models.BookingAlertListResponse{Alerts: alerts, Total: total}, nil
}

// Resolve closes an alert on behalf of an operator
func (s *AlertService) Resolve(ctx context.Context, id, operator uuid.UUID) error {
	ok, err := s.alerts.Resolve(ctx, id, operator)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Resource: "open booking alert", ID: id.String()}
	}

	s.logger.WithFields(logrus.Fields{
		"alert_id": id,
		"operator": operator,
	}).Info("Booking alert resolved")
	return nil
}

// ReportStale logs how many alerts have stayed open longer than maxAge
func (s *AlertService) ReportStale(ctx context.Context, maxAge time.Duration) (int, error) {
	count, err := s.alerts.CountUnresolvedOlderThan(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to report stale alerts: %w", err)
	}
	if count > 0 {
		s.logger.WithFields(logrus.Fields{
			"count":   count,
			"max_age": maxAge.String(),
		}).Warn("Booking alerts awaiting resolution")
	}
	return count, nil
}
