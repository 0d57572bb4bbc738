package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	// staleAlertSchedule runs hourly at minute 5
	staleAlertSchedule = "0 5 * * * *"
	staleAlertAge      = 24 * time.Hour
	jobTimeout         = 2 * time.Minute
)

// CronService runs the background jobs of the reservation engine
type CronService struct {
	cron           *cron.Cron
	dispatcher     *NotificationDispatcher
	alerts         *AlertService
	outboxSchedule string
	logger         *logrus.Logger
}

// NewCronService creates a new CronService. outboxSchedule uses the
// six-field format with seconds.
func NewCronService(dispatcher *NotificationDispatcher, alerts *AlertService, outboxSchedule string, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:           cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		dispatcher:     dispatcher,
		alerts:         alerts,
		outboxSchedule: outboxSchedule,
		logger:         logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.outboxSchedule, s.dispatchOutboxJob); err != nil {
		return fmt.Errorf("failed to schedule outbox dispatch job: %w", err)
	}
	s.logger.WithField("schedule", s.outboxSchedule).Info("Scheduled: outbox dispatch")

	if _, err := s.cron.AddFunc(staleAlertSchedule, s.staleAlertJob); err != nil {
		return fmt.Errorf("failed to schedule stale alert job: %w", err)
	}
	s.logger.WithField("schedule", staleAlertSchedule).Info("Scheduled: stale booking alert report")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) dispatchOutboxJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	startTime := time.Now()
	stats, err := s.dispatcher.DispatchPending(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Outbox dispatch failed")
		return
	}
	if stats.Claimed > 0 {
		s.logger.WithFields(logrus.Fields{
			"sent":     stats.Sent,
			"failed":   stats.Failed,
			"duration": time.Since(startTime).String(),
		}).Info("[CRON] Outbox dispatch finished")
	}
}

func (s *CronService) staleAlertJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.alerts.ReportStale(ctx, staleAlertAge); err != nil {
		s.logger.WithError(err).Error("[CRON] Stale alert report failed")
	}
}

// RunOutboxDispatchNow runs one dispatch batch immediately
func (s *CronService) RunOutboxDispatchNow() {
	s.dispatchOutboxJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
