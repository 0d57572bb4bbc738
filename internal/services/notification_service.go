package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/config"
	"github.com/staybook/reservation-engine/internal/models"
	"gopkg.in/gomail.v2"
)

// Mailer delivers HTML email
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer from SMTP settings
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one message. gomail has no context support; the dialer's
// own timeouts apply.
func (m *SMTPMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer logs messages instead of sending them. Used when SMTP is not configured.
type LogMailer struct {
	logger *logrus.Logger
}

// NewLogMailer creates a logging mailer
func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Email not sent (SMTP not configured)")
	return nil
}

// OutboxStore is the outbox queue drained by the dispatcher
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit, maxAttempts int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, final bool) error
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Your reservation is confirmed</h2>
  <p>Hi {{if .PayerName}}{{.PayerName}}{{else}}there{{end}},</p>
  <p>Thank you for booking <strong>{{.PropertyName}}</strong>{{if .PropertyAddr}} in {{.PropertyAddr}}{{end}}.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td>Reservation</td><td>{{.ReservationID}}</td></tr>
    <tr><td>Check-in</td><td>{{.StartDate}}</td></tr>
    <tr><td>Check-out</td><td>{{.EndDate}}</td></tr>
    <tr><td>Nights</td><td>{{.NumberOfNights}}</td></tr>
    <tr><td>Guests</td><td>{{.Guests}}</td></tr>
    <tr><td><strong>Total paid</strong></td><td><strong>{{printf "%.2f" .TotalPrice}} {{.Currency}}</strong></td></tr>
  </table>
  <p style="color: #888; font-size: 12px;">Payment reference {{.SessionID}}</p>
</body>
</html>`))

// RenderInvoice renders the invoice email body
func RenderInvoice(payload *models.InvoicePayload) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.String(), nil
}

// DispatchStats summarizes one dispatcher run
type DispatchStats struct {
	Claimed int
	Sent    int
	Failed  int
}

// NotificationDispatcher delivers outbox messages. Delivery is
// at-least-once; a message is retried until maxAttempts and then parked.
type NotificationDispatcher struct {
	outbox      OutboxStore
	mailer      Mailer
	batchSize   int
	maxAttempts int
	logger      *logrus.Logger
}

// NewNotificationDispatcher creates a new dispatcher
func NewNotificationDispatcher(outbox OutboxStore, mailer Mailer, cfg config.OutboxConfig, logger *logrus.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		outbox:      outbox,
		mailer:      mailer,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
}

// DispatchPending claims one batch of pending messages and delivers them
func (d *NotificationDispatcher) DispatchPending(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats

	messages, err := d.outbox.ClaimPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(messages)

	for i := range messages {
		msg := &messages[i]
		logger := d.logger.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"event_type": msg.EventType,
			"attempt":    msg.Attempts,
		})

		deliverErr := d.deliver(ctx, msg)
		if deliverErr == nil {
			if err := d.outbox.MarkSent(ctx, msg.ID); err != nil {
				logger.WithError(err).Error("Failed to mark outbox message sent")
			}
			stats.Sent++
			continue
		}

		stats.Failed++
		final := msg.Attempts >= d.maxAttempts
		if _, unknown := deliverErr.(unknownEventError); unknown {
			final = true
		}
		logger.WithError(deliverErr).WithField("final", final).Warn("Outbox delivery failed")
		if err := d.outbox.MarkFailed(ctx, msg.ID, deliverErr.Error(), final); err != nil {
			logger.WithError(err).Error("Failed to mark outbox message failed")
		}
	}

	if stats.Claimed > 0 {
		d.logger.WithFields(logrus.Fields{
			"claimed": stats.Claimed,
			"sent":    stats.Sent,
			"failed":  stats.Failed,
		}).Info("Outbox batch dispatched")
	}

	return stats, nil
}

type unknownEventError string

func (e unknownEventError) Error() string {
	return fmt.Sprintf("no handler for outbox event %q", string(e))
}

func (d *NotificationDispatcher) deliver(ctx context.Context, msg *models.OutboxMessage) error {
	switch msg.EventType {
	case models.OutboxEventReservationCreated:
		return d.sendInvoice(ctx, msg)
	default:
		return unknownEventError(msg.EventType)
	}
}

func (d *NotificationDispatcher) sendInvoice(ctx context.Context, msg *models.OutboxMessage) error {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode invoice payload: %w", err)
	}
	var payload models.InvoicePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode invoice payload: %w", err)
	}
	if payload.PayerEmail == "" {
		d.logger.WithField("reservation_id", payload.ReservationID).Warn("Invoice skipped: no payer email")
		return nil
	}

	body, err := RenderInvoice(&payload)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Booking confirmed: %s (%s to %s)", payload.PropertyName, payload.StartDate, payload.EndDate)
	return d.mailer.Send(ctx, payload.PayerEmail, subject, body)
}
