package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/staybook/reservation-engine/internal/config"
	"github.com/staybook/reservation-engine/internal/database"
	"github.com/staybook/reservation-engine/internal/services"
)

func dispatchOutboxCmd() *cobra.Command {
	var (
		batchSize   int
		maxAttempts int
		smtpHost    string
		smtpPort    int
	)

	cmd := &cobra.Command{
		Use:   "dispatch-outbox",
		Short: "Deliver one batch of pending outbox messages now",
		Long: `Claims up to --batch-size pending outbox messages and delivers them,
exactly as the server's scheduled job does. Without --smtp-host the
invoices are logged instead of sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			logger := newLogger()
			outbox := database.NewOutboxRepository(db.DB)

			var mailer services.Mailer = services.NewLogMailer(logger)
			if smtpHost != "" {
				mailer = services.NewSMTPMailer(config.SMTPConfig{
					Host:     smtpHost,
					Port:     smtpPort,
					Username: envOr("SMTP_USERNAME", ""),
					Password: envOr("SMTP_PASSWORD", ""),
					From:     envOr("SMTP_FROM", "bookings@staybook.local"),
				})
			}

			dispatcher := services.NewNotificationDispatcher(outbox, mailer, config.OutboxConfig{
				BatchSize:   batchSize,
				MaxAttempts: maxAttempts,
			}, logger)

			stats, err := dispatcher.DispatchPending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("claimed=%d sent=%d failed=%d\n", stats.Claimed, stats.Sent, stats.Failed)

			counts, err := outbox.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			for status, n := range counts {
				fmt.Printf("  %-8s %d\n", status, n)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 20, "maximum messages to claim")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 5, "attempts before a message is parked")
	cmd.Flags().StringVar(&smtpHost, "smtp-host", envOr("SMTP_HOST", ""), "SMTP relay host")
	cmd.Flags().IntVar(&smtpPort, "smtp-port", 587, "SMTP relay port")
	return cmd
}
