package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var engineTables = []string{
	"payment_audit_logs",
	"outbox_messages",
	"booking_alerts",
	"reservations",
	"property_favorites",
}

func clearDataCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear-data",
		Short: "Truncate reservation engine tables (development only)",
		Long: `Truncates reservations, alerts, outbox messages, favorites and the
payment audit trail. Properties are owned by the catalog and are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to truncate without --yes")
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if _, err := db.ExecContext(ctx, `
				TRUNCATE TABLE
					payment_audit_logs,
					outbox_messages,
					booking_alerts,
					reservations,
					property_favorites
				RESTART IDENTITY CASCADE`); err != nil {
				return fmt.Errorf("failed to truncate tables: %w", err)
			}

			fmt.Println("Post-clear row counts:")
			for _, table := range engineTables {
				var count int
				if err := db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
					return fmt.Errorf("failed to count %s: %w", table, err)
				}
				fmt.Printf("  %-20s %d\n", table, count)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the truncation")
	return cmd
}
