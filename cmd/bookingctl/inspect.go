package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/staybook/reservation-engine/internal/database"
)

func inspectSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect-session [session-id]",
		Short: "Show the reservation and payment audit trail of a checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			reservations := database.NewReservationRepository(db.DB)
			audits := database.NewPaymentAuditRepository(db.DB, newLogger())

			count, err := reservations.CountBySession(ctx, sessionID)
			if err != nil {
				return err
			}
			reservation, err := reservations.GetBySessionID(ctx, sessionID)
			if err != nil {
				return err
			}
			trail, err := audits.GetBySessionID(ctx, sessionID)
			if err != nil {
				return err
			}

			fmt.Printf("session %s: %d reservation row(s)\n", sessionID, count)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"reservation": reservation,
				"audit_trail": trail,
			})
		},
	}
	return cmd
}
