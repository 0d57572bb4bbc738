package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/staybook/reservation-engine/internal/database"
)

func migrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db.DB, newLogger())

			if dryRun {
				pending, err := migrator.Pending(cmd.Context())
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Println("Schema is up to date")
					return nil
				}
				fmt.Println("Pending migrations:")
				for _, v := range pending {
					fmt.Printf("  %s\n", v)
				}
				return nil
			}

			applied, err := migrator.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Applied %d migration(s)\n", len(applied))
			for _, v := range applied {
				fmt.Printf("  %s\n", v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}
