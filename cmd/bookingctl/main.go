package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/staybook/reservation-engine/internal/config"
	"github.com/staybook/reservation-engine/internal/database"
)

var Version = "dev"

var databaseURL string

func main() {
	// Optional .env in the working directory keeps secrets off the command line
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "bookingctl",
		Short:   "Operator tooling for the reservation engine",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(dispatchOutboxCmd())
	rootCmd.AddCommand(inspectSessionCmd())
	rootCmd.AddCommand(generateSecretsCmd())
	rootCmd.AddCommand(issueTokenCmd())
	rootCmd.AddCommand(clearDataCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// openDB connects without loading the full service configuration
func openDB() (*database.PostgresDB, error) {
	url := databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set and --database-url was not provided")
	}

	return database.NewConnection(config.DatabaseConfig{
		URL:                url,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
}
