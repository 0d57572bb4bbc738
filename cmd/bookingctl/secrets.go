package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/staybook/reservation-engine/internal/utils"
	"github.com/staybook/reservation-engine/pkg/jwt"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func generateSecretsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-secrets",
		Short: "Generate a JWT signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := utils.GenerateJWTSecret()
			if err != nil {
				return fmt.Errorf("failed to generate secret: %w", err)
			}

			fmt.Println("Add this to your .env file or secret store:")
			fmt.Println()
			fmt.Printf("JWT_SECRET=%s\n", secret)
			fmt.Println()
			fmt.Println("The same secret must be configured on the identity service.")
			return nil
		},
	}
}

func issueTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		name   string
		roles  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign an access token for local testing",
		Long: `Signs an access token with JWT_SECRET. Production tokens come from the
identity service; this is for local development and smoke tests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user-id: %w", err)
				}
				id = parsed
			}

			var roleList []string
			for _, r := range strings.Split(roles, ",") {
				if r = strings.TrimSpace(r); r != "" {
					roleList = append(roleList, r)
				}
			}

			token, err := jwt.NewService(secret, ttl).GenerateAccessToken(id, email, name, roleList)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "subject user id (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "name claim")
	cmd.Flags().StringVar(&roles, "roles", "guest", "comma separated roles")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
