package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosuda/callbridge/internal/auth"
)

func newAdminTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a token for the admin API",
		Long: `Mint a signed admin token using CALLBRIDGE_ADMIN_JWT_SECRET. Present it as
"Authorization: Bearer <token>", or as ?token= on the live feed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("CALLBRIDGE_ADMIN_JWT_SECRET")
			if len(secret) < 32 {
				return errors.New("CALLBRIDGE_ADMIN_JWT_SECRET must be set to at least 32 characters")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}

			tok, err := auth.IssueAdminToken(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Name of the operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")

	return cmd
}
