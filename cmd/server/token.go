package main

import (
	"fmt"
	"time"

	"notesync-server/internal/config"
	"notesync-server/internal/service"
	"notesync-server/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			st, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, st.Close())
			}()

			if _, err := service.NewUserService(st.Users).GetByID(cmd.Context(), userID); err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}

			authService := service.NewAuthService(st.Users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
			token, err := authService.IssueToken(userID, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to issue the token for")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_EXPIRATION)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
