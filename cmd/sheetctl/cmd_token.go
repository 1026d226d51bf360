package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetlens/internal/auth"
	"sheetlens/internal/config"
)

// newTokenCmd signs a token with JWT_SECRET for local testing.
func newTokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a user",
		Long: `Issue an HS256 token signed with JWT_SECRET.

The API never issues credentials itself; this command exists for local
development and smoke tests.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
			if err != nil {
				return err
			}
			token, exp, err := issuer.Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id placed in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
