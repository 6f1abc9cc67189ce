// Command gen-token prints a signed bearer token for local testing.
package main

import (
	"fmt"
	"os"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/config"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gen-token",
		Short: "Print a signed bearer token for the task board API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := uuid.New()
			if user != "" {
				parsed, err := uuid.Parse(user)
				if err != nil {
					return fmt.Errorf("invalid --user %q: %w", user, err)
				}
				userID = parsed
			}
			if ttl <= 0 {
				ttl = time.Hour
			}

			token, err := auth.NewManager(cfg.JWTSecret, ttl).Generate(userID)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "user_id: %s\n", userID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to embed (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", cfg.JWTExpiry, "token lifetime")
	cmd.SetOut(os.Stdout)
	return cmd
}
