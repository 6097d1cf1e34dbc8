package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/challenge"
	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/server"
	"github.com/dmitrijs2005/sigauth/internal/server/config"
	"github.com/dmitrijs2005/sigauth/internal/server/models"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/repomanager"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// openStore is a test seam for server.OpenStore.
var openStore = server.OpenStore

func defaultDSN() string {
	var c config.Config
	c.LoadDefaults()
	return c.DatabaseDSN
}

func newKeygenCmd() *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a login challenge signing key",
		Long: `Generate a fresh ECDSA P-521 key pair for signing login challenges and
print it as the secret document the server loads at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := challenge.GenerateSecret()
			if err != nil {
				return oops.Code("KEYGEN_FAILED").Wrap(err)
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(append(secret, '\n'))
				return err
			}

			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(out, flags, 0o600)
			if err != nil {
				return oops.Code("KEYGEN_FAILED").With("path", out).Wrap(err)
			}
			if _, err := f.Write(secret); err != nil {
				_ = f.Close()
				return oops.Code("KEYGEN_FAILED").With("path", out).Wrap(err)
			}
			if err := f.Close(); err != nil {
				return oops.Code("KEYGEN_FAILED").With("path", out).Wrap(err)
			}
			cmd.Printf("Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the secret to this file instead of stdout")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newInviteCmd() *cobra.Command {
	var (
		dsn         string
		inviter     string
		inviterName string
		uses        int
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create an invitation code directly in the server database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uses < 1 {
				return oops.Code("CONFIG_INVALID").Errorf("--uses must be at least 1")
			}
			if ttl <= 0 {
				return oops.Code("CONFIG_INVALID").Errorf("--ttl must be positive")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, dsn)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer store.Close()

			if err := store.RunMigrations(ctx); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}

			inv := &models.Invitation{
				Code:          ulid.Make().String(),
				InviterID:     inviter,
				ExpiresAt:     time.Now().Add(ttl).UTC(),
				RemainingUses: uses,
			}

			err = store.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
				if inviterName != "" {
					err := r.Profiles.Create(ctx, &models.Profile{UserID: inviter, DisplayName: inviterName})
					if err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
						return err
					}
				}
				return r.Invitations.Create(ctx, inv)
			})
			if err != nil {
				return oops.Code("INVITE_FAILED").With("inviter", inviter).Wrap(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), inv.Code)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", defaultDSN(), "server database DSN")
	cmd.Flags().StringVar(&inviter, "inviter", "", "user id credited as the inviter")
	cmd.Flags().StringVar(&inviterName, "inviter-name", "", "create the inviter's profile with this display name if missing")
	cmd.Flags().IntVar(&uses, "uses", 1, "number of signups the code admits")
	cmd.Flags().DurationVar(&ttl, "ttl", 7*24*time.Hour, "how long the code stays valid")
	_ = cmd.MarkFlagRequired("inviter")

	return cmd
}
