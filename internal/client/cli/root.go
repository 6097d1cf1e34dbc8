// Package cli implements the sigauth command line: account signup and
// login against a sigauth server, plus the operator commands that mint
// challenge keys and invitations.
package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/client/client"
	clientconfig "github.com/dmitrijs2005/sigauth/internal/client/config"
	"github.com/dmitrijs2005/sigauth/internal/client/services"
	"github.com/dmitrijs2005/sigauth/internal/credential"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configFile string
	server     string
	cache      string
	origin     string
	timeout    time.Duration
	iterations int
}

// NewRootCommand creates the sigauth command tree.
func NewRootCommand() *cobra.Command {
	o := &globalOptions{}

	var defaults clientconfig.Config
	defaults.LoadDefaults()

	cmd := &cobra.Command{
		Use:   "sigauth",
		Short: "Password-derived key credential client",
		Long: `sigauth signs up and logs in to a sigauth server. The password never
leaves this machine: it unwraps an ECDSA key that signs login challenges.`,
		SilenceUsage:      true,
		PersistentPreRunE: o.applyConfigFile,
	}

	cmd.PersistentFlags().StringVar(&o.configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&o.server, "server", defaults.ServerURL, "server base URL")
	cmd.PersistentFlags().StringVar(&o.cache, "cache", defaults.CachePath, "local session cache (SQLite)")
	cmd.PersistentFlags().StringVar(&o.origin, "origin", defaults.Origin, "Origin header sent with every request")
	cmd.PersistentFlags().DurationVar(&o.timeout, "timeout", defaults.RequestTimeout, "per-request timeout")
	cmd.PersistentFlags().IntVar(&o.iterations, "iterations", credential.DefaultIterations, "PBKDF2 iterations for new credentials")
	_ = cmd.PersistentFlags().MarkHidden("iterations")

	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newInviteCmd())
	cmd.AddCommand(newSignupCmd(o))
	cmd.AddCommand(newLoginCmd(o))
	cmd.AddCommand(newWhoamiCmd(o))
	cmd.AddCommand(newLogoutCmd(o))
	cmd.AddCommand(newPingCmd(o))

	return cmd
}

// applyConfigFile fills every flag the user did not set from --config.
func (o *globalOptions) applyConfigFile(cmd *cobra.Command, _ []string) error {
	if o.configFile == "" {
		return nil
	}
	cfg, err := clientconfig.LoadConfig(o.configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("path", o.configFile).Wrap(err)
	}

	flags := cmd.Flags()
	if !flags.Changed("server") {
		o.server = cfg.ServerURL
	}
	if !flags.Changed("cache") {
		o.cache = cfg.CachePath
	}
	if !flags.Changed("origin") {
		o.origin = cfg.Origin
	}
	if !flags.Changed("timeout") {
		o.timeout = cfg.RequestTimeout
	}
	return nil
}

// openService opens the local cache and binds it to an HTTP client for
// the configured server. The returned func closes the cache.
func (o *globalOptions) openService(ctx context.Context) (services.AuthService, func(), error) {
	if err := os.MkdirAll(filepath.Dir(o.cache), 0o700); err != nil {
		return nil, nil, oops.Code("CACHE_OPEN_FAILED").With("path", o.cache).Wrap(err)
	}
	repos, err := client.InitDatabase(ctx, o.cache)
	if err != nil {
		return nil, nil, oops.Code("CACHE_OPEN_FAILED").With("path", o.cache).Wrap(err)
	}

	copts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: o.timeout})}
	if o.origin != "" {
		copts = append(copts, client.WithOrigin(o.origin))
	}
	c := client.NewHTTPClient(o.server, copts...)

	svc := services.NewAuthService(c, repos.DB, services.WithIterations(o.iterations))
	return svc, func() { _ = repos.DB.Close() }, nil
}
