package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/sigauth/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-m", "-k", "-t", "-s", "-o", "-l", "-cookie-domain", "-secrets", "-secrets-dir", "-server-timing", "-trust-proxy"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string              HTTP bind address (e.g. ":8080")
//	-d string              PostgreSQL DSN, or memory://
//	-m bool                apply migrations on start (-m=false to skip)
//	-k string              challenge key secret id
//	-t string              TLS certificate secret id
//	-s string              identity token HMAC secret
//	-o string              comma separated allowed CORS origins
//	-l string              log level
//	-cookie-domain string  session cookie domain
//	-secrets string        secrets backend: file, s3 or vault
//	-secrets-dir string    directory of the file backend
//	-server-timing bool    emit Server-Timing headers
//	-trust-proxy bool      take the client IP from X-Forwarded-For / X-Real-IP
//
// The arguments are first filtered with flagx.FilterArgs so that -c and
// flags owned by other components do not collide.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("sigauth-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.RunMigrations, "m", config.RunMigrations, "apply database migrations on start")
	fs.StringVar(&config.ChallengeSecretID, "k", config.ChallengeSecretID, "challenge key secret id")
	fs.StringVar(&config.TLSSecretID, "t", config.TLSSecretID, "TLS certificate secret id")
	fs.StringVar(&config.TokenSecret, "s", config.TokenSecret, "identity token secret key")
	origins := fs.String("o", strings.Join(config.AllowedOrigins, ","), "allowed CORS origins, comma separated")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.CookieDomain, "cookie-domain", config.CookieDomain, "session cookie domain")
	fs.StringVar(&config.Secrets.Backend, "secrets", config.Secrets.Backend, "secrets backend")
	fs.StringVar(&config.Secrets.Dir, "secrets-dir", config.Secrets.Dir, "secrets directory")
	fs.BoolVar(&config.ServerTiming, "server-timing", config.ServerTiming, "emit Server-Timing headers")
	fs.BoolVar(&config.TrustProxyHeaders, "trust-proxy", config.TrustProxyHeaders, "trust X-Forwarded-For / X-Real-IP")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AllowedOrigins = splitOrigins(*origins)
	return nil
}

func splitOrigins(s string) []string {
	out := []string{}
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
