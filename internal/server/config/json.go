package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/flagx"
	"github.com/dmitrijs2005/sigauth/internal/validator"
	"github.com/tailscale/hujson"
)

var durationNode = validator.Map(
	validator.Refine(validator.String(), func(s string) bool {
		d, err := time.ParseDuration(s)
		return err == nil && d > 0
	}, `must be a positive duration such as "90s"`),
	time.ParseDuration,
)

var positiveNode = validator.Refine(validator.Number(), func(f float64) bool { return f > 0 }, "must be positive")

var s3Node = validator.Record(
	validator.F("bucket", validator.String().Optional()),
	validator.F("prefix", validator.String().Optional()),
	validator.F("region", validator.String().Optional()),
	validator.F("endpoint", validator.String().Optional()),
	validator.F("access_key", validator.String().Optional()),
	validator.F("secret_key", validator.String().Optional()),
)

var vaultNode = validator.Record(
	validator.F("address", validator.String().Optional()),
	validator.F("token", validator.String().Optional()),
	validator.F("mount", validator.String().Optional()),
)

var secretsNode = validator.Record(
	validator.F("backend", validator.Union(
		validator.Literal("file"), validator.Literal("s3"), validator.Literal("vault"),
	).Optional()),
	validator.F("dir", validator.String().Optional()),
	validator.F("s3", s3Node.Optional()),
	validator.F("vault", vaultNode.Optional()),
)

var fileNode = validator.Record(
	validator.F("http_addr", validator.String().Optional()),
	validator.F("database_dsn", validator.String().Optional()),
	validator.F("run_migrations", validator.Boolean().Optional()),
	validator.F("cookie_domain", validator.String().Optional()),
	validator.F("challenge_secret_id", validator.String().Optional()),
	validator.F("tls_secret_id", validator.String().Optional()),
	validator.F("allowed_origins", validator.Array(validator.String()).Optional()),
	validator.F("token_secret", validator.String().Optional()),
	validator.F("token_validity", durationNode.Optional()),
	validator.F("session_validity", durationNode.Optional()),
	validator.F("max_body_bytes", positiveNode.Optional()),
	validator.F("max_request_time", durationNode.Optional()),
	validator.F("server_timing", validator.Boolean().Optional()),
	validator.F("rate_limit", positiveNode.Optional()),
	validator.F("rate_burst", positiveNode.Optional()),
	validator.F("trust_proxy_headers", validator.Boolean().Optional()),
	validator.F("secrets", secretsNode.Optional()),
	validator.F("log_format", validator.Union(validator.Literal("json"), validator.Literal("text")).Optional()),
	validator.F("log_level", validator.String().Optional()),
)

// parseJSON overlays the file named by -c / -config onto config. The file
// may carry // and /* */ comments and trailing commas. Only keys present in
// the file are applied.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return applyJSON(config, data)
}

func applyJSON(config *Config, data []byte) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return err
	}
	o, err := validator.DecodeJSON[validator.Object](fileNode, std, "config")
	if err != nil {
		return err
	}

	set(o, "http_addr", &config.HTTPAddr)
	set(o, "database_dsn", &config.DatabaseDSN)
	set(o, "run_migrations", &config.RunMigrations)
	set(o, "cookie_domain", &config.CookieDomain)
	set(o, "challenge_secret_id", &config.ChallengeSecretID)
	set(o, "tls_secret_id", &config.TLSSecretID)
	if o.Has("allowed_origins") {
		config.AllowedOrigins = config.AllowedOrigins[:0:0]
		for _, v := range validator.Get[validator.List](o, "allowed_origins").All() {
			config.AllowedOrigins = append(config.AllowedOrigins, v.(string))
		}
	}
	set(o, "token_secret", &config.TokenSecret)
	set(o, "token_validity", &config.TokenValidity)
	set(o, "session_validity", &config.SessionValidity)
	if o.Has("max_body_bytes") {
		config.MaxBodyBytes = int64(validator.Get[float64](o, "max_body_bytes"))
	}
	set(o, "max_request_time", &config.MaxRequestTime)
	set(o, "server_timing", &config.ServerTiming)
	set(o, "rate_limit", &config.RateLimit)
	if o.Has("rate_burst") {
		config.RateBurst = int(validator.Get[float64](o, "rate_burst"))
	}
	set(o, "trust_proxy_headers", &config.TrustProxyHeaders)
	set(o, "log_format", &config.LogFormat)
	set(o, "log_level", &config.LogLevel)

	if o.Has("secrets") {
		s := validator.Get[validator.Object](o, "secrets")
		set(s, "backend", &config.Secrets.Backend)
		set(s, "dir", &config.Secrets.Dir)
		if s.Has("s3") {
			s3 := validator.Get[validator.Object](s, "s3")
			set(s3, "bucket", &config.Secrets.S3.Bucket)
			set(s3, "prefix", &config.Secrets.S3.Prefix)
			set(s3, "region", &config.Secrets.S3.Region)
			set(s3, "endpoint", &config.Secrets.S3.Endpoint)
			set(s3, "access_key", &config.Secrets.S3.AccessKey)
			set(s3, "secret_key", &config.Secrets.S3.SecretKey)
		}
		if s.Has("vault") {
			v := validator.Get[validator.Object](s, "vault")
			set(v, "address", &config.Secrets.Vault.Address)
			set(v, "token", &config.Secrets.Vault.Token)
			set(v, "mount", &config.Secrets.Vault.Mount)
		}
	}
	return nil
}

func set[T any](o validator.Object, key string, dst *T) {
	if o.Has(key) {
		*dst = validator.Get[T](o, key)
	}
}
