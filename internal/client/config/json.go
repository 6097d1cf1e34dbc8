package config

import (
	"net/url"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/validator"
	"github.com/tailscale/hujson"
)

var serverURLNode = validator.Refine(validator.String(), func(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}, "must be an http(s) URL")

var timeoutNode = validator.Map(
	validator.Refine(validator.String(), func(s string) bool {
		d, err := time.ParseDuration(s)
		return err == nil && d > 0
	}, `must be a positive duration such as "10s"`),
	time.ParseDuration,
)

var fileNode = validator.Record(
	validator.F("server_url", serverURLNode.Optional()),
	validator.F("cache_path", validator.String().Optional()),
	validator.F("origin", validator.String().Optional()),
	validator.F("request_timeout", timeoutNode.Optional()),
)

func applyJSON(cfg *Config, data []byte) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return err
	}
	o, err := validator.DecodeJSON[validator.Object](fileNode, std, "config")
	if err != nil {
		return err
	}

	if o.Has("server_url") {
		cfg.ServerURL = validator.Get[string](o, "server_url")
	}
	if o.Has("cache_path") {
		cfg.CachePath = validator.Get[string](o, "cache_path")
	}
	if o.Has("origin") {
		cfg.Origin = validator.Get[string](o, "origin")
	}
	if o.Has("request_timeout") {
		cfg.RequestTimeout = validator.Get[time.Duration](o, "request_timeout")
	}
	return nil
}
