// Package config loads settings for the sigauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file passed with --config. Comments and trailing
//     commas are allowed.
//  3. Command-line flags, which the cobra command tree applies last.
//
// # JSON schema
//
//	{
//	  "server_url": "https://auth.example.com",
//	  "cache_path": "/home/me/.sigauth/cache.db",
//	  "origin": "https://app.example.com",
//	  "request_timeout": "10s"
//	}
package config
