package secrets

import (
	"context"
	"fmt"
)

// Backend names accepted by New.
const (
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendVault = "vault"
)

// Config selects and configures one backend.
type Config struct {
	Backend string
	Dir     string
	S3      S3Config
	Vault   VaultConfig
}

// New builds the Store named by c.Backend.
func New(ctx context.Context, c Config) (Store, error) {
	switch c.Backend {
	case BackendFile, "":
		return NewFileStore(c.Dir), nil
	case BackendS3:
		return NewS3Store(ctx, c.S3)
	case BackendVault:
		return NewVaultStore(c.Vault)
	}
	return nil, fmt.Errorf("secrets: unknown backend %q", c.Backend)
}
