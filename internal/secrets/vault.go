package secrets

import (
	"context"
	"errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// VaultValueKey is the field of a KV v2 secret that holds the secret bytes.
const VaultValueKey = "value"

type VaultConfig struct {
	Address string
	Token   string
	Mount   string
}

// VaultStore reads secrets from a KV v2 engine. Each secret keeps its
// payload as a string under VaultValueKey.
type VaultStore struct {
	kv *vault.KVv2
}

func NewVaultStore(c VaultConfig) (*VaultStore, error) {
	cfg := vault.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("secrets: vault config: %w", cfg.Error)
	}
	if c.Address != "" {
		cfg.Address = c.Address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: vault client: %w", err)
	}
	if c.Token != "" {
		client.SetToken(c.Token)
	}

	mount := c.Mount
	if mount == "" {
		mount = "secret"
	}
	return &VaultStore{kv: client.KVv2(mount)}, nil
}

func (s *VaultStore) Fetch(ctx context.Context, id string) ([]byte, error) {
	secret, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, id)
		}
		return nil, fmt.Errorf("secrets: vault read %s: %w", id, err)
	}

	value, ok := secret.Data[VaultValueKey].(string)
	if !ok {
		return nil, fmt.Errorf("secrets: vault secret %s has no string %q field", id, VaultValueKey)
	}
	return []byte(value), nil
}
