package challenge

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/cryptox"
)

// KeyPair is the server's challenge signing key and the key used to verify
// challenges. It is immutable after construction.
type KeyPair struct {
	signing   *ecdsa.PrivateKey
	verifying *ecdsa.PublicKey
}

// NewKeyPair pairs a signing key with its verifying key. Both must be P-521.
func NewKeyPair(signing *ecdsa.PrivateKey, verifying *ecdsa.PublicKey) (KeyPair, error) {
	if signing == nil || verifying == nil {
		return KeyPair{}, errors.New("challenge: both keys are required")
	}
	if signing.Curve != verifying.Curve || verifying.Curve.Params().Name != cryptox.CurveName {
		return KeyPair{}, fmt.Errorf("challenge: keys must be on %s", cryptox.CurveName)
	}
	return KeyPair{signing: signing, verifying: verifying}, nil
}

// secretDocument is the JSON layout of the challenge key secret.
type secretDocument struct {
	Public  json.RawMessage `json:"public"`
	Private json.RawMessage `json:"private"`
}

// ParseKeyPair reads a secret of the form {"public": <JWK>, "private": <JWK>}.
func ParseKeyPair(secret []byte) (KeyPair, error) {
	var doc secretDocument
	if err := json.Unmarshal(secret, &doc); err != nil {
		return KeyPair{}, fmt.Errorf("challenge: parse key secret: %w", err)
	}
	if len(doc.Public) == 0 || len(doc.Private) == 0 {
		return KeyPair{}, errors.New("challenge: key secret needs both public and private keys")
	}

	signing, err := cryptox.ParsePrivateJWK([]byte(doc.Private))
	if err != nil {
		return KeyPair{}, fmt.Errorf("challenge: signing key: %w", err)
	}
	verifying, err := cryptox.ParsePublicJWK([]byte(doc.Public))
	if err != nil {
		return KeyPair{}, fmt.Errorf("challenge: verifying key: %w", err)
	}
	return NewKeyPair(signing, verifying)
}

// GenerateSecret creates a fresh key pair and renders it in the layout
// ParseKeyPair reads.
func GenerateSecret() ([]byte, error) {
	priv, err := cryptox.GenerateKey()
	if err != nil {
		return nil, err
	}
	pub, err := cryptox.PublicJWK(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	private, err := cryptox.PrivateJWK(priv)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(map[string]any{"public": pub, "private": private}, "", "  ")
}

// SecretFetcher returns the raw bytes of a named secret.
type SecretFetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// LoadKeyPair fetches secretID from store and parses it.
func LoadKeyPair(ctx context.Context, store SecretFetcher, secretID string) (KeyPair, error) {
	secret, err := store.Fetch(ctx, secretID)
	if err != nil {
		return KeyPair{}, fmt.Errorf("challenge: fetch %q: %w", secretID, err)
	}
	return ParseKeyPair(secret)
}
