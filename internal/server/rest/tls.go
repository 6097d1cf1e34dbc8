package rest

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/challenge"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

var certificateNode = validator.Record(
	validator.F("fullchain", validator.String()),
	validator.F("privkey", validator.String()),
)

// LoadTLSConfig reads a certificate secret of the form
// {"fullchain": PEM, "privkey": PEM}.
func LoadTLSConfig(ctx context.Context, store challenge.SecretFetcher, secretID string) (*tls.Config, error) {
	raw, err := store.Fetch(ctx, secretID)
	if err != nil {
		return nil, fmt.Errorf("fetch certificate %s: %w", secretID, err)
	}
	o, err := validator.DecodeJSON[validator.Object](certificateNode, raw, "secret("+secretID+")")
	if err != nil {
		return nil, err
	}
	cert, err := tls.X509KeyPair(
		[]byte(validator.Get[string](o, "fullchain")),
		[]byte(validator.Get[string](o, "privkey")),
	)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", secretID, err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}
