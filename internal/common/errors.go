// Package common defines sentinel errors and small helpers shared by the
// server, the client SDK and the CLI. Callers should use errors.Is to match
// the sentinels.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrInvitationExhausted is returned when an invitation has no uses left
	// or has expired at the moment it is consumed.
	ErrInvitationExhausted = errors.New("invitation exhausted")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// ErrInvalidKeyCredential means a submitted public key could not be
	// imported or did not verify the client's proof signature.
	ErrInvalidKeyCredential = errors.New("invalid key credential")

	// Identity token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrWrongPassword is returned by the client when a wrapped private key
	// cannot be opened with the supplied password.
	ErrWrongPassword = errors.New("wrong password")
)
