// Package services contains application services for the sigauth client.
// This file defines the authentication service: signup with a freshly
// enrolled key credential, login by signing a server challenge, and the
// locally cached session.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/api"
	"github.com/dmitrijs2005/sigauth/internal/client/client"
	"github.com/dmitrijs2005/sigauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sigauth/internal/credential"
	"github.com/dmitrijs2005/sigauth/internal/cryptox"
	"github.com/dmitrijs2005/sigauth/internal/dbx"
)

var (
	ErrInvitationNotFound  = errors.New("invitation code is unknown, expired or used up")
	ErrUsernameUnavailable = errors.New("username is unavailable")
	ErrUnknownUser         = errors.New("unknown username")
	ErrChallengeRejected   = errors.New("login challenge rejected")
	ErrSignatureRejected   = errors.New("signature rejected")
	ErrNotLoggedIn         = errors.New("not logged in")
)

// Metadata keys of the cached session.
const (
	keyUsername       = "username"
	keyToken          = "token"
	keySession        = "session"
	keySessionExpires = "session_expires"
)

// Session is what a successful login leaves in the local cache.
type Session struct {
	Username  string
	Token     string
	ID        string
	ExpiresAt time.Time
}

type SignupInput struct {
	InvitationCode string
	DisplayName    string
	Username       string
	Password       []byte
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Signup: enroll a key credential under the password and register it.
//   - Login: sign a fresh challenge and cache the resulting session.
//   - Current: return the cached session unless it has expired.
//   - Logout: wipe the cached session.
//   - Ping: check server liveness.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (api.SignupCreated, error)
	Login(ctx context.Context, username string, password []byte) (*Session, error)
	Current(ctx context.Context) (*Session, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type authService struct {
	client     client.Client
	db         *sql.DB
	iterations int
	now        func() time.Time
}

type Option func(*authService)

// WithIterations overrides credential.DefaultIterations for new credentials.
func WithIterations(n int) Option {
	return func(a *authService) { a.iterations = n }
}

// NewAuthService constructs an AuthService bound to the given API client and
// local cache.
func NewAuthService(c client.Client, db *sql.DB, opts ...Option) AuthService {
	a := &authService{client: c, db: db, iterations: credential.DefaultIterations, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *authService) Signup(ctx context.Context, in SignupInput) (api.SignupCreated, error) {
	kc, priv, err := credential.Enroll(in.Password, a.iterations)
	if err != nil {
		return api.SignupCreated{}, fmt.Errorf("enroll: %w", err)
	}
	proof, err := cryptox.Sign(priv, []byte(in.Username))
	if err != nil {
		return api.SignupCreated{}, fmt.Errorf("sign username: %w", err)
	}

	resp, err := a.client.Signup(ctx, api.SignupRequest{
		InvitationCode: strings.ToUpper(in.InvitationCode),
		DisplayName:    in.DisplayName,
		Login: api.SignupLogin{
			Username:                       in.Username,
			KeyCredential:                  kc,
			KeyCredentialUsernameChallenge: proof,
		},
	})
	if err != nil {
		return api.SignupCreated{}, err
	}

	switch r := resp.(type) {
	case api.SignupCreated:
		return r, nil
	case api.SignupProblem:
		if r.BadCode != "" {
			return api.SignupCreated{}, ErrInvitationNotFound
		}
		return api.SignupCreated{}, ErrUsernameUnavailable
	}
	return api.SignupCreated{}, fmt.Errorf("%w: %T", client.ErrUnexpectedResponse, resp)
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*Session, error) {
	chResp, err := a.client.LoginChallenge(ctx, api.LoginChallengeRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("login challenge: %w", err)
	}
	ch, ok := chResp.(api.LoginChallengeSuccess)
	if !ok {
		return nil, ErrUnknownUser
	}

	priv, err := ch.KeyCredential.Unwrap(password)
	if err != nil {
		return nil, err
	}
	sig, err := cryptox.Sign(priv, []byte(ch.LoginChallenge))
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}

	reply, err := a.client.Login(ctx, api.LoginRequest{
		Username:            username,
		LoginChallenge:      ch.LoginChallenge,
		LoginECDSASignature: sig,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	switch r := reply.Response.(type) {
	case api.Failure:
		return nil, failureError(r.Reason)
	case api.LoginSuccess:
		s := &Session{Username: strings.ToLower(username), Token: r.FirebaseToken}
		if reply.Session != nil {
			s.ID = reply.Session.Value
			s.ExpiresAt = reply.Session.Expires.UTC()
		}
		if err := a.save(ctx, s); err != nil {
			return nil, fmt.Errorf("session saving error: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %T", client.ErrUnexpectedResponse, reply.Response)
}

func failureError(reason string) error {
	switch reason {
	case api.ReasonChallenge:
		return ErrChallengeRejected
	case api.ReasonCredentialsUsername:
		return ErrUnknownUser
	default:
		return ErrSignatureRejected
	}
}

// save replaces the cached session in a single transaction.
func (a *authService) save(ctx context.Context, s *Session) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Replace(ctx, map[string][]byte{
			keyUsername:       []byte(s.Username),
			keyToken:          []byte(s.Token),
			keySession:        []byte(s.ID),
			keySessionExpires: []byte(s.ExpiresAt.Format(time.RFC3339)),
		})
	})
}

func (a *authService) Current(ctx context.Context) (*Session, error) {
	all, err := metadata.NewSQLiteRepository(a.db).List(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := all[keyToken]; !ok {
		return nil, ErrNotLoggedIn
	}

	s := &Session{
		Username: string(all[keyUsername]),
		Token:    string(all[keyToken]),
		ID:       string(all[keySession]),
	}
	if raw := all[keySessionExpires]; len(raw) > 0 {
		if s.ExpiresAt, err = time.Parse(time.RFC3339, string(raw)); err != nil {
			return nil, fmt.Errorf("cached session expiry: %w", err)
		}
	}
	if s.ID != "" && !s.ExpiresAt.After(a.now()) {
		return nil, ErrNotLoggedIn
	}
	return s, nil
}

func (a *authService) Logout(ctx context.Context) error {
	return metadata.NewSQLiteRepository(a.db).Clear(ctx)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
