// Package services contains server-side business logic. AuthService
// implements the three authentication steps: signup, login challenge and
// login.
//
// Expected business outcomes (a used-up invitation, an unknown username, a
// bad signature) are returned as api response values. Errors are reserved
// for request faults (common.ErrInvalidKeyCredential) and infrastructure
// failures.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/api"
	"github.com/dmitrijs2005/sigauth/internal/challenge"
	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/credential"
	"github.com/dmitrijs2005/sigauth/internal/logging"
	"github.com/dmitrijs2005/sigauth/internal/server/auth"
	"github.com/dmitrijs2005/sigauth/internal/server/metrics"
	"github.com/dmitrijs2005/sigauth/internal/server/models"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sigauth/internal/validator"
	"github.com/oklog/ulid/v2"
)

// DefaultSessionValidity is how long a login session lasts.
const DefaultSessionValidity = 7 * 24 * time.Hour

// sessionIDBytes is the entropy of a session id before hex encoding.
const sessionIDBytes = 32

// errSignupProblem aborts the signup transaction when the outcome is a
// SignupProblem; the problem itself is carried outside the transaction.
var errSignupProblem = errors.New("signup problem")

type AuthService struct {
	store           repomanager.Store
	issuer          *challenge.Issuer
	minter          auth.Minter
	metrics         *metrics.Metrics
	logger          logging.Logger
	sessionValidity time.Duration
	now             func() time.Time
	newID           func() string
}

type Option func(*AuthService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithSessionValidity overrides DefaultSessionValidity.
func WithSessionValidity(d time.Duration) Option {
	return func(s *AuthService) { s.sessionValidity = d }
}

// WithMetrics records step timings and outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

func NewAuthService(store repomanager.Store, issuer *challenge.Issuer, minter auth.Minter, logger logging.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		store:           store,
		issuer:          issuer,
		minter:          minter,
		logger:          logger.With("module", "auth"),
		sessionValidity: DefaultSessionValidity,
		now:             time.Now,
		newID:           func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new user with an invitation. The invitation check, the
// username check and both inserts run in one transaction. A credential that
// does not verify its own username signature yields
// common.ErrInvalidKeyCredential.
func (s *AuthService) Signup(ctx context.Context, req api.SignupRequest) (api.SignupResponse, error) {
	username := strings.ToLower(req.Login.Username)
	stored, err := validator.Serialize(req.Login.KeyCredential)
	if err != nil {
		return nil, fmt.Errorf("encode key credential: %w", err)
	}

	var (
		problem api.SignupProblem
		created api.SignupCreated
	)
	err = s.metrics.Measure(ctx, "signupTx", func() error {
		return s.store.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
			now := s.now()

			inv, err := r.Invitations.GetForUpdate(ctx, req.InvitationCode)
			if errors.Is(err, common.ErrorNotFound) || (err == nil && !inv.Usable(now)) {
				problem = api.SignupProblem{BadCode: api.BadCodeNotFound}
				return errSignupProblem
			}
			if err != nil {
				return err
			}

			_, err = r.Users.GetByUsername(ctx, username)
			if err == nil {
				problem = api.SignupProblem{BadUsername: api.BadUsernameUnavailable}
				return errSignupProblem
			}
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}

			if err := req.Login.KeyCredential.Verify([]byte(req.Login.Username), req.Login.KeyCredentialUsernameChallenge); err != nil {
				return fmt.Errorf("%w: %v", common.ErrInvalidKeyCredential, err)
			}

			if err := r.Invitations.Consume(ctx, inv.Code, now); err != nil {
				if errors.Is(err, common.ErrInvitationExhausted) {
					problem = api.SignupProblem{BadCode: api.BadCodeNotFound}
					return errSignupProblem
				}
				return err
			}

			user := &models.User{
				ID:            s.newID(),
				Username:      username,
				KeyCredential: stored,
				InviterID:     inv.InviterID,
			}
			if err := r.Users.Create(ctx, user); err != nil {
				if errors.Is(err, common.ErrorAlreadyExists) {
					problem = api.SignupProblem{BadUsername: api.BadUsernameUnavailable}
					return errSignupProblem
				}
				return err
			}
			if err := r.Profiles.Create(ctx, &models.Profile{UserID: user.ID, DisplayName: req.DisplayName}); err != nil {
				return err
			}

			created = api.SignupCreated{UserID: user.ID, Inviter: api.Inviter{UserID: inv.InviterID}}
			return nil
		})
	})
	if errors.Is(err, errSignupProblem) {
		s.metrics.Outcome("signup", "problem")
		return problem, nil
	}
	if err != nil {
		return nil, err
	}

	inviter, err := s.store.Repos().Profiles.Get(ctx, created.Inviter.UserID)
	switch {
	case err == nil:
		created.Inviter.DisplayName = inviter.DisplayName
	case !errors.Is(err, common.ErrorNotFound):
		logging.LogError(ctx, s.logger, "inviter lookup failed", err)
	}

	s.logger.Info(ctx, "user signed up", "user_id", created.UserID, "inviter_id", created.Inviter.UserID)
	s.metrics.Outcome("signup", "created")
	return created, nil
}

// LoginChallenge issues a challenge for the user together with the user's
// stored key credential, which the client unwraps with its password.
func (s *AuthService) LoginChallenge(ctx context.Context, req api.LoginChallengeRequest) (api.LoginChallengeResponse, error) {
	username := strings.ToLower(req.Username)

	user, err := s.userByUsername(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		s.metrics.Outcome("loginChallenge", api.ReasonCredentialsUsername)
		return api.Failure{Reason: api.ReasonCredentialsUsername}, nil
	}
	if err != nil {
		return nil, err
	}
	kc, err := storedCredential(user)
	if err != nil {
		return nil, err
	}

	var ch challenge.Challenge
	err = s.metrics.Measure(ctx, "createChallenge", func() error {
		var err error
		ch, err = s.issuer.Create(username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	s.metrics.Outcome("loginChallenge", api.TagSuccess)
	return api.LoginChallengeSuccess{
		LoginChallenge:       ch.Token,
		LoginChallengeExpiry: validator.Time{Time: ch.ExpiresAt},
		KeyCredential:        kc,
	}, nil
}

// LoginResult is the outcome of Login. Session is set only on success.
type LoginResult struct {
	Response api.LoginResponse
	Session  *models.LoginSession
}

// Login checks the challenge, then the user, then the user's signature over
// the challenge, in that order. On success it stores a new session and
// mints an identity token.
func (s *AuthService) Login(ctx context.Context, req api.LoginRequest) (LoginResult, error) {
	username := strings.ToLower(req.Username)

	var status challenge.Status
	_ = s.metrics.Measure(ctx, "verifyChallenge", func() error {
		status = s.issuer.Verify(username, req.LoginChallenge)
		return nil
	})
	if status != challenge.OK {
		s.logger.Info(ctx, "login challenge rejected", "status", status.String())
		return s.loginFailure(api.ReasonChallenge), nil
	}

	user, err := s.userByUsername(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return s.loginFailure(api.ReasonCredentialsUsername), nil
	}
	if err != nil {
		return LoginResult{}, err
	}
	kc, err := storedCredential(user)
	if err != nil {
		return LoginResult{}, err
	}

	if err := kc.Verify([]byte(req.LoginChallenge), req.LoginECDSASignature); err != nil {
		if errors.Is(err, credential.ErrSignatureMismatch) {
			return s.loginFailure(api.ReasonCredentialsSignature), nil
		}
		return LoginResult{}, fmt.Errorf("stored key of user %s: %w", user.ID, err)
	}

	sessionID, err := common.MakeRandHexString(sessionIDBytes)
	if err != nil {
		return LoginResult{}, fmt.Errorf("session id: %w", err)
	}
	now := s.now().UTC()
	session := &models.LoginSession{
		ID:         sessionID,
		UserID:     user.ID,
		LoggedInAt: now,
		ExpiresAt:  now.Add(s.sessionValidity),
	}
	err = s.metrics.Measure(ctx, "dbCreateLoginSession", func() error {
		return s.store.Repos().Sessions.Create(ctx, session)
	})
	if err != nil {
		return LoginResult{}, err
	}

	var token string
	err = s.metrics.Measure(ctx, "mintToken", func() error {
		var err error
		token, err = s.minter.Mint(ctx, user.ID)
		return err
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("mint identity token: %w", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	s.metrics.Outcome("login", api.TagSuccess)
	return LoginResult{Response: api.LoginSuccess{FirebaseToken: token}, Session: session}, nil
}

func (s *AuthService) loginFailure(reason string) LoginResult {
	s.metrics.Outcome("login", reason)
	return LoginResult{Response: api.Failure{Reason: reason}}
}

func (s *AuthService) userByUsername(ctx context.Context, username string) (*models.User, error) {
	var user *models.User
	err := s.metrics.Measure(ctx, "dbUserByUsername", func() error {
		var err error
		user, err = s.store.Repos().Users.GetByUsername(ctx, username)
		return err
	})
	return user, err
}

// storedCredential re-validates the credential read from storage. A row
// that no longer matches the schema is an infrastructure fault.
func storedCredential(user *models.User) (credential.KeyCredential, error) {
	kc, err := credential.Decode(user.KeyCredential, "db(users/"+user.ID+")", "keyCredential")
	if err != nil {
		return credential.KeyCredential{}, fmt.Errorf("%w: stored credential: %v", common.ErrorInternal, err)
	}
	return kc, nil
}
