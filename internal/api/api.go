// Package api holds the JSON wire contract of the /auth endpoints: request
// and response types, and the validators that turn untrusted JSON into them.
// The server validates requests with it and the client SDK validates
// responses with it.
package api

import (
	"encoding/json"
	"regexp"

	"github.com/dmitrijs2005/sigauth/internal/credential"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

// Endpoint paths.
const (
	PathSignup         = "/auth/signup"
	PathLoginChallenge = "/auth/login-challenge"
	PathLogin          = "/auth/login"
)

// Response tags.
const (
	TagCreated = "created"
	TagProblem = "problem"
	TagSuccess = "success"
	TagFailure = "failure"
)

// Business outcome codes.
const (
	BadCodeNotFound        = "not-found"
	BadUsernameUnavailable = "unavailable"

	ReasonChallenge            = "challenge"
	ReasonCredentialsUsername  = "credentials-username"
	ReasonCredentialsSignature = "credentials-signature"
)

// SessionCookieName names the cookie set by a successful login.
const SessionCookieName = "loginsession"

var (
	invitationCodePattern = regexp.MustCompile(`^[A-Z0-9]{26}$`)
	usernamePattern       = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,319}$`)
)

type SignupRequest struct {
	InvitationCode string      `json:"invitationCode"`
	DisplayName    string      `json:"displayName"`
	Login          SignupLogin `json:"login"`
}

type SignupLogin struct {
	Username      string                   `json:"username"`
	KeyCredential credential.KeyCredential `json:"keyCredential"`

	// KeyCredentialUsernameChallenge is the UTF-8 username signed with the
	// credential's private key.
	KeyCredentialUsernameChallenge validator.Bytes `json:"keyCredentialUsernameChallenge"`
}

type LoginChallengeRequest struct {
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username"`

	// LoginChallenge is the token returned by the login-challenge call.
	LoginChallenge string `json:"loginChallenge"`

	// LoginECDSASignature signs the UTF-8 bytes of LoginChallenge.
	LoginECDSASignature validator.Bytes `json:"loginECDSASignature"`
}

// SignupResponse is SignupCreated or SignupProblem.
type SignupResponse interface{ signupResponse() }

type Inviter struct {
	UserID      string `json:"userID"`
	DisplayName string `json:"displayName,omitempty"`
}

type SignupCreated struct {
	UserID  string  `json:"userID"`
	Inviter Inviter `json:"inviter"`
}

type SignupProblem struct {
	BadCode     string `json:"badCode,omitempty"`
	BadUsername string `json:"badUsername,omitempty"`
}

// LoginChallengeResponse is LoginChallengeSuccess or Failure.
type LoginChallengeResponse interface{ loginChallengeResponse() }

type LoginChallengeSuccess struct {
	LoginChallenge       string                   `json:"loginChallenge"`
	LoginChallengeExpiry validator.Time           `json:"loginChallengeExpiry"`
	KeyCredential        credential.KeyCredential `json:"keyCredential"`
}

// LoginResponse is LoginSuccess or Failure.
type LoginResponse interface{ loginResponse() }

type LoginSuccess struct {
	FirebaseToken string `json:"firebaseToken"`
}

// Failure is the failure variant of both login calls.
type Failure struct {
	Reason string `json:"reason"`
}

// ErrorBody is the body of every non-200 response.
type ErrorBody struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

func (SignupCreated) signupResponse()                 {}
func (SignupProblem) signupResponse()                 {}
func (LoginChallengeSuccess) loginChallengeResponse() {}
func (Failure) loginChallengeResponse()               {}
func (LoginSuccess) loginResponse()                   {}
func (Failure) loginResponse()                        {}

// The response variants carry their tag only on the wire.

func (r SignupCreated) MarshalJSON() ([]byte, error) {
	type wire SignupCreated
	return json.Marshal(struct {
		Tag string `json:"tag"`
		wire
	}{TagCreated, wire(r)})
}

func (r SignupProblem) MarshalJSON() ([]byte, error) {
	type wire SignupProblem
	return json.Marshal(struct {
		Tag string `json:"tag"`
		wire
	}{TagProblem, wire(r)})
}

func (r LoginChallengeSuccess) MarshalJSON() ([]byte, error) {
	type wire LoginChallengeSuccess
	return json.Marshal(struct {
		Tag string `json:"tag"`
		wire
	}{TagSuccess, wire(r)})
}

func (r LoginSuccess) MarshalJSON() ([]byte, error) {
	type wire LoginSuccess
	return json.Marshal(struct {
		Tag string `json:"tag"`
		wire
	}{TagSuccess, wire(r)})
}

func (r Failure) MarshalJSON() ([]byte, error) {
	type wire Failure
	return json.Marshal(struct {
		Tag string `json:"tag"`
		wire
	}{TagFailure, wire(r)})
}
