package api

import (
	"github.com/dmitrijs2005/sigauth/internal/credential"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

var signupRequestNode = validator.Map(
	validator.Record(
		validator.F("invitationCode", validator.Matching(invitationCodePattern, "")),
		validator.F("displayName", validator.String()),
		validator.F("login", validator.Record(
			validator.F("username", validator.Matching(usernamePattern, "")),
			validator.F("keyCredential", credential.Schema()),
			validator.F("keyCredentialUsernameChallenge", validator.HexBytes()),
		)),
	),
	func(o validator.Object) (SignupRequest, error) {
		login := validator.Get[validator.Object](o, "login")
		return SignupRequest{
			InvitationCode: validator.Get[string](o, "invitationCode"),
			DisplayName:    validator.Get[string](o, "displayName"),
			Login: SignupLogin{
				Username:                       validator.Get[string](login, "username"),
				KeyCredential:                  validator.Get[credential.KeyCredential](login, "keyCredential"),
				KeyCredentialUsernameChallenge: validator.Get[validator.Bytes](login, "keyCredentialUsernameChallenge"),
			},
		}, nil
	},
)

var loginChallengeRequestNode = validator.Map(
	validator.Record(validator.F("username", validator.String())),
	func(o validator.Object) (LoginChallengeRequest, error) {
		return LoginChallengeRequest{Username: validator.Get[string](o, "username")}, nil
	},
)

var loginRequestNode = validator.Map(
	validator.Record(
		validator.F("username", validator.String()),
		validator.F("loginChallenge", validator.String()),
		validator.F("loginECDSASignature", validator.HexBytes()),
	),
	func(o validator.Object) (LoginRequest, error) {
		return LoginRequest{
			Username:            validator.Get[string](o, "username"),
			LoginChallenge:      validator.Get[string](o, "loginChallenge"),
			LoginECDSASignature: validator.Get[validator.Bytes](o, "loginECDSASignature"),
		}, nil
	},
)

func SignupRequestSchema() *validator.Node         { return signupRequestNode }
func LoginChallengeRequestSchema() *validator.Node { return loginChallengeRequestNode }
func LoginRequestSchema() *validator.Node          { return loginRequestNode }

var signupResponseNode = validator.Union(
	validator.Map(
		validator.Record(
			validator.F("tag", validator.Literal(TagCreated)),
			validator.F("userID", validator.UserID()),
			validator.F("inviter", validator.Record(
				validator.F("userID", validator.UserID()),
				validator.F("displayName", validator.Optional(validator.String())),
			)),
		),
		func(o validator.Object) (SignupResponse, error) {
			inviter := validator.Get[validator.Object](o, "inviter")
			return SignupCreated{
				UserID: validator.Get[string](o, "userID"),
				Inviter: Inviter{
					UserID:      validator.Get[string](inviter, "userID"),
					DisplayName: validator.Get[string](inviter, "displayName"),
				},
			}, nil
		},
	),
	validator.Map(
		validator.Record(
			validator.F("tag", validator.Literal(TagProblem)),
			validator.F("badCode", validator.Optional(validator.String())),
			validator.F("badUsername", validator.Optional(validator.String())),
		),
		func(o validator.Object) (SignupResponse, error) {
			return SignupProblem{
				BadCode:     validator.Get[string](o, "badCode"),
				BadUsername: validator.Get[string](o, "badUsername"),
			}, nil
		},
	),
)

func failureNode(reasons ...string) *validator.Node {
	reason := validator.Literal(reasons[0])
	if len(reasons) > 1 {
		alts := make([]*validator.Node, len(reasons))
		for i, r := range reasons {
			alts[i] = validator.Literal(r)
		}
		reason = validator.Union(alts...)
	}
	return validator.Map(
		validator.Record(
			validator.F("tag", validator.Literal(TagFailure)),
			validator.F("reason", reason),
		),
		func(o validator.Object) (Failure, error) {
			return Failure{Reason: validator.Get[string](o, "reason")}, nil
		},
	)
}

var loginChallengeResponseNode = validator.Union(
	validator.Map(
		validator.Record(
			validator.F("tag", validator.Literal(TagSuccess)),
			validator.F("loginChallenge", validator.String()),
			validator.F("loginChallengeExpiry", validator.Timestamp()),
			validator.F("keyCredential", credential.Schema()),
		),
		func(o validator.Object) (LoginChallengeResponse, error) {
			return LoginChallengeSuccess{
				LoginChallenge:       validator.Get[string](o, "loginChallenge"),
				LoginChallengeExpiry: validator.Get[validator.Time](o, "loginChallengeExpiry"),
				KeyCredential:        validator.Get[credential.KeyCredential](o, "keyCredential"),
			}, nil
		},
	),
	validator.Map(failureNode(ReasonCredentialsUsername), func(f Failure) (LoginChallengeResponse, error) { return f, nil }),
)

var loginResponseNode = validator.Union(
	validator.Map(
		validator.Record(
			validator.F("tag", validator.Literal(TagSuccess)),
			validator.F("firebaseToken", validator.String()),
		),
		func(o validator.Object) (LoginResponse, error) {
			return LoginSuccess{FirebaseToken: validator.Get[string](o, "firebaseToken")}, nil
		},
	),
	validator.Map(
		failureNode(ReasonChallenge, ReasonCredentialsUsername, ReasonCredentialsSignature),
		func(f Failure) (LoginResponse, error) { return f, nil },
	),
)

var errorBodyNode = validator.Map(
	validator.Record(
		validator.F("message", validator.String()),
		validator.F("path", validator.Optional(validator.Array(validator.String()))),
	),
	func(o validator.Object) (ErrorBody, error) {
		body := ErrorBody{Message: validator.Get[string](o, "message")}
		for _, seg := range validator.Get[validator.List](o, "path").All() {
			s, _ := seg.(string)
			body.Path = append(body.Path, s)
		}
		return body, nil
	},
)

func SignupResponseSchema() *validator.Node         { return signupResponseNode }
func LoginChallengeResponseSchema() *validator.Node { return loginChallengeResponseNode }
func LoginResponseSchema() *validator.Node          { return loginResponseNode }
func ErrorBodySchema() *validator.Node              { return errorBodyNode }
