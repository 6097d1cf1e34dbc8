package client

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/sigauth/internal/api"
)

type Client interface {
	Signup(ctx context.Context, req api.SignupRequest) (api.SignupResponse, error)
	LoginChallenge(ctx context.Context, req api.LoginChallengeRequest) (api.LoginChallengeResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (LoginReply, error)
	Ping(ctx context.Context) error
}

// LoginReply is the login response together with the session cookie the
// server set, if any.
type LoginReply struct {
	Response api.LoginResponse
	Session  *http.Cookie
}
