package rest

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/sigauth/internal/api"
)

func (h *handler) signup(ctx context.Context, req api.SignupRequest, _ http.Header) (api.SignupResponse, error) {
	return h.auth.Signup(ctx, req)
}

func (h *handler) loginChallenge(ctx context.Context, req api.LoginChallengeRequest, _ http.Header) (api.LoginChallengeResponse, error) {
	return h.auth.LoginChallenge(ctx, req)
}

// login sets the session cookie when the login succeeds.
func (h *handler) login(ctx context.Context, req api.LoginRequest, header http.Header) (api.LoginResponse, error) {
	res, err := h.auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Session != nil {
		cookie := &http.Cookie{
			Name:     api.SessionCookieName,
			Value:    res.Session.ID,
			Domain:   h.cookieDomain,
			Expires:  res.Session.ExpiresAt,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		}
		header.Add("Set-Cookie", cookie.String())
	}
	return res.Response, nil
}
