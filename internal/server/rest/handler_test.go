package rest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/api"
	"github.com/dmitrijs2005/sigauth/internal/challenge"
	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/credential"
	"github.com/dmitrijs2005/sigauth/internal/cryptox"
	"github.com/dmitrijs2005/sigauth/internal/logging"
	"github.com/dmitrijs2005/sigauth/internal/server/auth"
	"github.com/dmitrijs2005/sigauth/internal/server/metrics"
	"github.com/dmitrijs2005/sigauth/internal/server/models"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sigauth/internal/server/services"
	"github.com/dmitrijs2005/sigauth/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin = "https://app.example"
	inviteCode = "01HZX7Q5J3V8ZJ4W9K2M6N0P1R"
	password   = "correct horse"
)

func baseConfig(svc AuthService) HandlerConfig {
	return HandlerConfig{
		Auth:           svc,
		Logger:         logging.Discard(),
		Metrics:        metrics.New(),
		AllowedOrigins: []string{testOrigin},
		CookieDomain:   "example.com",
		ServerTiming:   true,
	}
}

func newTestServer(t *testing.T, c HandlerConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(c))
	t.Cleanup(func() {
		srv.Client().CloseIdleConnections()
		srv.Close()
	})
	return srv
}

func newAuthService(t *testing.T) *services.AuthService {
	t.Helper()
	secret, err := challenge.GenerateSecret()
	require.NoError(t, err)
	keys, err := challenge.ParseKeyPair(secret)
	require.NoError(t, err)

	store := repomanager.NewMemoryStore()
	require.NoError(t, store.Repos().Invitations.Create(context.Background(), &models.Invitation{
		Code: inviteCode, InviterID: "ROOT", ExpiresAt: time.Now().Add(time.Hour), RemainingUses: 1,
	}))
	return services.NewAuthService(store, challenge.NewIssuer(keys), auth.NewHMACMinter([]byte("k"), time.Hour), logging.Discard())
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = validator.Serialize(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testOrigin)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), "body %s", raw)
	return resp, out
}

func TestEndToEnd_SignupChallengeLogin(t *testing.T) {
	srv := newTestServer(t, baseConfig(newAuthService(t)))

	kc, priv, err := credential.Enroll([]byte(password), 1)
	require.NoError(t, err)
	usernameSig, err := cryptox.Sign(priv, []byte("Alice"))
	require.NoError(t, err)

	resp, body := post(t, srv, api.PathSignup, api.SignupRequest{
		InvitationCode: inviteCode,
		DisplayName:    "Alice",
		Login:          api.SignupLogin{Username: "Alice", KeyCredential: kc, KeyCredentialUsernameChallenge: usernameSig},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, api.TagCreated, body["tag"])
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Server-Timing"), "signupTx;dur=")
	assert.NotEmpty(t, resp.Header.Get(correlationHeader))

	resp, body = post(t, srv, api.PathLoginChallenge, api.LoginChallengeRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	decoded, err := validator.DecodeJSON[api.LoginChallengeResponse](api.LoginChallengeResponseSchema(), raw)
	require.NoError(t, err)
	ch := decoded.(api.LoginChallengeSuccess)

	unwrapped, err := ch.KeyCredential.Unwrap([]byte(password))
	require.NoError(t, err)
	sig, err := cryptox.Sign(unwrapped, []byte(ch.LoginChallenge))
	require.NoError(t, err)

	resp, body = post(t, srv, api.PathLogin, api.LoginRequest{Username: "alice", LoginChallenge: ch.LoginChallenge, LoginECDSASignature: sig})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, api.TagSuccess, body["tag"])
	assert.NotEmpty(t, body["firebaseToken"])

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, api.SessionCookieName, c.Name)
	assert.Regexp(t, `^[0-9a-f]{64}$`, c.Value)
	assert.Equal(t, "example.com", c.Domain)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.WithinDuration(t, time.Now().Add(services.DefaultSessionValidity), c.Expires, time.Minute)

	resp, body = post(t, srv, api.PathLogin, api.LoginRequest{Username: "alice", LoginChallenge: ch.LoginChallenge + "x", LoginECDSASignature: sig})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"tag": api.TagFailure, "reason": api.ReasonChallenge}, body)
	assert.Empty(t, resp.Cookies())
}

func TestHandler_RequestFaults(t *testing.T) {
	srv := newTestServer(t, baseConfig(newAuthService(t)))

	t.Run("bad JSON syntax", func(t *testing.T) {
		resp, body := post(t, srv, api.PathLoginChallenge, `{"username":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, map[string]any{"message": "bad JSON syntax"}, body)
	})

	t.Run("validation error carries its path", func(t *testing.T) {
		resp, body := post(t, srv, api.PathLoginChallenge, `{"username": 5}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "username: must be a string", body["message"])
		assert.Equal(t, []any{"username"}, body["path"])
	})

	t.Run("root validation error", func(t *testing.T) {
		resp, body := post(t, srv, api.PathLogin, `[]`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "<root>: must be an object", body["message"])
	})

	t.Run("invalid key credential", func(t *testing.T) {
		kc, priv, err := credential.Enroll([]byte(password), 1)
		require.NoError(t, err)
		sig, err := cryptox.Sign(priv, []byte("someone_else"))
		require.NoError(t, err)

		resp, body := post(t, srv, api.PathSignup, api.SignupRequest{
			InvitationCode: inviteCode,
			Login:          api.SignupLogin{Username: "alice", KeyCredential: kc, KeyCredentialUsernameChallenge: sig},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, map[string]any{"message": "invalid key credential"}, body)
	})
}

func TestHandler_BodyTooLarge(t *testing.T) {
	c := baseConfig(newAuthService(t))
	c.MaxBodyBytes = 64
	srv := newTestServer(t, c)

	resp, body := post(t, srv, api.PathLoginChallenge, `{"username":"`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]any{"message": "max body size exceeded"}, body)
}

func TestHandler_SlowBody(t *testing.T) {
	c := baseConfig(newAuthService(t))
	c.MaxRequestTime = 100 * time.Millisecond
	srv := newTestServer(t, c)

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "POST "+api.PathLoginChallenge+" HTTP/1.1\r\nHost: test\r\nContent-Type: application/json\r\nContent-Length: 100\r\n\r\n{\"user")
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "response must not wait for the missing body bytes")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, resp.Close, "connection is closed after an unread body")
	assert.JSONEq(t, `{"message":"max request time exceeded"}`, string(raw))
}

type stubAuth struct {
	err   error
	panic bool
}

func (s stubAuth) Signup(context.Context, api.SignupRequest) (api.SignupResponse, error) {
	return nil, s.err
}

func (s stubAuth) LoginChallenge(context.Context, api.LoginChallengeRequest) (api.LoginChallengeResponse, error) {
	if s.panic {
		panic("boom")
	}
	return nil, s.err
}

func (s stubAuth) Login(context.Context, api.LoginRequest) (services.LoginResult, error) {
	return services.LoginResult{}, s.err
}

func TestHandler_InternalErrors(t *testing.T) {
	srv := newTestServer(t, baseConfig(stubAuth{err: errors.New("db down")}))
	resp, body := post(t, srv, api.PathLogin, api.LoginRequest{Username: "a", LoginChallenge: "x", LoginECDSASignature: []byte{1}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]any{"message": "internal server error"}, body)

	srv = newTestServer(t, baseConfig(stubAuth{err: common.ErrorInternal}))
	resp, body = post(t, srv, api.PathLoginChallenge, api.LoginChallengeRequest{Username: "a"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]any{"message": "internal server error"}, body)

	srv = newTestServer(t, baseConfig(stubAuth{panic: true}))
	resp, body = post(t, srv, api.PathLoginChallenge, api.LoginChallengeRequest{Username: "a"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]any{"message": "internal server error"}, body)
}

func do(t *testing.T, srv *httptest.Server, method, path string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t, baseConfig(stubAuth{}))

	resp, raw := do(t, srv, http.MethodGet, "/health", http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(raw))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_NotFound(t *testing.T) {
	srv := newTestServer(t, baseConfig(stubAuth{}))

	resp, raw := do(t, srv, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"code":404,"reason":"no handler for GET /nope"}`, string(raw))

	resp, raw = do(t, srv, http.MethodGet, api.PathLogin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"code":404,"reason":"no handler for GET /auth/login"}`, string(raw))
}

func TestRouter_Origins(t *testing.T) {
	srv := newTestServer(t, baseConfig(stubAuth{}))

	resp, raw := do(t, srv, http.MethodPost, api.PathLogin, http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{
		"code": 403,
		"reason": "Origin is not allowed.",
		"origin": "https://evil.example",
		"allowedOrigins": ["https://app.example"]
	}`, string(raw))

	resp, _ = do(t, srv, http.MethodOptions, api.PathLogin, http.Header{
		"Origin":                         {testOrigin},
		"Access-Control-Request-Method":  {http.MethodPost},
		"Access-Control-Request-Headers": {"content-type"},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RateLimit(t *testing.T) {
	c := baseConfig(stubAuth{})
	c.RateLimit = 0.001
	c.RateBurst = 2
	srv := newTestServer(t, c)

	for i := 0; i < 2; i++ {
		resp, _ := post(t, srv, api.PathLoginChallenge, `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	resp, body := post(t, srv, api.PathLoginChallenge, `{}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, float64(http.StatusTooManyRequests), body["code"])

	resp, _ = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is not rate limited")
}

func postFrom(t *testing.T, srv *httptest.Server, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+api.PathLoginChallenge, strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestRouter_RateLimitIgnoresForwardedFor(t *testing.T) {
	c := baseConfig(stubAuth{})
	c.RateLimit = 0.001
	c.RateBurst = 2
	srv := newTestServer(t, c)

	assert.Equal(t, http.StatusBadRequest, postFrom(t, srv, "10.0.0.1"))
	assert.Equal(t, http.StatusBadRequest, postFrom(t, srv, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(t, srv, "10.0.0.3"),
		"rotating X-Forwarded-For does not buy a new bucket")
}

func TestRouter_RateLimitTrustedProxy(t *testing.T) {
	c := baseConfig(stubAuth{})
	c.RateLimit = 0.001
	c.RateBurst = 1
	c.TrustProxyHeaders = true
	srv := newTestServer(t, c)

	assert.Equal(t, http.StatusBadRequest, postFrom(t, srv, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(t, srv, "10.0.0.1"))
	assert.Equal(t, http.StatusBadRequest, postFrom(t, srv, "10.0.0.2"), "each forwarded client has its own bucket")
}

func TestRouter_CorrelationAndMetrics(t *testing.T) {
	c := baseConfig(stubAuth{})
	srv := newTestServer(t, c)

	resp, _ := do(t, srv, http.MethodGet, "/health", http.Header{"X-Request-Id": {"req-42"}})
	assert.Equal(t, "req-42", resp.Header.Get(correlationHeader))

	resp, _ = do(t, srv, http.MethodGet, "/health", http.Header{correlationHeader: {"bad id with spaces"}})
	assert.Regexp(t, `^[0-9a-f-]{36}$`, resp.Header.Get(correlationHeader))

	resp, raw := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `sigauth_http_requests_total{method="GET",route="/health",status="200"} 2`)
}
