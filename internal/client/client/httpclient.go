package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/api"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client
	origin  string
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default client with a 10 s timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *HTTPClient) { c.http = h }
}

// WithOrigin sends an Origin header, as a browser would.
func WithOrigin(origin string) Option {
	return func(c *HTTPClient) { c.origin = origin }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Signup(ctx context.Context, req api.SignupRequest) (api.SignupResponse, error) {
	resp, _, err := call[api.SignupResponse](ctx, c, api.PathSignup, req, api.SignupResponseSchema())
	return resp, err
}

func (c *HTTPClient) LoginChallenge(ctx context.Context, req api.LoginChallengeRequest) (api.LoginChallengeResponse, error) {
	resp, _, err := call[api.LoginChallengeResponse](ctx, c, api.PathLoginChallenge, req, api.LoginChallengeResponseSchema())
	return resp, err
}

func (c *HTTPClient) Login(ctx context.Context, req api.LoginRequest) (LoginReply, error) {
	resp, cookies, err := call[api.LoginResponse](ctx, c, api.PathLogin, req, api.LoginResponseSchema())
	if err != nil {
		return LoginReply{}, err
	}
	reply := LoginReply{Response: resp}
	for _, ck := range cookies {
		if ck.Name == api.SessionCookieName {
			reply.Session = ck
		}
	}
	return reply, nil
}

// Ping checks /health.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func call[T any](ctx context.Context, c *HTTPClient, path string, body any, node *validator.Node) (T, []*http.Cookie, error) {
	var zero T

	payload, err := validator.Serialize(body)
	if err != nil {
		return zero, nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return zero, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return zero, nil, decodeAPIError(resp.StatusCode, raw)
	}

	out, err := validator.DecodeJSON[T](node, raw, "response("+path+")")
	if err != nil {
		return zero, nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return out, resp.Cookies(), nil
}

// statusBodyNode matches router-level rejections such as 403, 404 and 429.
var statusBodyNode = validator.Record(
	validator.F("code", validator.Number()),
	validator.F("reason", validator.String()),
)

func decodeAPIError(status int, raw []byte) error {
	if body, err := validator.DecodeJSON[api.ErrorBody](api.ErrorBodySchema(), raw); err == nil {
		return &APIError{Status: status, Message: body.Message, Path: body.Path}
	}
	if o, err := validator.DecodeJSON[validator.Object](statusBodyNode, raw); err == nil {
		return &APIError{Status: status, Message: validator.Get[string](o, "reason")}
	}
	return &APIError{Status: status, Message: http.StatusText(status)}
}
