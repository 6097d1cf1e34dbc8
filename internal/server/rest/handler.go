package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/api"
	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/logging"
	"github.com/dmitrijs2005/sigauth/internal/server/metrics"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

var internalErrorBody = api.ErrorBody{Message: "internal server error"}

// apiError is a request fault reported to the caller as is.
type apiError struct {
	status  int
	message string
	path    []string
}

func (e *apiError) Error() string { return e.message }

func badRequest(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, message: message}
}

// endpointFunc implements one endpoint. It may add response headers.
type endpointFunc[Req, Resp any] func(ctx context.Context, req Req, header http.Header) (Resp, error)

// handle reads the body within the size and time limits, validates it
// with node and passes the typed request to fn. Every outcome fn returns
// without error is a 200.
func handle[Req, Resp any](h *handler, node *validator.Node, fn endpointFunc[Req, Resp]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, timings := metrics.WithTimings(r.Context())

		body, err := h.readBody(w, r)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}

		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			h.logger.Warn(ctx, "request JSON parsing failed", "error", err)
			h.writeError(ctx, w, badRequest("bad JSON syntax"))
			return
		}

		req, err := validator.Decode[Req](node, raw)
		if err != nil {
			var ve *validator.ValidationError
			if errors.As(err, &ve) {
				err = &apiError{status: http.StatusBadRequest, message: ve.Error(), path: ve.Path}
			}
			h.writeError(ctx, w, err)
			return
		}

		resp, err := fn(ctx, req, w.Header())
		if err != nil {
			if errors.Is(err, common.ErrInvalidKeyCredential) {
				h.logger.Warn(ctx, "key credential rejected", "error", err)
				err = badRequest("invalid key credential")
			}
			h.writeError(ctx, w, err)
			return
		}

		out, err := validator.Serialize(resp)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		if h.serverTiming {
			if v := timings.Header(); v != "" {
				w.Header().Set("Server-Timing", v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

// readBody enforces MaxBodyBytes and MaxRequestTime on the request body.
func (h *handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	rc := http.NewResponseController(w)
	deadlineSet := rc.SetReadDeadline(h.now().Add(h.maxRequestTime)) == nil

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err == nil {
		if deadlineSet {
			_ = rc.SetReadDeadline(time.Time{})
		}
		return body, nil
	}

	// The rest of the body is never read; the deadline stays so that
	// net/http cannot block draining it before the response goes out.
	w.Header().Set("Connection", "close")

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, badRequest("max body size exceeded")
	}
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return nil, badRequest("max request time exceeded")
	}
	return nil, err
}

func (h *handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		writeJSON(ctx, h.logger, w, ae.status, api.ErrorBody{Message: ae.message, Path: ae.path})
		return
	}
	logging.LogError(ctx, h.logger, "request failed", err)
	writeJSON(ctx, h.logger, w, http.StatusInternalServerError, internalErrorBody)
}

func writeJSON(ctx context.Context, l logging.Logger, w http.ResponseWriter, status int, v any) {
	out, err := validator.Serialize(v)
	if err != nil {
		l.Error(ctx, "encode response", "error", err)
		status = http.StatusInternalServerError
		out = []byte(`{"message":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}
