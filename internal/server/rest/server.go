// Package rest exposes the authentication service over HTTP with JSON
// bodies.
package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/logging"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address   string
	handler   http.Handler
	tlsConfig *tls.Config
	logger    logging.Logger
}

// NewHTTPServer serves handler on address. A nil tlsConfig serves plain
// HTTP.
func NewHTTPServer(address string, handler http.Handler, tlsConfig *tls.Config, l logging.Logger) *HTTPServer {
	return &HTTPServer{
		address:   address,
		handler:   handler,
		tlsConfig: tlsConfig,
		logger:    l.With("module", "http_server"),
	}
}

// Run listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *HTTPServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	served := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String(), "tls", s.tlsConfig != nil)

	var err error
	if s.tlsConfig != nil {
		err = srv.ServeTLS(listen, "", "")
	} else {
		err = srv.Serve(listen)
	}
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	close(served)
	<-stopped
	return err
}
