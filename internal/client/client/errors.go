package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/validator"
)

var (
	ErrUnavailable = errors.New("server unavailable")

	// ErrUnexpectedResponse is returned when a 200 body does not match the
	// response schema of its endpoint.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// APIError is a non-200 answer from the server.
type APIError struct {
	Status  int
	Message string
	Path    []string
}

func (e *APIError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("server returned %d: %s (at %s)", e.Status, e.Message, validator.Location(e.Path))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}
