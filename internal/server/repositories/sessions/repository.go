// Package sessions declares the storage contract for login sessions.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/sigauth/internal/server/models"
)

// Repository stores login sessions. Sessions are written once and never
// updated.
type Repository interface {
	Create(ctx context.Context, s *models.LoginSession) error

	// Get returns the session by id, or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.LoginSession, error)
}
