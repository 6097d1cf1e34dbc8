// Package profiles stores the public, friend-visible part of each user.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/sigauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Profile) error

	// Get returns the profile of userID, or common.ErrorNotFound.
	Get(ctx context.Context, userID string) (*models.Profile, error)
}
