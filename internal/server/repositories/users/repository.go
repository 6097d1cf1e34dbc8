// Package users declares the storage contract for user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/sigauth/internal/server/models"
)

type Repository interface {
	// Create inserts user. A taken username yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) error

	// GetByUsername looks a user up by lowercased username and returns
	// common.ErrorNotFound when there is none.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
