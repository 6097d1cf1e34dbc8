// Package invitations declares the storage contract for signup invitations.
package invitations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, inv *models.Invitation) error

	// GetForUpdate returns the invitation and, inside a transaction, locks it
	// until the transaction ends. A missing code yields common.ErrorNotFound.
	GetForUpdate(ctx context.Context, code string) (*models.Invitation, error)

	// Consume takes one use of the invitation if it still has uses left and
	// has not expired at now. Otherwise it returns common.ErrInvitationExhausted
	// and changes nothing.
	Consume(ctx context.Context, code string, now time.Time) error
}
