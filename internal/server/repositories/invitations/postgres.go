package invitations

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/dbx"
	"github.com/dmitrijs2005/sigauth/internal/server/models"
	"github.com/samber/oops"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (code, inviter_id, expires_at, remaining_uses)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, inv.Code, inv.InviterID, inv.ExpiresAt, inv.RemainingUses); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return oops.In("invitations").Code("DB_ERROR").With("code", inv.Code).Wrapf(err, "db error")
	}
	return nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, code string) (*models.Invitation, error) {
	query := `
		SELECT code, inviter_id, expires_at, remaining_uses
		FROM invitations
		WHERE code = $1
		FOR UPDATE
	`
	inv := &models.Invitation{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&inv.Code, &inv.InviterID, &inv.ExpiresAt, &inv.RemainingUses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, oops.In("invitations").Code("DB_ERROR").With("code", code).Wrapf(err, "db error")
	}
	return inv, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, code string, now time.Time) error {
	query := `
		UPDATE invitations
		SET remaining_uses = remaining_uses - 1
		WHERE code = $1 AND remaining_uses > 0 AND expires_at >= $2
	`
	res, err := r.db.ExecContext(ctx, query, code, now)
	if err != nil {
		return oops.In("invitations").Code("DB_ERROR").With("code", code).Wrapf(err, "db error")
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return oops.In("invitations").Code("DB_ERROR").With("code", code).Wrap(err)
	}
	if n == 0 {
		return common.ErrInvitationExhausted
	}
	return nil
}
