package profiles

import (
	"context"
	"database/sql"
	"errors"

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

func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `INSERT INTO users_for_friends (user_id, display_name) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, p.UserID, p.DisplayName); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return oops.In("profiles").Code("DB_ERROR").With("user_id", p.UserID).Wrapf(err, "db error")
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT user_id, display_name FROM users_for_friends WHERE user_id = $1`
	p := &models.Profile{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, oops.In("profiles").Code("DB_ERROR").With("user_id", userID).Wrapf(err, "db error")
	}
	return p, nil
}
