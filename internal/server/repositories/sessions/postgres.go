package sessions

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

func (r *PostgresRepository) Create(ctx context.Context, s *models.LoginSession) error {
	query := `
		INSERT INTO login_sessions (id, user_id, logged_in_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.LoggedInAt, s.ExpiresAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return oops.In("sessions").Code("DB_ERROR").With("user_id", s.UserID).Wrapf(err, "db error")
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.LoginSession, error) {
	query := `
		SELECT id, user_id, logged_in_at, expires_at
		FROM login_sessions
		WHERE id = $1
	`
	s := &models.LoginSession{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.LoggedInAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, oops.In("sessions").Code("DB_ERROR").Wrapf(err, "db error")
	}
	return s, nil
}
