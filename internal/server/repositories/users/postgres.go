package users

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (id, username, key_credential, inviter_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, string(user.KeyCredential), user.InviterID).Scan(&user.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return oops.In("users").Code("DB_ERROR").With("user_id", user.ID).Wrapf(err, "db error")
	}
	return nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, key_credential, inviter_id, created_at FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.KeyCredential, &user.InviterID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, oops.In("users").Code("DB_ERROR").With("username", username).Wrapf(err, "db error")
	}
	return user, nil
}
