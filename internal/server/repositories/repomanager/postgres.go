package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/dbx"
	"github.com/dmitrijs2005/sigauth/internal/server/migrations"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore serves repositories over a *sql.DB using the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenPostgres opens dsn with the pgx driver and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func reposFor(db dbx.DBTX) Repositories {
	return Repositories{
		Invitations: invitations.NewPostgresRepository(db),
		Users:       users.NewPostgresRepository(db),
		Profiles:    profiles.NewPostgresRepository(db),
		Sessions:    sessions.NewPostgresRepository(db),
	}
}

func (s *PostgresStore) Repos() Repositories {
	return reposFor(s.db)
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, reposFor(tx))
	})
}

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
