package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/client/migrations"
	"github.com/dmitrijs2005/sigauth/internal/client/repositories/metadata"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories is the client's local cache.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
}

var gooseUpContext = goose.UpContext

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return gooseUpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite cache at dsn and brings its schema up to
// date.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{DB: db, Metadata: metadata.NewSQLiteRepository(db)}, nil
}
