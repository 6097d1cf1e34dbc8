// Package repomanager groups the repositories into a Store that can run
// work atomically. PostgreSQL backs production; MemoryStore backs tests
// and single-process development.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/sigauth/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/users"
)

// Repositories is one consistent view of storage: either autocommit or
// bound to a single transaction.
type Repositories struct {
	Invitations invitations.Repository
	Users       users.Repository
	Profiles    profiles.Repository
	Sessions    sessions.Repository
}

type Store interface {
	// Repos returns repositories that commit each call on its own.
	Repos() Repositories

	// InTx runs fn against transactional repositories. All writes made
	// through them are committed together when fn returns nil and
	// discarded when it returns an error or panics.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error

	RunMigrations(ctx context.Context) error
	Close() error
}
