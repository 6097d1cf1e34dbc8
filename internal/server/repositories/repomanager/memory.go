package repomanager

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/server/models"
)

type memState struct {
	invitations map[string]models.Invitation
	users       map[string]models.User // by username
	profiles    map[string]models.Profile
	sessions    map[string]models.LoginSession
}

func (s *memState) clone() *memState {
	return &memState{
		invitations: maps.Clone(s.invitations),
		users:       maps.Clone(s.users),
		profiles:    maps.Clone(s.profiles),
		sessions:    maps.Clone(s.sessions),
	}
}

// MemoryStore keeps everything in process memory. Transactions are
// serialized: InTx holds the store lock for the duration of fn and works on
// a copy that replaces the live state only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			invitations: map[string]models.Invitation{},
			users:       map[string]models.User{},
			profiles:    map[string]models.Profile{},
			sessions:    map[string]models.LoginSession{},
		},
		now: time.Now,
	}
}

// access runs fn against some state; it hides whether a lock must be taken.
type access func(fn func(st *memState) error) error

func (s *MemoryStore) locked(fn func(st *memState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *MemoryStore) reposFor(a access) Repositories {
	return Repositories{
		Invitations: &memInvitations{a: a},
		Users:       &memUsers{a: a, now: s.now},
		Profiles:    &memProfiles{a: a},
		Sessions:    &memSessions{a: a},
	}
}

func (s *MemoryStore) Repos() Repositories {
	return s.reposFor(s.locked)
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	done := false
	txAccess := func(f func(st *memState) error) error {
		if done {
			return common.ErrorInternal
		}
		return f(work)
	}
	defer func() { done = true }()

	if err := fn(ctx, s.reposFor(txAccess)); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) RunMigrations(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

type memInvitations struct{ a access }

func (r *memInvitations) Create(_ context.Context, inv *models.Invitation) error {
	return r.a(func(st *memState) error {
		if _, ok := st.invitations[inv.Code]; ok {
			return common.ErrorAlreadyExists
		}
		st.invitations[inv.Code] = *inv
		return nil
	})
}

func (r *memInvitations) GetForUpdate(_ context.Context, code string) (*models.Invitation, error) {
	var out *models.Invitation
	err := r.a(func(st *memState) error {
		inv, ok := st.invitations[code]
		if !ok {
			return common.ErrorNotFound
		}
		out = &inv
		return nil
	})
	return out, err
}

func (r *memInvitations) Consume(_ context.Context, code string, now time.Time) error {
	return r.a(func(st *memState) error {
		inv, ok := st.invitations[code]
		if !ok || !inv.Usable(now) {
			return common.ErrInvitationExhausted
		}
		inv.RemainingUses--
		st.invitations[code] = inv
		return nil
	})
}

type memUsers struct {
	a   access
	now func() time.Time
}

func (r *memUsers) Create(_ context.Context, u *models.User) error {
	return r.a(func(st *memState) error {
		if _, ok := st.users[u.Username]; ok {
			return common.ErrorAlreadyExists
		}
		for _, other := range st.users {
			if other.ID == u.ID {
				return common.ErrorAlreadyExists
			}
		}
		u.CreatedAt = r.now().UTC()
		stored := *u
		stored.KeyCredential = append([]byte(nil), u.KeyCredential...)
		st.users[u.Username] = stored
		return nil
	})
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	var out *models.User
	err := r.a(func(st *memState) error {
		u, ok := st.users[username]
		if !ok {
			return common.ErrorNotFound
		}
		u.KeyCredential = append([]byte(nil), u.KeyCredential...)
		out = &u
		return nil
	})
	return out, err
}

type memProfiles struct{ a access }

func (r *memProfiles) Create(_ context.Context, p *models.Profile) error {
	return r.a(func(st *memState) error {
		if _, ok := st.profiles[p.UserID]; ok {
			return common.ErrorAlreadyExists
		}
		st.profiles[p.UserID] = *p
		return nil
	})
}

func (r *memProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	var out *models.Profile
	err := r.a(func(st *memState) error {
		p, ok := st.profiles[userID]
		if !ok {
			return common.ErrorNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

type memSessions struct{ a access }

func (r *memSessions) Create(_ context.Context, s *models.LoginSession) error {
	return r.a(func(st *memState) error {
		if _, ok := st.sessions[s.ID]; ok {
			return common.ErrorAlreadyExists
		}
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r *memSessions) Get(_ context.Context, id string) (*models.LoginSession, error) {
	var out *models.LoginSession
	err := r.a(func(st *memState) error {
		s, ok := st.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &s
		return nil
	})
	return out, err
}
