package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"
)

// memoryStore mirrors the SQL semantics of the account repositories.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[int]models.Account
	nextID   int
	failErr  error
	// beforeReset runs ahead of ResetLoginState to simulate a concurrent
	// writer.
	beforeReset func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[int]models.Account{}, nextID: 1}
}

func (m *memoryStore) add(a models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Credentials().ID = m.nextID
	m.accounts[m.nextID] = a
	m.nextID++
}

func (m *memoryStore) cred(id int) *models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Credentials()
}

func (m *memoryStore) ForRole(role models.Role) (repository.AccountRepository, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return &roleView{store: m, role: role}, nil
}

func (m *memoryStore) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Role() == models.RoleUser && a.Credentials().Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = m.nextID
	m.accounts[m.nextID] = u
	m.nextID++
	return nil
}

type roleView struct {
	store *memoryStore
	role  models.Role
}

func (v *roleView) FindForLogin(_ context.Context, email, indexCode string) (models.Account, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	for _, a := range v.store.accounts {
		if a.Role() != v.role || a.Credentials().Email != email {
			continue
		}
		if admin, ok := a.(*models.Admin); ok && admin.IndexCode != indexCode {
			continue
		}
		return clone(a), nil
	}
	return nil, repository.ErrNotFound
}

func (v *roleView) FindByID(_ context.Context, id int) (models.Account, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	a, ok := v.store.accounts[id]
	if !ok || a.Role() != v.role {
		return nil, repository.ErrNotFound
	}
	return clone(a), nil
}

func (v *roleView) RecordFailedLogin(_ context.Context, id, threshold int, lockUntil, now time.Time) (repository.LoginFailure, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if v.store.failErr != nil {
		return repository.LoginFailure{}, v.store.failErr
	}
	c := v.store.accounts[id].Credentials()
	expired := c.LockedUntil != nil && !c.LockedUntil.After(now)
	if expired {
		c.FailedLoginAttempts = 1
		c.LockedUntil = nil
	} else {
		c.FailedLoginAttempts++
	}
	if c.FailedLoginAttempts >= threshold {
		t := lockUntil
		c.LockedUntil = &t
	}
	return repository.LoginFailure{Attempts: c.FailedLoginAttempts, LockedUntil: c.LockedUntil}, nil
}

func (v *roleView) ResetLoginState(_ context.Context, id int, now time.Time) (*time.Time, error) {
	if v.store.beforeReset != nil {
		v.store.beforeReset()
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	c := v.store.accounts[id].Credentials()
	if c.LockedUntil != nil && c.LockedUntil.After(now) {
		t := *c.LockedUntil
		return &t, nil
	}
	c.FailedLoginAttempts = 0
	c.LockedUntil = nil
	return nil, nil
}

func (v *roleView) UpdatePassword(_ context.Context, id int, hash string, changedAt time.Time) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	c := v.store.accounts[id].Credentials()
	c.PasswordHash = hash
	c.PasswordChangedAt = changedAt
	return nil
}

func clone(a models.Account) models.Account {
	switch v := a.(type) {
	case *models.User:
		c := *v
		return &c
	case *models.Admin:
		c := *v
		return &c
	}
	return a
}
