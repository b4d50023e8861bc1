package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

type mockRepository struct {
	users        map[uint]*User
	usersByEmail map[string]*User
	nextID       uint
	// lookupErr, when set, fails every GetUserByEmail.
	lookupErr error
	mu        sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:        make(map[uint]*User),
		usersByEmail: make(map[string]*User),
	}
}

func (r *mockRepository) CreateUser(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := r.usersByEmail[email]; exists {
		return ErrUserExists
	}

	r.nextID++
	user.ID = r.nextID
	user.Email = email
	user.CreatedAt = time.Now()

	// Clone the user to prevent external modifications
	stored := *user
	r.users[stored.ID] = &stored
	r.usersByEmail[email] = &stored
	return nil
}

func (r *mockRepository) GetUserByID(_ context.Context, id uint) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *mockRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.lookupErr != nil {
		return nil, r.lookupErr
	}

	user, exists := r.usersByEmail[normalizeEmail(email)]
	if !exists {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *mockRepository) ListUsersByRole(_ context.Context, role Role) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []User
	for _, u := range r.users {
		if u.Role == role {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *mockRepository) RecordLogin(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return ErrUserNotFound
	}
	user.LastLoggedIn = user.CurrentLoggedIn
	user.CurrentLoggedIn = &at
	return nil
}
