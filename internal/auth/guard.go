package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrLockedOut = errors.New("number of incorrect logins exceeded")

const (
	MessageAttemptsExceeded = "Number of incorrect logins exceeded"
	messageCheckDetails     = "Please check your login details and try again."
)

// SessionStore keeps one attempt counter per login session.
type SessionStore interface {
	// Increment atomically adds one to the counter of sessionID, refreshing
	// its expiry, and returns the new value.
	Increment(ctx context.Context, sessionID string) (int, error)
	// Decrement takes one back from a live counter. It never creates a
	// counter or drops it below zero.
	Decrement(ctx context.Context, sessionID string) error
	Count(ctx context.Context, sessionID string) (int, error)
	Reset(ctx context.Context, sessionID string) error
}

// GuardState is the observable state of one session: Open(Failures) or Locked.
type GuardState struct {
	Failures  int  `json:"failures"`
	Remaining int  `json:"remaining"`
	Locked    bool `json:"locked"`
}

// Guard enforces the per-session attempt limit. An attempt is reserved by
// incrementing the counter before credentials are checked, so parallel
// requests in one session cannot check more than maxAttempts credentials.
type Guard struct {
	store       SessionStore
	maxAttempts int
}

func NewGuard(store SessionStore, maxAttempts int) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Guard{store: store, maxAttempts: maxAttempts}
}

func (g *Guard) MaxAttempts() int {
	return g.maxAttempts
}

// Begin reserves an attempt for sessionID and returns its ordinal. Once the
// session has used up its attempts it returns ErrLockedOut and the caller
// must not check credentials.
func (g *Guard) Begin(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("empty login session")
	}

	n, err := g.store.Increment(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("reserve login attempt: %w", err)
	}
	if n > g.maxAttempts {
		return n, ErrLockedOut
	}
	return n, nil
}

// Remaining reports how many attempts are left after attempt n failed.
func (g *Guard) Remaining(n int) int {
	if r := g.maxAttempts - n; r > 0 {
		return r
	}
	return 0
}

// Release hands back an attempt reserved by Begin whose outcome was neither
// success nor a credential failure, such as a user store outage.
func (g *Guard) Release(ctx context.Context, sessionID string) error {
	if err := g.store.Decrement(ctx, sessionID); err != nil {
		return fmt.Errorf("release login attempt: %w", err)
	}
	return nil
}

// Succeed returns the session to Open(0).
func (g *Guard) Succeed(ctx context.Context, sessionID string) error {
	if err := g.store.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (g *Guard) State(ctx context.Context, sessionID string) (GuardState, error) {
	if sessionID == "" {
		return GuardState{Remaining: g.maxAttempts}, nil
	}
	n, err := g.store.Count(ctx, sessionID)
	if err != nil {
		return GuardState{}, fmt.Errorf("read login attempts: %w", err)
	}
	if n > g.maxAttempts {
		n = g.maxAttempts
	}
	return GuardState{
		Failures:  n,
		Remaining: g.Remaining(n),
		Locked:    n >= g.maxAttempts,
	}, nil
}

// AttemptsMessage is the user-facing text after a failure that left
// remaining attempts.
func AttemptsMessage(remaining int) string {
	switch {
	case remaining <= 0:
		return MessageAttemptsExceeded
	case remaining == 1:
		return messageCheckDetails + " 1 login attempt remaining"
	default:
		return fmt.Sprintf("%s %d login attempts remaining", messageCheckDetails, remaining)
	}
}

type memoryEntry struct {
	count   int
	expires time.Time
}

// MemorySessionStore keeps counters in process memory. Suitable for a single
// instance and for tests.
type MemorySessionStore struct {
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) live(sessionID string) *memoryEntry {
	e, ok := s.entries[sessionID]
	if !ok {
		return nil
	}
	if s.ttl > 0 && s.now().After(e.expires) {
		delete(s.entries, sessionID)
		return nil
	}
	return e
}

func (s *MemorySessionStore) Increment(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(sessionID)
	if e == nil {
		e = &memoryEntry{}
		s.entries[sessionID] = e
	}
	e.count++
	e.expires = s.now().Add(s.ttl)
	return e.count, nil
}

func (s *MemorySessionStore) Decrement(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(sessionID)
	if e == nil {
		return nil
	}
	if e.count--; e.count <= 0 {
		delete(s.entries, sessionID)
	}
	return nil
}

func (s *MemorySessionStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(sessionID); e != nil {
		return e.count, nil
	}
	return 0, nil
}

func (s *MemorySessionStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}

// Sweep drops every expired counter and reports how many were removed.
// Expired entries are otherwise only reclaimed when their session returns.
func (s *MemorySessionStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
