package lottery

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

type mockRepository struct {
	draws  map[uint]*Draw
	nextID uint
	mu     sync.Mutex

	// failMarkPlayed, when set, is consulted before every MarkPlayed.
	failMarkPlayed func(id uint) error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		draws: make(map[uint]*Draw),
	}
}

func cloneDraw(d *Draw) Draw {
	c := *d
	c.Ciphertext = append([]byte(nil), d.Ciphertext...)
	return c
}

// WithTx restores the previous state when fn fails.
func (r *mockRepository) WithTx(_ context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	snapshot := make(map[uint]*Draw, len(r.draws))
	for id, d := range r.draws {
		c := cloneDraw(d)
		snapshot[id] = &c
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.draws = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *mockRepository) Create(_ context.Context, draw *Draw) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if draw.Win && !draw.Played {
		for _, d := range r.draws {
			if d.Win && !d.Played {
				return gorm.ErrDuplicatedKey
			}
		}
	}

	r.nextID++
	draw.ID = r.nextID
	draw.CreatedAt = time.Now()
	stored := cloneDraw(draw)
	r.draws[stored.ID] = &stored
	return nil
}

func (r *mockRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.draws[id]; !ok {
		return ErrDrawNotFound
	}
	delete(r.draws, id)
	return nil
}

func (r *mockRepository) sorted(keep func(d *Draw) bool) []Draw {
	var out []Draw
	for _, d := range r.draws {
		if keep(d) {
			out = append(out, cloneDraw(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *mockRepository) WinningDraw(_ context.Context) (*Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	winning := r.sorted(func(d *Draw) bool { return d.Win })
	if len(winning) == 0 {
		return nil, ErrDrawNotFound
	}
	best := winning[0]
	for _, d := range winning[1:] {
		if d.Round >= best.Round {
			best = d
		}
	}
	return &best, nil
}

func (r *mockRepository) LiveWinningDraw(_ context.Context) (*Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.sorted(func(d *Draw) bool { return d.Win && !d.Played })
	if len(live) == 0 {
		return nil, ErrDrawNotFound
	}
	return &live[0], nil
}

func (r *mockRepository) ListByOwner(_ context.Context, userID uint, played bool) ([]Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(d *Draw) bool {
		return d.UserID == userID && !d.Win && d.Played == played
	}), nil
}

func (r *mockRepository) ListUnplayedEntries(_ context.Context) ([]Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(d *Draw) bool { return !d.Win && !d.Played }), nil
}

func (r *mockRepository) MarkMatch(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.draws[id]
	if !ok {
		return ErrDrawNotFound
	}
	d.Match = true
	return nil
}

func (r *mockRepository) MarkPlayed(_ context.Context, id uint, round int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failMarkPlayed != nil {
		if err := r.failMarkPlayed(id); err != nil {
			return err
		}
	}
	d, ok := r.draws[id]
	if !ok {
		return ErrDrawNotFound
	}
	d.Played = true
	d.Round = round
	return nil
}

func (r *mockRepository) DeletePlayed(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, d := range r.draws {
		if d.UserID == userID && !d.Win && d.Played {
			delete(r.draws, id)
			n++
		}
	}
	return n, nil
}
