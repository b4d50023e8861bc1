package lottery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/cryptobox"
)

var (
	ErrNoActiveRound = errors.New("current winning draw expired")
	ErrNoEntries     = errors.New("no user draws entered")
)

// Owners resolves the owner of a draw for the winners list.
type Owners interface {
	GetUser(ctx context.Context, id uint) (*auth.User, error)
}

// Engine resolves rounds against the live winning draw.
type Engine struct {
	store   *Store
	owners  Owners
	metrics *MetricsCollector
	log     *zap.Logger
}

func NewEngine(store *Store, owners Owners, metrics *MetricsCollector, log *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		owners:  owners,
		metrics: metrics,
		log:     log,
	}
}

type entry struct {
	draw Draw
	view DrawView
	ok   bool
}

// RunRound resolves the live winning draw against every unplayed entry.
//
// The winning draw is marked played before any entry is examined, and each
// entry update is committed on its own. An entry that cannot be decrypted is
// logged, left out of the winners and still marked played. Any store fault
// aborts the round with an error; updates already committed stand.
func (e *Engine) RunRound(ctx context.Context, p *auth.Principal) (*RoundReport, error) {
	if err := e.store.authorize(p, auth.RoleAdmin); err != nil {
		return nil, err
	}

	e.store.round.Lock()
	defer e.store.round.Unlock()

	repo := e.store.repository
	live, err := repo.LiveWinningDraw(ctx)
	if errors.Is(err, ErrDrawNotFound) {
		return nil, ErrNoActiveRound
	}
	if err != nil {
		return nil, fmt.Errorf("load winning draw: %w", err)
	}

	round := live.Round
	e.metrics.StartRound(round)

	report, err := e.resolve(ctx, live)
	switch {
	case errors.Is(err, ErrNoEntries):
		e.metrics.EndRound(round, RoundNoEntries, report)
	case err != nil:
		e.metrics.EndRound(round, RoundFailed, report)
		e.log.Error("round failed", zap.Int("round", round), zap.Error(err))
	default:
		e.metrics.EndRound(round, RoundResolved, report)
		e.log.Info("round resolved",
			zap.Int("round", round),
			zap.Int("entries", report.Entries),
			zap.Int("winners", len(report.Winners)),
			zap.Int("failed", report.Failed))
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Engine) resolve(ctx context.Context, live *Draw) (*RoundReport, error) {
	repo := e.store.repository
	report := &RoundReport{Round: live.Round, Winners: []Winner{}}

	winning, err := e.store.open(ctx, live)
	if err != nil {
		return report, fmt.Errorf("decrypt winning draw: %w", err)
	}

	draws, err := repo.ListUnplayedEntries(ctx)
	if err != nil {
		return report, fmt.Errorf("load entries: %w", err)
	}
	if len(draws) == 0 {
		return report, ErrNoEntries
	}
	report.Entries = len(draws)

	// Decrypt everything first so a key lookup fault aborts before any
	// mutation.
	entries := make([]entry, len(draws))
	for i := range draws {
		entries[i].draw = draws[i]
		v, err := e.store.open(ctx, &draws[i])
		if errors.Is(err, cryptobox.ErrDecryption) {
			e.log.Warn("skipping undecryptable draw",
				zap.Uint("draw_id", draws[i].ID),
				zap.Uint("user_id", draws[i].UserID),
				zap.Error(err))
			report.Failed++
			continue
		}
		if err != nil {
			return report, err
		}
		entries[i].view = v
		entries[i].ok = true
	}

	if err := repo.MarkPlayed(ctx, live.ID, live.Round); err != nil {
		return report, fmt.Errorf("close round %d: %w", live.Round, err)
	}

	for _, en := range entries {
		if !en.ok || !SameDraw(en.view.Draw, winning.Draw) {
			continue
		}
		owner, err := e.owners.GetUser(ctx, en.draw.UserID)
		if err != nil {
			return report, fmt.Errorf("load owner of draw %d: %w", en.draw.ID, err)
		}
		if err := repo.MarkMatch(ctx, en.draw.ID); err != nil {
			return report, fmt.Errorf("mark draw %d as match: %w", en.draw.ID, err)
		}
		report.Winners = append(report.Winners, Winner{
			Round:   live.Round,
			Draw:    en.view.Draw,
			Numbers: en.view.Numbers,
			UserID:  en.draw.UserID,
			Email:   owner.Email,
		})
	}

	for _, en := range entries {
		if err := repo.MarkPlayed(ctx, en.draw.ID, live.Round); err != nil {
			return report, fmt.Errorf("mark draw %d as played: %w", en.draw.ID, err)
		}
	}

	return report, nil
}
