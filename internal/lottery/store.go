package lottery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/cryptobox"
	"github.com/elskow/lottery-web/internal/securitylog"
)

var ErrUnauthorized = fmt.Errorf("lottery: %w", auth.ErrUnauthorized)

// KeySource returns the draw key of an owner.
type KeySource interface {
	Key(ctx context.Context, userID uint) ([]byte, error)
}

// Store is the encryption-aware draw record store. Every operation checks the
// caller's role before touching records; users only ever see their own
// non-winning draws.
type Store struct {
	repository Repository
	keys       KeySource
	security   *securitylog.Log
	log        *zap.Logger
	maxNumber  int

	// round serialises winning draw publication with round resolution.
	round sync.Mutex
}

func NewStore(
	repo Repository,
	keys KeySource,
	security *securitylog.Log,
	log *zap.Logger,
	maxNumber int,
) *Store {
	if maxNumber <= 0 {
		maxNumber = 60
	}
	return &Store{
		repository: repo,
		keys:       keys,
		security:   security,
		log:        log,
		maxNumber:  maxNumber,
	}
}

func (s *Store) authorize(p *auth.Principal, role auth.Role) error {
	d := auth.Authorize(p, role)
	if d.Allowed {
		return nil
	}
	if p == nil || p.UserID == 0 {
		s.security.AnonymousAccess("")
	} else {
		s.security.UnauthorizedAccess(p.Actor(), "")
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, d.Reason)
}

func (s *Store) seal(ctx context.Context, ownerID uint, numbers []int) (*Draw, error) {
	if err := Validate(numbers, s.maxNumber); err != nil {
		return nil, err
	}

	key, err := s.keys.Key(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	blob, err := cryptobox.Seal(FormatNumbers(numbers), key)
	if err != nil {
		return nil, err
	}
	return &Draw{UserID: ownerID, Ciphertext: blob}, nil
}

// open decrypts d with its owner's key into a transient view. Failures that
// concern only this record wrap cryptobox.ErrDecryption.
func (s *Store) open(ctx context.Context, d *Draw) (DrawView, error) {
	key, err := s.keys.Key(ctx, d.UserID)
	if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, cryptobox.ErrNoSecret) {
		return DrawView{}, fmt.Errorf("draw %d: %w: owner key unavailable: %v", d.ID, cryptobox.ErrDecryption, err)
	}
	if err != nil {
		return DrawView{}, err
	}

	plaintext, err := cryptobox.Open(d.Ciphertext, key)
	if err != nil {
		return DrawView{}, fmt.Errorf("draw %d: %w", d.ID, err)
	}
	numbers, err := ParseNumbers(plaintext)
	if err != nil {
		return DrawView{}, fmt.Errorf("draw %d: %w: %v", d.ID, cryptobox.ErrDecryption, err)
	}

	return DrawView{
		ID:      d.ID,
		UserID:  d.UserID,
		Numbers: numbers,
		Draw:    normalizeDraw(plaintext),
		Win:     d.Win,
		Played:  d.Played,
		Match:   d.Match,
		Round:   d.Round,
	}, nil
}

func (s *Store) openAll(ctx context.Context, draws []Draw) ([]DrawView, error) {
	views := make([]DrawView, 0, len(draws))
	for i := range draws {
		v, err := s.open(ctx, &draws[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// SubmitDraw stores a new unplayed entry for the caller.
func (s *Store) SubmitDraw(ctx context.Context, p *auth.Principal, numbers []int) (*DrawView, error) {
	if err := s.authorize(p, auth.RoleUser); err != nil {
		return nil, err
	}

	draw, err := s.seal(ctx, p.UserID, numbers)
	if err != nil {
		return nil, err
	}
	if err := s.repository.Create(ctx, draw); err != nil {
		return nil, fmt.Errorf("store draw: %w", err)
	}

	s.log.Debug("draw submitted", zap.Uint("draw_id", draw.ID), zap.Uint("user_id", p.UserID))
	return &DrawView{
		ID:      draw.ID,
		UserID:  draw.UserID,
		Numbers: append([]int(nil), numbers...),
		Draw:    FormatNumbers(numbers),
	}, nil
}

// PublishWinningDraw replaces the current winning draw, if any, with a new
// one for the following round. The first winning draw opens round 1.
func (s *Store) PublishWinningDraw(ctx context.Context, p *auth.Principal, numbers []int) (*DrawView, error) {
	if err := s.authorize(p, auth.RoleAdmin); err != nil {
		return nil, err
	}

	draw, err := s.seal(ctx, p.UserID, numbers)
	if err != nil {
		return nil, err
	}
	draw.Win = true

	s.round.Lock()
	defer s.round.Unlock()

	err = s.repository.WithTx(ctx, func(repo Repository) error {
		draw.Round = 1
		current, err := repo.WinningDraw(ctx)
		switch {
		case err == nil:
			draw.Round = current.Round + 1
			if err := repo.Delete(ctx, current.ID); err != nil {
				return fmt.Errorf("remove winning draw %d: %w", current.ID, err)
			}
		case !errors.Is(err, ErrDrawNotFound):
			return err
		}
		return repo.Create(ctx, draw)
	})
	if err != nil {
		return nil, fmt.Errorf("publish winning draw: %w", err)
	}

	s.log.Info("winning draw published", zap.Int("round", draw.Round), zap.Uint("admin_id", p.UserID))
	return &DrawView{
		ID:      draw.ID,
		UserID:  draw.UserID,
		Numbers: append([]int(nil), numbers...),
		Draw:    FormatNumbers(numbers),
		Win:     true,
		Round:   draw.Round,
	}, nil
}

// WinningDraw decrypts the latest winning draw for an administrator.
func (s *Store) WinningDraw(ctx context.Context, p *auth.Principal) (*DrawView, error) {
	if err := s.authorize(p, auth.RoleAdmin); err != nil {
		return nil, err
	}

	current, err := s.repository.WinningDraw(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.open(ctx, current)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListUnplayed returns the caller's draws that wait for a round.
func (s *Store) ListUnplayed(ctx context.Context, p *auth.Principal) ([]DrawView, error) {
	return s.listOwn(ctx, p, false)
}

// ListPlayed returns the caller's resolved draws.
func (s *Store) ListPlayed(ctx context.Context, p *auth.Principal) ([]DrawView, error) {
	return s.listOwn(ctx, p, true)
}

func (s *Store) listOwn(ctx context.Context, p *auth.Principal, played bool) ([]DrawView, error) {
	if err := s.authorize(p, auth.RoleUser); err != nil {
		return nil, err
	}

	draws, err := s.repository.ListByOwner(ctx, p.UserID, played)
	if err != nil {
		return nil, err
	}
	return s.openAll(ctx, draws)
}

// PurgePlayed deletes the caller's played draws and reports how many went.
func (s *Store) PurgePlayed(ctx context.Context, p *auth.Principal) (int64, error) {
	if err := s.authorize(p, auth.RoleUser); err != nil {
		return 0, err
	}

	n, err := s.repository.DeletePlayed(ctx, p.UserID)
	if err != nil {
		return 0, fmt.Errorf("delete played draws: %w", err)
	}
	return n, nil
}
