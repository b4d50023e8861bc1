package lottery

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrDrawNotFound = errors.New("draw not found")

type Repository interface {
	// WithTx runs fn against a repository bound to one transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error
	Create(ctx context.Context, draw *Draw) error
	Delete(ctx context.Context, id uint) error
	// WinningDraw returns the latest winning draw, played or not.
	WinningDraw(ctx context.Context) (*Draw, error)
	// LiveWinningDraw returns the winning draw that is not played yet.
	LiveWinningDraw(ctx context.Context) (*Draw, error)
	ListByOwner(ctx context.Context, userID uint, played bool) ([]Draw, error)
	// ListUnplayedEntries returns every unplayed user draw in insertion order.
	ListUnplayedEntries(ctx context.Context) ([]Draw, error)
	MarkMatch(ctx context.Context, id uint) error
	MarkPlayed(ctx context.Context, id uint, round int) error
	DeletePlayed(ctx context.Context, userID uint) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, draw *Draw) error {
	return r.db.WithContext(ctx).Create(draw).Error
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Draw{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDrawNotFound
	}
	return nil
}

func (r *repository) first(ctx context.Context, query *gorm.DB) (*Draw, error) {
	var draw Draw
	if err := query.WithContext(ctx).First(&draw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDrawNotFound
		}
		return nil, err
	}
	return &draw, nil
}

func (r *repository) WinningDraw(ctx context.Context) (*Draw, error) {
	return r.first(ctx, r.db.Where("win = ?", true).Order("round DESC").Order("id DESC"))
}

func (r *repository) LiveWinningDraw(ctx context.Context) (*Draw, error) {
	return r.first(ctx, r.db.Where("win = ? AND played = ?", true, false))
}

func (r *repository) ListByOwner(ctx context.Context, userID uint, played bool) ([]Draw, error) {
	var draws []Draw
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND win = ? AND played = ?", userID, false, played).
		Order("id").
		Find(&draws).Error
	return draws, err
}

func (r *repository) ListUnplayedEntries(ctx context.Context) ([]Draw, error) {
	var draws []Draw
	err := r.db.WithContext(ctx).
		Where("win = ? AND played = ?", false, false).
		Order("id").
		Find(&draws).Error
	return draws, err
}

func (r *repository) update(ctx context.Context, id uint, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Draw{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDrawNotFound
	}
	return nil
}

func (r *repository) MarkMatch(ctx context.Context, id uint) error {
	return r.update(ctx, id, map[string]interface{}{"match": true})
}

func (r *repository) MarkPlayed(ctx context.Context, id uint, round int) error {
	return r.update(ctx, id, map[string]interface{}{"played": true, "round": round})
}

func (r *repository) DeletePlayed(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND win = ? AND played = ?", userID, false, true).
		Delete(&Draw{})
	return res.RowsAffected, res.Error
}
