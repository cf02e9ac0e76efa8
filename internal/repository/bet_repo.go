package repository

import (
	"context"
	"errors"

	"wagerhub/internal/model"

	"gorm.io/gorm"
)

var (
	ErrBetNotFound       = errors.New("投注不存在")
	ErrBetStatusConflict = errors.New("投注已被结清")
)

type BetRepository struct {
	db *gorm.DB
}

func NewBetRepository(db *gorm.DB) *BetRepository {
	return &BetRepository{db: db}
}

func (r *BetRepository) Create(ctx context.Context, tx *gorm.DB, bet *model.SpectatorBet) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(bet).Error
}

// ListPendingByMatchID 某对局下所有未结清投注
// 只在结算事务内部调用，传入的 tx 不允许为 nil
func (r *BetRepository) ListPendingByMatchID(ctx context.Context, tx *gorm.DB, matchID string) ([]*model.SpectatorBet, error) {
	var bets []*model.SpectatorBet
	err := tx.WithContext(ctx).
		Where("match_id = ? AND status = ?", matchID, model.BetStatusPending).
		Find(&bets).Error
	return bets, err
}

// Resolve 单条投注结清：PENDING -> WON/LOST/VOIDED 的一次性迁移
// CAS 条件更新让同一条投注不可能被结清两次，即使结算被重复触发
func (r *BetRepository) Resolve(ctx context.Context, tx *gorm.DB, betID string, toStatus string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.SpectatorBet{}).
		Where("id = ? AND status = ?", betID, model.BetStatusPending).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBetStatusConflict
	}
	return nil
}

func (r *BetRepository) ListByMatchID(ctx context.Context, matchID string) ([]*model.SpectatorBet, error) {
	var bets []*model.SpectatorBet
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Find(&bets).Error
	return bets, err
}

func (r *BetRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.SpectatorBet, int64, error) {
	var bets []*model.SpectatorBet
	var total int64

	query := r.db.WithContext(ctx).Model(&model.SpectatorBet{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&bets).Error

	return bets, total, err
}
