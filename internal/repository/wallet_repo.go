package repository

import (
	"context"
	"errors"

	"wagerhub/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound   = errors.New("钱包不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	ErrInvalidPurpose   = errors.New("钱包用途不合法")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Get 按 (拥有者, 用途) 读取钱包
// 传入 tx 时在事务内读取，保证后续 CAS 基于事务视图
func (r *WalletRepository) Get(ctx context.Context, tx *gorm.DB, ownerID int64, purpose string) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).
		Where("owner_id = ? AND purpose = ?", ownerID, purpose).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 惰性建立钱包
// 并发安全：冲突时 DoNothing，随后重新读取已存在的那一行
func (r *WalletRepository) GetOrCreate(ctx context.Context, ownerID int64, purpose string) (*model.Wallet, error) {
	if !model.ValidWalletPurpose(purpose) {
		return nil, ErrInvalidPurpose
	}

	wallet, err := r.Get(ctx, nil, ownerID, purpose)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.Wallet{
		OwnerID: ownerID,
		Purpose: purpose,
		Balance: decimal.Zero,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "purpose"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, nil, ownerID, purpose)
}

// GetPlatform 获取平台手续费钱包（全局唯一行，不存在时创建）
func (r *WalletRepository) GetPlatform(ctx context.Context) (*model.Wallet, error) {
	return r.GetOrCreate(ctx, model.PlatformOwnerID, model.WalletPurposePlatform)
}

// UpdateBalance 按乐观锁版本写入新余额
//
// 【关键点】新余额在业务侧用 decimal 精确算好后整体写入，
// 不在 SQL 里做加减 —— 版本号 CAS 保证写入基于的是最新一次读取
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, walletID int64, newBalance decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", walletID, version).
		Updates(map[string]interface{}{
			"balance": newBalance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	return nil
}
