package service

import (
	"context"

	"wagerhub/internal/model"
	"wagerhub/internal/repository"
	"wagerhub/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// 钱包账本原语
// ============================================================================
//
// Credit / Debit / Transfer 是系统里仅有的三个动钱入口。
// 每次余额变动都：
//   1. 在调用方的数据库事务内执行（tx 不允许为 nil）
//   2. 用乐观锁版本号 CAS 写入新余额
//   3. 同事务写入恰好一条流水（Transfer 两个钱包各一条）
// 要么全部生效，要么全部回滚 —— 不存在"扣了钱没记账"的中间态。
//
// ============================================================================

type Ledger struct {
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// ValidAmount 金额合法性：正数，两位小数以内
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// Credit 入账
// wallet 必须是本事务内刚读出来的最新行；成功后就地更新余额和版本号，
// 同一事务里对同一钱包的后续操作可以继续使用这个对象
func (l *Ledger) Credit(ctx context.Context, tx *gorm.DB, wallet *model.Wallet, amount decimal.Decimal, kind, matchID, remark string) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}

	balanceBefore := wallet.Balance
	balanceAfter := balanceBefore.Add(amount)

	if err := l.walletRepo.UpdateBalance(ctx, tx, wallet.ID, balanceAfter, wallet.Version); err != nil {
		return err
	}

	trans := &model.WalletTransaction{
		ID:            uuid.NewString(),
		TransactionNo: idgen.GenerateTransactionNo(),
		OwnerID:       wallet.OwnerID,
		WalletID:      wallet.ID,
		MatchID:       matchID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Remark:        remark,
	}
	if err := l.transactionRepo.Create(ctx, tx, trans); err != nil {
		return err
	}

	wallet.Balance = balanceAfter
	wallet.Version++
	return nil
}

// Debit 出账
// 余额不足返回 repository.ErrBalanceNotEnough，任何失败整体回滚，余额永不为负
func (l *Ledger) Debit(ctx context.Context, tx *gorm.DB, wallet *model.Wallet, amount decimal.Decimal, kind, matchID, remark string) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}

	balanceBefore := wallet.Balance
	if balanceBefore.LessThan(amount) {
		return repository.ErrBalanceNotEnough
	}
	balanceAfter := balanceBefore.Sub(amount)

	if err := l.walletRepo.UpdateBalance(ctx, tx, wallet.ID, balanceAfter, wallet.Version); err != nil {
		return err
	}

	trans := &model.WalletTransaction{
		ID:            uuid.NewString(),
		TransactionNo: idgen.GenerateTransactionNo(),
		OwnerID:       wallet.OwnerID,
		WalletID:      wallet.ID,
		MatchID:       matchID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Remark:        remark,
	}
	if err := l.transactionRepo.Create(ctx, tx, trans); err != nil {
		return err
	}

	wallet.Balance = balanceAfter
	wallet.Version++
	return nil
}

// Transfer 两钱包间划转：先出后入，双方各记一条流水
func (l *Ledger) Transfer(ctx context.Context, tx *gorm.DB, from, to *model.Wallet, amount decimal.Decimal, kind, matchID, remark string) error {
	if err := l.Debit(ctx, tx, from, amount, kind, matchID, remark); err != nil {
		return err
	}
	return l.Credit(ctx, tx, to, amount, kind, matchID, remark)
}
