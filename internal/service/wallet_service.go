package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerhub/internal/infrastructure/lock"
	"wagerhub/internal/model"
	"wagerhub/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 充值来源：外部支付渠道确认到账后回调 Deposit，这是外部资金进入系统的唯一入口
const (
	DepositSourceCard   = "card"
	DepositSourceCrypto = "crypto"
	DepositSourceAdmin  = "admin"
)

type WalletService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	ledger          *Ledger
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	userRepo        *repository.UserRepository
}

func NewWalletService(db *gorm.DB, redisClient *redis.Client) *WalletService {
	return &WalletService{
		db:              db,
		redisClient:     redisClient,
		ledger:          NewLedger(db),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		userRepo:        repository.NewUserRepository(db),
	}
}

// checkActiveUser 读取用户并确认未被封禁
func checkActiveUser(ctx context.Context, userRepo *repository.UserRepository, userID int64) (*model.User, error) {
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Suspended {
		return nil, ErrUserSuspended
	}
	return user, nil
}

// Balances 返回用户三个钱包的余额（惰性建立）
func (s *WalletService) Balances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal, 3)
	for _, purpose := range []string{model.WalletPurposePersonal, model.WalletPurposeEscrow, model.WalletPurposeSpectator} {
		wallet, err := s.walletRepo.GetOrCreate(ctx, userID, purpose)
		if err != nil {
			return nil, err
		}
		balances[purpose] = wallet.Balance
	}
	return balances, nil
}

// Deposit 充值
// source 决定流水类型（加密货币渠道单独记 CRYPTO_DEPOSIT 便于对账）；
// 只允许充到个人或观战钱包，托管钱包的钱只能来自对局托管流程
func (s *WalletService) Deposit(ctx context.Context, userID int64, purpose, source string, amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if purpose != model.WalletPurposePersonal && purpose != model.WalletPurposeSpectator {
		return ErrDepositPurposeInvalid
	}
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return err
	}

	kind := model.TransactionKindDeposit
	if source == DepositSourceCrypto {
		kind = model.TransactionKindCryptoDeposit
	}

	if _, err := s.walletRepo.GetOrCreate(ctx, userID, purpose); err != nil {
		return err
	}

	walletLock := lock.NewWalletLock(s.redisClient, userID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	return s.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletRepo.Get(ctx, tx, userID, purpose)
		if err != nil {
			return err
		}
		remark := fmt.Sprintf("充值-%s-%s", source, purpose)
		return s.ledger.Credit(ctx, tx, wallet, amount, kind, "", remark)
	})
}

// Withdraw 从个人钱包提现
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return err
	}

	walletLock := lock.NewWalletLock(s.redisClient, userID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	return s.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletRepo.Get(ctx, tx, userID, model.WalletPurposePersonal)
		if err != nil {
			if errors.Is(err, repository.ErrWalletNotFound) {
				return repository.ErrBalanceNotEnough
			}
			return err
		}
		return s.ledger.Debit(ctx, tx, wallet, amount, model.TransactionKindWithdrawal, "", "提现")
	})
}

// Transactions 用户流水分页查询（只读，对账/个人中心用）
func (s *WalletService) Transactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
