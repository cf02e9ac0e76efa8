package service

import (
	"context"
	"fmt"
	"time"

	"wagerhub/internal/config"
	"wagerhub/internal/infrastructure/lock"
	"wagerhub/internal/model"
	"wagerhub/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BetService 观战投注
// 本金在下注时刻即从观战钱包扣除，赔率同时冻结；
// 结清只发生在结算引擎内部，这里没有任何派彩路径
type BetService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	ledger      *Ledger
	matchRepo   *repository.MatchRepository
	betRepo     *repository.BetRepository
	walletRepo  *repository.WalletRepository
	userRepo    *repository.UserRepository
}

func NewBetService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *BetService {
	return &BetService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		ledger:      NewLedger(db),
		matchRepo:   repository.NewMatchRepository(db),
		betRepo:     repository.NewBetRepository(db),
		walletRepo:  repository.NewWalletRepository(db),
		userRepo:    repository.NewUserRepository(db),
	}
}

// PlaceBet 对进行中对局下观战注
func (s *BetService) PlaceBet(ctx context.Context, userID int64, matchID string, predictedWinnerID int64, amount decimal.Decimal) (*model.SpectatorBet, error) {
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	if match.IsParticipant(userID) {
		return nil, ErrSpectatorIsPlayer
	}
	if !match.IsPlayer(predictedWinnerID) {
		return nil, ErrWinnerNotPlayer
	}
	if match.Status != model.MatchStatusLive {
		return nil, ErrMatchNotLive
	}

	if _, err := s.walletRepo.GetOrCreate(ctx, userID, model.WalletPurposeSpectator); err != nil {
		return nil, err
	}

	walletLock := lock.NewWalletLock(s.redisClient, userID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	bet := &model.SpectatorBet{
		ID:                uuid.NewString(),
		MatchID:           matchID,
		UserID:            userID,
		PredictedWinnerID: predictedWinnerID,
		Amount:            amount,
		OddsMultiplier:    s.cfg.Business.SpectatorOddsDecimal(), // 固定赔率，下注时刻冻结进投注行
		Status:            model.BetStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 锁内重读：对局可能在拿锁前离开 LIVE
		fresh, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if fresh.Status != model.MatchStatusLive {
			return ErrMatchNotLive
		}

		wallet, err := s.walletRepo.Get(ctx, tx, userID, model.WalletPurposeSpectator)
		if err != nil {
			return err
		}
		remark := fmt.Sprintf("观战下注-%s", fresh.Game)
		if err := s.ledger.Debit(ctx, tx, wallet, amount, model.TransactionKindBet, matchID, remark); err != nil {
			return err
		}
		if err := s.betRepo.Create(ctx, tx, bet); err != nil {
			return err
		}
		return s.matchRepo.IncrementSpectatorCount(ctx, tx, matchID)
	})
	if err != nil {
		return nil, err
	}

	return bet, nil
}

// ListMatchBets 某对局的全部观战投注
func (s *BetService) ListMatchBets(ctx context.Context, matchID string) ([]*model.SpectatorBet, error) {
	return s.betRepo.ListByMatchID(ctx, matchID)
}

// ListUserBets 用户的投注历史
func (s *BetService) ListUserBets(ctx context.Context, userID int64, page, pageSize int) ([]*model.SpectatorBet, int64, error) {
	return s.betRepo.ListByUserID(ctx, userID, page, pageSize)
}
