package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"wagerhub/internal/config"
	"wagerhub/internal/infrastructure/lock"
	"wagerhub/internal/model"
	"wagerhub/internal/repository"
	"wagerhub/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementService 结算引擎
//
// 【关键点】Settle 是系统里唯一真正移动奖池的地方，必须保证：
// 1. 幂等性：settlement_executed_at 标记与资金移动同事务写入，
//    扫描任务和人工触发重复调用时第二次是无害的空转
// 2. 原子性：双方托管扣除、赢家派彩、平台抽成、观战投注结清、幂等标记
//    全部在一个数据库事务内
// 3. 争议冻结：dispute_status != NONE 时直接判定不可结算
type SettlementService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	ledger      *Ledger
	matchRepo   *repository.MatchRepository
	betRepo     *repository.BetRepository
	walletRepo  *repository.WalletRepository
	userRepo    *repository.UserRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettlementService {
	return &SettlementService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		ledger:      NewLedger(db),
		matchRepo:   repository.NewMatchRepository(db),
		betRepo:     repository.NewBetRepository(db),
		walletRepo:  repository.NewWalletRepository(db),
		userRepo:    repository.NewUserRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

func (s *SettlementService) disputeWindow() time.Duration {
	return time.Duration(s.cfg.Business.DisputeWindowMinutes) * time.Minute
}

// PayoutBreakdown 单局结算的金额拆分
// 守恒式：WinnerPayout + PlatformFee == Pot == BetAmount × 2
type PayoutBreakdown struct {
	Pot          decimal.Decimal
	PlatformFee  decimal.Decimal
	WinnerPayout decimal.Decimal
}

// ComputePayout 计算奖池拆分
// 抽成乘法后显式 Round(2)，赢家拿的是减法余量，守恒精确成立
func ComputePayout(betAmount decimal.Decimal, feePercent int) PayoutBreakdown {
	pot := betAmount.Mul(decimal.NewFromInt(2))
	fee := pot.Mul(decimal.NewFromInt(int64(feePercent))).Div(decimal.NewFromInt(100)).Round(2)
	return PayoutBreakdown{
		Pot:          pot,
		PlatformFee:  fee,
		WinnerPayout: pot.Sub(fee),
	}
}

// MatchesReadyForSettlement 争议窗口已过且未结算的对局
func (s *SettlementService) MatchesReadyForSettlement(ctx context.Context) ([]*model.Match, error) {
	approvedBefore := time.Now().Add(-s.disputeWindow())
	return s.matchRepo.GetReadyForSettlement(ctx, approvedBefore, s.cfg.Business.SettleBatchSize)
}

// Settle 正常路径结算（审核通过且争议窗口已过）
//
// 所有前置条件在锁内、事务内对最新行重新校验；任何一条不满足都
// 以"不可结算"空转返回，调用方（扫描任务或人工触发）重复调用是安全的
func (s *SettlementService) Settle(ctx context.Context, matchID string) error {
	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("获取对局锁失败: %w", err)
	}
	defer matchLock.Unlock(ctx)

	// 平台钱包惰性建立放在事务外
	if _, err := s.walletRepo.GetPlatform(ctx); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		match, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}

		if match.SettlementExecutedAt != nil {
			return repository.ErrSettlementExecuted
		}
		if match.Status != model.MatchStatusCompleted ||
			match.DisputeStatus != model.DisputeStatusNone ||
			match.WinnerID == nil ||
			match.ApprovedAt == nil {
			return ErrSettlementNotEligible
		}
		if time.Since(*match.ApprovedAt) < s.disputeWindow() {
			return ErrSettlementNotEligible
		}

		return s.executeSettlement(ctx, tx, match, *match.WinnerID)
	})
}

// SettleViaDisputeResolution 争议裁决路径结算：裁决即刻生效，不再等窗口
// 同样写入结算幂等标记，扫描任务不会再碰这局
func (s *SettlementService) SettleViaDisputeResolution(ctx context.Context, adminID int64, matchID string, winnerID int64, resolution string) error {
	if resolution == "" {
		return ErrResolutionRequired
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if match.Status != model.MatchStatusDisputed {
		return repository.ErrMatchStatusConflict
	}
	if !match.IsPlayer(winnerID) {
		return ErrWinnerNotPlayer
	}

	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("获取对局锁失败: %w", err)
	}
	defer matchLock.Unlock(ctx)

	if _, err := s.walletRepo.GetPlatform(ctx); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		fresh, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if fresh.SettlementExecutedAt != nil {
			return repository.ErrSettlementExecuted
		}
		if fresh.Status != model.MatchStatusDisputed || fresh.DisputeStatus != model.DisputeStatusOpen {
			return repository.ErrMatchStatusConflict
		}
		if !fresh.IsPlayer(winnerID) {
			return ErrWinnerNotPlayer
		}

		now := time.Now()
		if err := s.matchRepo.ResolveDispute(ctx, tx, matchID, winnerID, adminID, resolution, now); err != nil {
			return err
		}
		return s.executeSettlement(ctx, tx, fresh, winnerID)
	})
}

// executeSettlement 事务内的资金移动主体，两条结算路径共用
//
// 顺序：双方托管各扣一注 -> 赢家个人钱包进派彩 -> 平台钱包进抽成
// -> 结清观战投注 -> 写幂等标记 -> 落结算事件
func (s *SettlementService) executeSettlement(ctx context.Context, tx *gorm.DB, match *model.Match, winnerID int64) error {
	if match.Player2ID == nil {
		return ErrSettlementNotEligible
	}
	loserID := match.LoserID(winnerID)
	breakdown := ComputePayout(match.BetAmount, s.cfg.Business.PlatformFeePercent)
	settlementNo := idgen.GenerateSettlementNo()

	winnerEscrow, err := s.walletRepo.Get(ctx, tx, winnerID, model.WalletPurposeEscrow)
	if err != nil {
		return err
	}
	loserEscrow, err := s.walletRepo.Get(ctx, tx, loserID, model.WalletPurposeEscrow)
	if err != nil {
		return err
	}
	winnerPersonal, err := s.walletRepo.Get(ctx, tx, winnerID, model.WalletPurposePersonal)
	if err != nil {
		return err
	}
	platform, err := s.walletRepo.Get(ctx, tx, model.PlatformOwnerID, model.WalletPurposePlatform)
	if err != nil {
		return err
	}

	escrowRemark := fmt.Sprintf("结算托管扣除-%s", settlementNo)
	if err := s.ledger.Debit(ctx, tx, winnerEscrow, match.BetAmount, model.TransactionKindEscrow, match.ID, escrowRemark); err != nil {
		return err
	}
	if err := s.ledger.Debit(ctx, tx, loserEscrow, match.BetAmount, model.TransactionKindEscrow, match.ID, escrowRemark); err != nil {
		return err
	}
	if err := s.ledger.Credit(ctx, tx, winnerPersonal, breakdown.WinnerPayout, model.TransactionKindWinnings, match.ID,
		fmt.Sprintf("对局派彩-%s", settlementNo)); err != nil {
		return err
	}
	if err := s.ledger.Credit(ctx, tx, platform, breakdown.PlatformFee, model.TransactionKindPlatformFee, match.ID,
		fmt.Sprintf("平台抽成-%s", settlementNo)); err != nil {
		return err
	}

	if err := s.resolvePendingBets(ctx, tx, match, winnerID, settlementNo); err != nil {
		return err
	}

	now := time.Now()
	if err := s.matchRepo.MarkSettlementExecuted(ctx, tx, match.ID, now); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"settlement_no": settlementNo,
		"match_id":      match.ID,
		"winner_id":     winnerID,
		"loser_id":      loserID,
		"pot":           breakdown.Pot.StringFixed(2),
		"platform_fee":  breakdown.PlatformFee.StringFixed(2),
		"winner_payout": breakdown.WinnerPayout.StringFixed(2),
		"executed_at":   now.Format(time.RFC3339),
	})
	outboxMsg := &model.OutboxMessage{
		MessageKey: match.ID,
		Topic:      s.cfg.Kafka.Topic.SettlementResult,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, outboxMsg)
}

// resolvePendingBets 结清观战投注，只从结算事务内部调用
//
// 逐条 PENDING -> WON/LOST 的 CAS 迁移：即使结算因为某种原因被触发两次，
// 已结清的投注也不可能再被处理（幂等标记之外的第二道防线）
func (s *SettlementService) resolvePendingBets(ctx context.Context, tx *gorm.DB, match *model.Match, winnerID int64, settlementNo string) error {
	bets, err := s.betRepo.ListPendingByMatchID(ctx, tx, match.ID)
	if err != nil {
		return err
	}

	for _, bet := range bets {
		if bet.PredictedWinnerID == winnerID {
			if err := s.betRepo.Resolve(ctx, tx, bet.ID, model.BetStatusWon); err != nil {
				return err
			}
			wallet, err := s.walletRepo.Get(ctx, tx, bet.UserID, model.WalletPurposeSpectator)
			if err != nil {
				return err
			}
			// 赔率在下注时刻冻结，乘法后显式保留两位小数
			winnings := bet.Amount.Mul(bet.OddsMultiplier).Round(2)
			remark := fmt.Sprintf("观战投注派彩-%s", settlementNo)
			if err := s.ledger.Credit(ctx, tx, wallet, winnings, model.TransactionKindWinnings, match.ID, remark); err != nil {
				return err
			}
		} else {
			// 本金下注时已扣，标记 LOST 即可
			if err := s.betRepo.Resolve(ctx, tx, bet.ID, model.BetStatusLost); err != nil {
				return err
			}
		}
	}
	return nil
}

// SettleDueMatches 扫描并逐局结算，单局失败不影响其他对局
// 返回成功结算的对局数
func (s *SettlementService) SettleDueMatches(ctx context.Context) (int, error) {
	matches, err := s.MatchesReadyForSettlement(ctx)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, match := range matches {
		err := s.Settle(ctx, match.ID)
		switch {
		case err == nil:
			settled++
		case errors.Is(err, repository.ErrSettlementExecuted), errors.Is(err, ErrSettlementNotEligible):
			// 扫描与人工触发/争议赛跑的正常结果，记一笔日志即可
			log.Printf("[Settlement] 对局跳过结算: matchID=%s, reason=%v", match.ID, err)
		default:
			log.Printf("[Settlement] 对局结算失败（下轮重试）: matchID=%s, err=%v", match.ID, err)
		}
	}
	return settled, nil
}
