package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wagerhub/internal/config"
	"wagerhub/internal/infrastructure/lock"
	"wagerhub/internal/model"
	"wagerhub/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService 管理员仲裁操作：审核、驳回、裁决争议
type AdminService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	ledger      *Ledger
	matchRepo   *repository.MatchRepository
	betRepo     *repository.BetRepository
	walletRepo  *repository.WalletRepository
	userRepo    *repository.UserRepository
	outboxRepo  *repository.OutboxRepository
	settlement  *SettlementService
}

func NewAdminService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AdminService {
	return &AdminService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		ledger:      NewLedger(db),
		matchRepo:   repository.NewMatchRepository(db),
		betRepo:     repository.NewBetRepository(db),
		walletRepo:  repository.NewWalletRepository(db),
		userRepo:    repository.NewUserRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		settlement:  NewSettlementService(db, redisClient, cfg),
	}
}

// requireAdmin 校验调用者管理员权限（级别 ≥ 1）
func (s *AdminService) requireAdmin(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return user, nil
}

// ApproveMatch 审核通过上报的胜者
//
// 【关键点】这里刻意不动钱：approved_at 落下后开启争议窗口，
// 窗口结束由结算扫描任务移动资金。"定胜负"和"动钱"解耦，
// 给参与者留出申诉时间，也不用让请求挂在定时器上
func (s *AdminService) ApproveMatch(ctx context.Context, adminID int64, matchID string, winnerID int64) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if match.Status != model.MatchStatusPendingApproval {
		return repository.ErrMatchStatusConflict
	}
	if !match.IsPlayer(winnerID) {
		return ErrWinnerNotPlayer
	}

	return s.matchRepo.Approve(ctx, nil, matchID, winnerID, time.Now())
}

// RejectMatch 驳回上报：双方托管全额退回，观战投注退本金并标记 VOIDED
func (s *AdminService) RejectMatch(ctx context.Context, adminID int64, matchID string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if match.Status != model.MatchStatusPendingApproval {
		return repository.ErrMatchStatusConflict
	}

	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("获取对局锁失败: %w", err)
	}
	defer matchLock.Unlock(ctx)

	return s.db.Transaction(func(tx *gorm.DB) error {
		fresh, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if fresh.Status != model.MatchStatusPendingApproval || fresh.Player2ID == nil {
			return repository.ErrMatchStatusConflict
		}

		// 双方托管全额退回个人钱包
		for _, playerID := range []int64{fresh.Player1ID, *fresh.Player2ID} {
			escrow, err := s.walletRepo.Get(ctx, tx, playerID, model.WalletPurposeEscrow)
			if err != nil {
				return err
			}
			personal, err := s.walletRepo.Get(ctx, tx, playerID, model.WalletPurposePersonal)
			if err != nil {
				return err
			}
			remark := fmt.Sprintf("管理员驳回退还托管-%s", fresh.Game)
			if err := s.ledger.Transfer(ctx, tx, escrow, personal, fresh.BetAmount, model.TransactionKindRefund, matchID, remark); err != nil {
				return err
			}
		}

		// 观战投注退本金：对局没有产生结果，既不是赢也不是输，标记 VOIDED
		bets, err := s.betRepo.ListPendingByMatchID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		for _, bet := range bets {
			if err := s.betRepo.Resolve(ctx, tx, bet.ID, model.BetStatusVoided); err != nil {
				return err
			}
			wallet, err := s.walletRepo.Get(ctx, tx, bet.UserID, model.WalletPurposeSpectator)
			if err != nil {
				return err
			}
			if err := s.ledger.Credit(ctx, tx, wallet, bet.Amount, model.TransactionKindRefund, matchID, "对局驳回退还观战本金"); err != nil {
				return err
			}
		}

		if err := s.matchRepo.UpdateStatus(ctx, tx, matchID, model.MatchStatusPendingApproval, model.MatchStatusCancelled); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"match_id":    matchID,
			"reason":      "admin_reject",
			"rejected_by": adminID,
			"closed_at":   time.Now().Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: matchID,
			Topic:      s.cfg.Kafka.Topic.MatchClosed,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})
}

// ResolveDispute 裁决争议：指定最终胜者并即刻结算
func (s *AdminService) ResolveDispute(ctx context.Context, adminID int64, matchID string, winnerID int64, resolution string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.settlement.SettleViaDisputeResolution(ctx, adminID, matchID, winnerID, resolution)
}
