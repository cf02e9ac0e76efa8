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

// MatchService 对局状态机
//
// 【关键点】每个状态迁移都遵循同一套纪律：
// 1. 锁外先做一次廉价的前置校验，把明显无效的请求快速打回
// 2. 拿对局/钱包分布式锁
// 3. 在数据库事务内重新读取最新行、重新校验前置条件
// 4. 资金划转和状态 CAS 更新在同一个事务里，要么全成要么全败
// 并发请求中只有一个能赢，输家收到状态冲突错误，绝不会悄悄写坏数据
type MatchService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	ledger      *Ledger
	matchRepo   *repository.MatchRepository
	walletRepo  *repository.WalletRepository
	userRepo    *repository.UserRepository
}

func NewMatchService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *MatchService {
	return &MatchService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		ledger:      NewLedger(db),
		matchRepo:   repository.NewMatchRepository(db),
		walletRepo:  repository.NewWalletRepository(db),
		userRepo:    repository.NewUserRepository(db),
	}
}

// escrowWallets 在事务内读取某用户的个人+托管钱包对
func (s *MatchService) escrowWallets(ctx context.Context, tx *gorm.DB, userID int64) (personal, escrow *model.Wallet, err error) {
	personal, err = s.walletRepo.Get(ctx, tx, userID, model.WalletPurposePersonal)
	if err != nil {
		return nil, nil, err
	}
	escrow, err = s.walletRepo.Get(ctx, tx, userID, model.WalletPurposeEscrow)
	if err != nil {
		return nil, nil, err
	}
	return personal, escrow, nil
}

// CreateMatch 创建对局并托管创建者的押注
func (s *MatchService) CreateMatch(ctx context.Context, userID int64, game string, betAmount decimal.Decimal) (*model.Match, error) {
	if !ValidAmount(betAmount) {
		return nil, ErrInvalidAmount
	}
	if game == "" {
		return nil, ErrInvalidAmount
	}
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	// 钱包惰性建立放在锁外，避免在事务里做 upsert
	if _, err := s.walletRepo.GetOrCreate(ctx, userID, model.WalletPurposePersonal); err != nil {
		return nil, err
	}
	if _, err := s.walletRepo.GetOrCreate(ctx, userID, model.WalletPurposeEscrow); err != nil {
		return nil, err
	}

	walletLock := lock.NewWalletLock(s.redisClient, userID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	match := &model.Match{
		ID:            uuid.NewString(),
		Game:          game,
		BetAmount:     betAmount,
		Status:        model.MatchStatusWaiting,
		Player1ID:     userID,
		DisputeStatus: model.DisputeStatusNone,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		personal, escrow, err := s.escrowWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		remark := fmt.Sprintf("创建对局押注托管-%s", game)
		if err := s.ledger.Transfer(ctx, tx, personal, escrow, betAmount, model.TransactionKindEscrow, match.ID, remark); err != nil {
			return err
		}
		return s.matchRepo.Create(ctx, tx, match)
	})
	if err != nil {
		return nil, err
	}

	return match, nil
}

// JoinMatch 加入对局：托管与创建者等额的押注，对局转为 LIVE
// 两个并发加入请求只有一个能通过仓储层的 CAS，输家整笔事务回滚
func (s *MatchService) JoinMatch(ctx context.Context, userID int64, matchID string) (*model.Match, error) {
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	if match.Player1ID == userID {
		return nil, ErrOwnMatch
	}
	if match.Status != model.MatchStatusWaiting || match.Player2ID != nil {
		return nil, repository.ErrMatchStatusConflict
	}

	if _, err := s.walletRepo.GetOrCreate(ctx, userID, model.WalletPurposePersonal); err != nil {
		return nil, err
	}
	if _, err := s.walletRepo.GetOrCreate(ctx, userID, model.WalletPurposeEscrow); err != nil {
		return nil, err
	}

	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer matchLock.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 锁内重读，防止拿锁前状态已经变化
		fresh, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if fresh.Status != model.MatchStatusWaiting || fresh.Player2ID != nil {
			return repository.ErrMatchStatusConflict
		}

		personal, escrow, err := s.escrowWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		remark := fmt.Sprintf("加入对局押注托管-%s", fresh.Game)
		if err := s.ledger.Transfer(ctx, tx, personal, escrow, fresh.BetAmount, model.TransactionKindEscrow, matchID, remark); err != nil {
			return err
		}
		return s.matchRepo.Join(ctx, tx, matchID, userID)
	})
	if err != nil {
		return nil, err
	}

	return s.matchRepo.GetByID(ctx, nil, matchID)
}

// ProposeAmount 非创建者对 WAITING 对局提出改注提案，只记录不动钱
func (s *MatchService) ProposeAmount(ctx context.Context, userID int64, matchID string, amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if match.Player1ID == userID {
		return ErrOwnMatch
	}
	if match.ProposedByUserID != nil {
		return ErrProposalPending
	}

	return s.matchRepo.SetProposal(ctx, nil, matchID, amount, userID)
}

// AcceptProposal 创建者接受改注提案
//
// 一个事务内完成三件事，缺一不可：
// 1. 按差额调整创建者的托管（补缴记 ESCROW，回吐记 REFUND）
// 2. 托管提案方的全额新注
// 3. 改注额、设对手、清提案、转 LIVE
// 中途任何一步失败整体回滚，不会出现 LIVE 对局托管不足额的情况
func (s *MatchService) AcceptProposal(ctx context.Context, userID int64, matchID string) (*model.Match, error) {
	if _, err := checkActiveUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	if match.Player1ID != userID {
		return nil, ErrNotCreator
	}
	if match.ProposedByUserID == nil || match.ProposedAmount == nil {
		return nil, ErrNoProposal
	}

	proposerID := *match.ProposedByUserID
	if _, err := s.walletRepo.GetOrCreate(ctx, proposerID, model.WalletPurposePersonal); err != nil {
		return nil, err
	}
	if _, err := s.walletRepo.GetOrCreate(ctx, proposerID, model.WalletPurposeEscrow); err != nil {
		return nil, err
	}

	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer matchLock.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		fresh, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if fresh.Status != model.MatchStatusWaiting || fresh.ProposedByUserID == nil || fresh.ProposedAmount == nil {
			return repository.ErrMatchStatusConflict
		}
		if *fresh.ProposedByUserID != proposerID {
			return repository.ErrMatchStatusConflict
		}
		newAmount := *fresh.ProposedAmount

		// 创建者托管差额调整
		creatorPersonal, creatorEscrow, err := s.escrowWallets(ctx, tx, fresh.Player1ID)
		if err != nil {
			return err
		}
		delta := newAmount.Sub(fresh.BetAmount)
		if delta.IsPositive() {
			remark := fmt.Sprintf("接受改注提案补缴托管-%s", fresh.Game)
			if err := s.ledger.Transfer(ctx, tx, creatorPersonal, creatorEscrow, delta, model.TransactionKindEscrow, matchID, remark); err != nil {
				return err
			}
		} else if delta.IsNegative() {
			remark := fmt.Sprintf("接受改注提案回吐托管-%s", fresh.Game)
			if err := s.ledger.Transfer(ctx, tx, creatorEscrow, creatorPersonal, delta.Neg(), model.TransactionKindRefund, matchID, remark); err != nil {
				return err
			}
		}

		// 提案方全额托管
		proposerPersonal, proposerEscrow, err := s.escrowWallets(ctx, tx, proposerID)
		if err != nil {
			return err
		}
		remark := fmt.Sprintf("改注后加入对局押注托管-%s", fresh.Game)
		if err := s.ledger.Transfer(ctx, tx, proposerPersonal, proposerEscrow, newAmount, model.TransactionKindEscrow, matchID, remark); err != nil {
			return err
		}

		return s.matchRepo.AcceptProposal(ctx, tx, matchID, proposerID, newAmount)
	})
	if err != nil {
		return nil, err
	}

	return s.matchRepo.GetByID(ctx, nil, matchID)
}

// RejectProposal 创建者拒绝改注提案，清空提案字段，状态与资金都不变
func (s *MatchService) RejectProposal(ctx context.Context, userID int64, matchID string) error {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if match.Player1ID != userID {
		return ErrNotCreator
	}
	if match.ProposedByUserID == nil {
		return ErrNoProposal
	}

	return s.matchRepo.ClearProposal(ctx, nil, matchID)
}

// CancelMatch 创建者撤单：仅限 WAITING 且从未有对手加入，退回托管押注
func (s *MatchService) CancelMatch(ctx context.Context, userID int64, matchID string) error {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if match.Player1ID != userID {
		return ErrNotCreator
	}
	if match.Status != model.MatchStatusWaiting || match.Player2ID != nil {
		return repository.ErrMatchStatusConflict
	}

	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer matchLock.Unlock(ctx)

	return s.db.Transaction(func(tx *gorm.DB) error {
		fresh, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if fresh.Status != model.MatchStatusWaiting || fresh.Player2ID != nil {
			return repository.ErrMatchStatusConflict
		}

		personal, escrow, err := s.escrowWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		remark := fmt.Sprintf("撤单退回托管-%s", fresh.Game)
		if err := s.ledger.Transfer(ctx, tx, escrow, personal, fresh.BetAmount, model.TransactionKindRefund, matchID, remark); err != nil {
			return err
		}
		return s.matchRepo.UpdateStatus(ctx, tx, matchID, model.MatchStatusWaiting, model.MatchStatusCancelled)
	})
}

// ReportWinner 参与者上报胜者
// 这只是未经核实的主张：不动资金，等管理员审核
func (s *MatchService) ReportWinner(ctx context.Context, userID int64, matchID string, winnerID int64) error {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if !match.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if !match.IsPlayer(winnerID) {
		return ErrWinnerNotPlayer
	}
	if match.Status != model.MatchStatusLive {
		return repository.ErrMatchStatusConflict
	}

	return s.matchRepo.ReportWinner(ctx, nil, matchID, winnerID)
}

// RaiseDispute 参与者发起争议
//
// PENDING_APPROVAL 阶段随时可以发起；COMPLETED 之后必须满足两个条件：
// 争议窗口（approved_at 起算）未过，且结算尚未执行。
// 争议一旦成立，结算任务对该对局的 settle 就会因 dispute_status != NONE 而空转，
// 相当于把这局的结算冻结到管理员裁决为止。
// 与结算扫描抢同一把对局锁，两者不会交错执行。
func (s *MatchService) RaiseDispute(ctx context.Context, userID int64, matchID, reason, evidence string) error {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return err
	}
	if !match.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if match.DisputeStatus != model.DisputeStatusNone {
		return ErrDisputeNotAllowed
	}

	switch match.Status {
	case model.MatchStatusPendingApproval:
		// 审核前随时可争议
	case model.MatchStatusCompleted:
		if match.SettlementExecutedAt != nil {
			return ErrDisputeWindowClosed
		}
		window := time.Duration(s.cfg.Business.DisputeWindowMinutes) * time.Minute
		if match.ApprovedAt == nil || time.Since(*match.ApprovedAt) >= window {
			return ErrDisputeWindowClosed
		}
	default:
		return ErrDisputeNotAllowed
	}

	matchLock := lock.NewMatchLock(s.redisClient, matchID, uuid.NewString())
	if err := matchLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer matchLock.Unlock(ctx)

	// 锁内 CAS：状态或结算标记在拿锁前被改掉则失败
	return s.matchRepo.OpenDispute(ctx, nil, matchID, match.Status, reason, evidence, userID)
}

// GetMatch 查询对局详情
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	return s.matchRepo.GetByID(ctx, nil, matchID)
}

// ListWaiting 大厅：等待对手的对局
func (s *MatchService) ListWaiting(ctx context.Context, page, pageSize int) ([]*model.Match, int64, error) {
	return s.matchRepo.ListWaiting(ctx, page, pageSize)
}

// ListUserMatches 用户参与的对局历史
func (s *MatchService) ListUserMatches(ctx context.Context, userID int64, page, pageSize int) ([]*model.Match, int64, error) {
	return s.matchRepo.ListByUserID(ctx, userID, page, pageSize)
}
