package repository

import (
	"context"
	"errors"
	"time"

	"wagerhub/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrMatchNotFound       = errors.New("对局不存在")
	ErrMatchStatusConflict = errors.New("对局状态已变化，操作未生效")
	ErrSettlementExecuted  = errors.New("对局已结算")
)

// MatchRepository 对局仓储
//
// 【关键点】所有写操作都是条件更新（CAS）：WHERE 里带上调用方见到的旧状态，
// RowsAffected == 0 即说明有并发请求抢先改掉了这一行，调用方收到
// ErrMatchStatusConflict 而不是把脏状态写回去。两个并发 join 只有一个能赢，
// 靠的就是这里，而不是靠调用方好心。
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Create(ctx context.Context, tx *gorm.DB, match *model.Match) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(match).Error
}

func (r *MatchRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Match, error) {
	if tx == nil {
		tx = r.db
	}
	var match model.Match
	err := tx.WithContext(ctx).Where("id = ?", id).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

// Join 对手加入：WAITING 且无对手时一步完成 设置player2 + 转为 LIVE
// 两个并发加入请求只有一个 RowsAffected == 1
func (r *MatchRepository) Join(ctx context.Context, tx *gorm.DB, id string, player2ID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND player2_id IS NULL", id, model.MatchStatusWaiting).
		Updates(map[string]interface{}{
			"player2_id": player2ID,
			"status":     model.MatchStatusLive,
			"version":    gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// SetProposal 记录改注提案（不动资金），同一时刻最多一个待处理提案
func (r *MatchRepository) SetProposal(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal, byUserID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND proposed_by_user_id IS NULL", id, model.MatchStatusWaiting).
		Updates(map[string]interface{}{
			"proposed_amount":     amount,
			"proposed_by_user_id": byUserID,
			"version":             gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// ClearProposal 创建者拒绝提案，仅清空提案字段
func (r *MatchRepository) ClearProposal(ctx context.Context, tx *gorm.DB, id string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND proposed_by_user_id IS NOT NULL", id, model.MatchStatusWaiting).
		Updates(map[string]interface{}{
			"proposed_amount":     nil,
			"proposed_by_user_id": nil,
			"version":             gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// AcceptProposal 创建者接受提案：改注额、提案方成为对手、清空提案、转 LIVE
// 资金划转由服务层在同一个数据库事务内先行完成
func (r *MatchRepository) AcceptProposal(ctx context.Context, tx *gorm.DB, id string, proposerID int64, newAmount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND proposed_by_user_id = ?", id, model.MatchStatusWaiting, proposerID).
		Updates(map[string]interface{}{
			"bet_amount":          newAmount,
			"player2_id":          proposerID,
			"proposed_amount":     nil,
			"proposed_by_user_id": nil,
			"status":              model.MatchStatusLive,
			"version":             gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// UpdateStatus 通用状态迁移（带状态机合法性校验的 CAS）
func (r *MatchRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrMatchStatusConflict
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":  toStatus,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// ReportWinner 参与者上报胜者：LIVE -> PENDING_APPROVAL，只记录主张不动资金
func (r *MatchRepository) ReportWinner(ctx context.Context, tx *gorm.DB, id string, winnerID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ?", id, model.MatchStatusLive).
		Updates(map[string]interface{}{
			"reported_winner_id": winnerID,
			"status":             model.MatchStatusPendingApproval,
			"version":            gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// Approve 管理员确认胜者：PENDING_APPROVAL -> COMPLETED
// 只写 winner_id 和 approved_at，资金要等争议窗口结束后由结算任务移动
func (r *MatchRepository) Approve(ctx context.Context, tx *gorm.DB, id string, winnerID int64, approvedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ?", id, model.MatchStatusPendingApproval).
		Updates(map[string]interface{}{
			"winner_id":   winnerID,
			"approved_at": approvedAt,
			"status":      model.MatchStatusCompleted,
			"version":     gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// OpenDispute 发起争议
// 结算已执行（settlement_executed_at 非空）后钱已经动了，争议不再允许
func (r *MatchRepository) OpenDispute(ctx context.Context, tx *gorm.DB, id string, fromStatus string, reason, evidence string, raisedByID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND dispute_status = ? AND settlement_executed_at IS NULL",
			id, fromStatus, model.DisputeStatusNone).
		Updates(map[string]interface{}{
			"status":               model.MatchStatusDisputed,
			"dispute_status":       model.DisputeStatusOpen,
			"dispute_reason":       reason,
			"dispute_evidence":     evidence,
			"dispute_raised_by_id": raisedByID,
			"version":              gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// ResolveDispute 管理员裁决争议：DISPUTED -> COMPLETED，指定最终胜者
func (r *MatchRepository) ResolveDispute(ctx context.Context, tx *gorm.DB, id string, winnerID, resolvedByID int64, resolution string, approvedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND dispute_status = ?",
			id, model.MatchStatusDisputed, model.DisputeStatusOpen).
		Updates(map[string]interface{}{
			"status":                 model.MatchStatusCompleted,
			"dispute_status":         model.DisputeStatusResolved,
			"winner_id":              winnerID,
			"dispute_resolved_by_id": resolvedByID,
			"dispute_resolution":     resolution,
			"approved_at":            approvedAt,
			"version":                gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchStatusConflict
	}
	return nil
}

// MarkSettlementExecuted 写入结算幂等标记
// 这是防止重复派彩的最后一道闸门：标记只能从空写到非空一次，
// 必须与资金移动处于同一个数据库事务
func (r *MatchRepository) MarkSettlementExecuted(ctx context.Context, tx *gorm.DB, id string, executedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND settlement_executed_at IS NULL", id).
		Updates(map[string]interface{}{
			"settlement_executed_at": executedAt,
			"version":                gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettlementExecuted
	}
	return nil
}

// IncrementSpectatorCount 观战投注计数
func (r *MatchRepository) IncrementSpectatorCount(ctx context.Context, tx *gorm.DB, id string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ?", id).
		UpdateColumn("spectator_count", gorm.Expr("spectator_count + 1")).Error
}

// GetReadyForSettlement 查询可结算对局：
// 已确认胜者、无争议、争议窗口已过、尚未结算
func (r *MatchRepository) GetReadyForSettlement(ctx context.Context, approvedBefore time.Time, limit int) ([]*model.Match, error) {
	var matches []*model.Match
	err := r.db.WithContext(ctx).
		Where("status = ? AND dispute_status = ? AND approved_at IS NOT NULL AND approved_at < ? AND settlement_executed_at IS NULL",
			model.MatchStatusCompleted, model.DisputeStatusNone, approvedBefore).
		Limit(limit).
		Find(&matches).Error
	return matches, err
}

// ListWaiting 等待对手的对局（大厅列表）
func (r *MatchRepository) ListWaiting(ctx context.Context, page, pageSize int) ([]*model.Match, int64, error) {
	var matches []*model.Match
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Match{}).Where("status = ?", model.MatchStatusWaiting)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&matches).Error

	return matches, total, err
}

// ListByUserID 用户参与过的对局（历史记录，取消/完成的对局永不物理删除）
func (r *MatchRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Match, int64, error) {
	var matches []*model.Match
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Match{}).
		Where("player1_id = ? OR player2_id = ?", userID, userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&matches).Error

	return matches, total, err
}
