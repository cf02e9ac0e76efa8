package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 对局状态机
// ============================================================================

const (
	MatchStatusWaiting         = "WAITING"          // 等待对手加入
	MatchStatusLive            = "LIVE"             // 双方资金已托管，比赛进行中
	MatchStatusPendingApproval = "PENDING_APPROVAL" // 已上报胜者，等待管理员审核
	MatchStatusCompleted       = "COMPLETED"        // 胜者已确定，等待争议窗口结束后结算
	MatchStatusDisputed        = "DISPUTED"         // 存在未处理的争议，结算被冻结
	MatchStatusCancelled       = "CANCELLED"        // 已取消（创建者撤单或管理员驳回）
)

const (
	DisputeStatusNone     = "NONE"
	DisputeStatusOpen     = "OPEN"
	DisputeStatusResolved = "RESOLVED"
)

// ValidMatchTransitions 对局状态机允许的状态迁移
// 争议（DISPUTED）只能以 COMPLETED 收尾：争议裁决必然指定一个胜者
var ValidMatchTransitions = map[string][]string{
	MatchStatusWaiting:         {MatchStatusLive, MatchStatusCancelled},
	MatchStatusLive:            {MatchStatusPendingApproval},
	MatchStatusPendingApproval: {MatchStatusCompleted, MatchStatusCancelled, MatchStatusDisputed},
	MatchStatusCompleted:       {MatchStatusDisputed},
	MatchStatusDisputed:        {MatchStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidMatchTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Match 对局表
// 整个系统的核心实体，状态、提案、争议三条线都落在这一行上
//
// 【不变式】当 status 为 LIVE 或 PENDING_APPROVAL 时，
// 双方托管钱包中各自持有的金额恰好等于 bet_amount
type Match struct {
	ID               string          `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID
	Game             string          `gorm:"type:varchar(64);not null" json:"game"`
	BetAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"bet_amount"` // 单边押注金额
	Status           string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Player1ID        int64           `gorm:"index;not null" json:"player1_id"`
	Player2ID        *int64          `gorm:"index" json:"player2_id"`
	ReportedWinnerID *int64          `json:"reported_winner_id"` // 参与者上报的胜者（未经审核）
	WinnerID         *int64          `json:"winner_id"`          // 管理员确认的胜者
	SpectatorCount   int             `gorm:"not null;default:0" json:"spectator_count"`

	// 改注提案子状态（仅 WAITING 阶段存在）
	ProposedAmount   *decimal.Decimal `gorm:"type:decimal(14,2)" json:"proposed_amount"`
	ProposedByUserID *int64           `json:"proposed_by_user_id"`

	// 争议子状态
	DisputeStatus       string `gorm:"type:varchar(20);index;not null;default:NONE" json:"dispute_status"`
	DisputeReason       string `gorm:"type:varchar(512)" json:"dispute_reason"`
	DisputeEvidence     string `gorm:"type:varchar(1024)" json:"dispute_evidence"`
	DisputeRaisedByID   *int64 `json:"dispute_raised_by_id"`
	DisputeResolvedByID *int64 `json:"dispute_resolved_by_id"`
	DisputeResolution   string `gorm:"type:varchar(512)" json:"dispute_resolution"`

	ApprovedAt           *time.Time `gorm:"index" json:"approved_at"`            // 审核通过时间，争议窗口从这里起算
	SettlementExecutedAt *time.Time `json:"settlement_executed_at"`              // 结算幂等标记，一旦写入资金不再移动
	Version              int        `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt            time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Match) TableName() string {
	return "game_match"
}

// IsParticipant 判断用户是否为对局参与者
func (m *Match) IsParticipant(userID int64) bool {
	if m.Player1ID == userID {
		return true
	}
	return m.Player2ID != nil && *m.Player2ID == userID
}

// IsPlayer 判断用户是否为对局双方之一（胜者必须满足）
func (m *Match) IsPlayer(userID int64) bool {
	return m.IsParticipant(userID)
}

// LoserID 返回给定胜者对应的败者
// 只在双方都已就位后调用
func (m *Match) LoserID(winnerID int64) int64 {
	if m.Player1ID == winnerID && m.Player2ID != nil {
		return *m.Player2ID
	}
	return m.Player1ID
}
