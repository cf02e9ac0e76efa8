package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BetStatusPending = "PENDING" // 等待对局结算
	BetStatusWon     = "WON"     // 猜中，已按赔率派彩
	BetStatusLost    = "LOST"    // 未猜中，本金在下注时已扣除
	BetStatusVoided  = "VOIDED"  // 对局被驳回，本金已退回
)

// SpectatorBet 观战投注表
// 第三方用户对进行中对局结果的边注，与对局结算同步结清
//
// 【不变式】user_id 永远不是所属对局的参与者；
// 每条投注只会被结清一次（PENDING -> WON/LOST/VOIDED 的单向迁移）
type SpectatorBet struct {
	ID                string          `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID
	MatchID           string          `gorm:"type:varchar(36);index;not null" json:"match_id"`
	UserID            int64           `gorm:"index;not null" json:"user_id"`
	PredictedWinnerID int64           `gorm:"not null" json:"predicted_winner_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	OddsMultiplier    decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"odds_multiplier"` // 下注时刻冻结的赔率
	Status            string          `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (SpectatorBet) TableName() string {
	return "spectator_bet"
}
