package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 流水类型常量
// ============================================================================

const (
	TransactionKindDeposit       = "DEPOSIT"        // 充值入账
	TransactionKindWithdrawal    = "WITHDRAWAL"     // 提现出账
	TransactionKindBet           = "BET"            // 观战下注扣款
	TransactionKindWinnings      = "WINNINGS"       // 赢家派彩
	TransactionKindEscrow        = "ESCROW"         // 托管资金划转
	TransactionKindRefund        = "REFUND"         // 退款
	TransactionKindPlatformFee   = "PLATFORM_FEE"   // 平台手续费
	TransactionKindCryptoDeposit = "CRYPTO_DEPOSIT" // 加密货币充值入账
)

// ============================================================================
// 钱包流水实体
// ============================================================================

// WalletTransaction 钱包流水表
// 记录每一笔余额变动，是对账和审计的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 代码中不存在任何更新/删除路径
// 2. 金额恒为正数，资金方向由类型和交易前后余额体现
// 3. 余额变动和流水写入必须在同一个数据库事务里，1:1 配对
type WalletTransaction struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`                       // UUID
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一，对账用）
	OwnerID       int64           `gorm:"index;not null" json:"owner_id"`                              // 钱包拥有者
	WalletID      int64           `gorm:"index;not null" json:"wallet_id"`                             // 关联钱包
	MatchID       string          `gorm:"type:varchar(36);index" json:"match_id"`                      // 关联对局（可为空）
	Kind          string          `gorm:"type:varchar(20);not null" json:"kind"`                       // 流水类型
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`                   // 金额（恒为正数）
	BalanceBefore decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_before"`           // 变动前余额
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_after"`            // 变动后余额
	Remark        string          `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}
