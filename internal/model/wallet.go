package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 钱包用途常量
// ============================================================================

const (
	WalletPurposePersonal  = "PERSONAL"  // 个人可用余额
	WalletPurposeEscrow    = "ESCROW"    // 对局托管资金
	WalletPurposeSpectator = "SPECTATOR" // 观战下注专用余额
	WalletPurposePlatform  = "PLATFORM"  // 平台手续费钱包（全局唯一）
)

// PlatformOwnerID 平台钱包的保留拥有者ID
// 平台钱包是全局唯一的一行，不属于任何真实用户
const PlatformOwnerID int64 = 0

// Wallet 用户钱包表
// 每个用户按用途各持有一个钱包，(owner_id, purpose) 全局唯一
// 余额是整个托管结算系统的核心数据，任何时刻都不允许为负
type Wallet struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64           `gorm:"uniqueIndex:uk_owner_purpose;not null" json:"owner_id"`
	Purpose   string          `gorm:"type:varchar(20);uniqueIndex:uk_owner_purpose;not null" json:"purpose"`
	Balance   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance"` // 余额（两位小数定点数）
	Version   int             `gorm:"not null;default:0" json:"version"`          // 乐观锁版本号
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

// ValidWalletPurpose 校验钱包用途取值
func ValidWalletPurpose(purpose string) bool {
	switch purpose {
	case WalletPurposePersonal, WalletPurposeEscrow, WalletPurposeSpectator, WalletPurposePlatform:
		return true
	}
	return false
}
