package model

import (
	"time"
)

const (
	AdminLevelNone  = 0
	AdminLevelAdmin = 1
	AdminLevelSuper = 2
)

// User 用户表
// 身份信息由外部账号体系负责维护，本服务只读：
// 鉴权中间件和各服务仅用它判断"是不是参与者/管理员/被封禁用户"
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayName string    `gorm:"type:varchar(64);not null" json:"display_name"`
	AdminLevel  int       `gorm:"not null;default:0" json:"admin_level"` // 0=普通用户 1=管理员 2=超级管理员
	Suspended   bool      `gorm:"not null;default:false" json:"suspended"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// IsAdmin 是否具有管理员权限（审核、驳回、裁决争议）
func (u *User) IsAdmin() bool {
	return u.AdminLevel >= AdminLevelAdmin
}
