package model

import (
	"time"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User 用户模型
// 索引与唯一约束：用户名唯一、邮箱唯一
// 说明：密码仅存储哈希（PasswordHash），不存储明文
// 用户不做物理删除，停用时 Status 置为 inactive

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"type:varchar(128);not null;uniqueIndex;comment:邮箱"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名"`
	PasswordHash string    `gorm:"type:varchar(255);not null;comment:密码哈希"`
	Status       string    `gorm:"type:varchar(32);not null;default:'active';comment:状态"`
	AvatarURL    string    `gorm:"type:varchar(255);comment:头像URL"`
	CreatedAt    time.Time `gorm:"index;comment:创建时间"`
	UpdatedAt    time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsActive 是否允许登录
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// ValidUserStatus 校验用户状态取值
func ValidUserStatus(status string) bool {
	return status == UserStatusActive || status == UserStatusInactive
}
