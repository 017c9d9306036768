package model

import "time"

// Session 服务端会话记录
// 只保存令牌的 sha256 摘要，登出时删除，用于即时吊销

type Session struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index;comment:用户ID"`
	TokenHash string    `gorm:"type:char(64);not null;uniqueIndex;comment:令牌摘要"`
	ExpiresAt time.Time `gorm:"not null;index;comment:过期时间"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

func (Session) TableName() string { return "sessions" }
