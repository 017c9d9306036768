package model

import (
	"time"
)

// ChatStatus 工单状态
type ChatStatus string

const (
	ChatStatusOpen    ChatStatus = "open"
	ChatStatusClosed  ChatStatus = "closed"
	ChatStatusPending ChatStatus = "pending"
)

// ParseChatStatus 仅接受 open/closed/pending
func ParseChatStatus(s string) (ChatStatus, bool) {
	switch ChatStatus(s) {
	case ChatStatusOpen, ChatStatusClosed, ChatStatusPending:
		return ChatStatus(s), true
	}
	return "", false
}

// ChatView 查看工单的一方
type ChatView int

const (
	ViewCustomer ChatView = iota
	ViewAdmin
)

// CounterpartClause 返回“对方所写消息”的条件，sm 为消息表别名、sc 为工单表别名。
// 客户视角：作者不是工单所有者；管理员视角：作者是工单所有者。
func (v ChatView) CounterpartClause() string {
	if v == ViewAdmin {
		return "sm.user_id = sc.user_id"
	}
	return "sm.user_id <> sc.user_id"
}

// CounterpartCondition 单个工单内的同一条件，参数为工单所有者ID
func (v ChatView) CounterpartCondition() string {
	if v == ViewAdmin {
		return "user_id = ?"
	}
	return "user_id <> ?"
}

// SupportChat 客服工单
// UserID 创建后不可变

type SupportChat struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"not null;index;comment:所有者ID"`
	Owner     User       `gorm:"foreignKey:UserID"`
	Subject   string     `gorm:"type:varchar(255);not null;comment:主题"`
	Status    ChatStatus `gorm:"type:varchar(16);not null;default:'open';index;comment:状态"`
	CreatedAt time.Time  `gorm:"comment:创建时间"`
	UpdatedAt time.Time  `gorm:"index;comment:最后活动时间"`
}

func (SupportChat) TableName() string { return "support_chats" }

// SupportMessage 工单消息
type SupportMessage struct {
	ID        uint      `gorm:"primaryKey"`
	ChatID    uint      `gorm:"not null;index;comment:工单ID"`
	UserID    uint      `gorm:"not null;index;comment:作者ID"`
	Author    User      `gorm:"foreignKey:UserID"`
	Message   string    `gorm:"type:text;not null;comment:消息内容"`
	IsRead    bool      `gorm:"not null;default:false;comment:是否已读"`
	CreatedAt time.Time `gorm:"index;comment:创建时间"`
}

func (SupportMessage) TableName() string { return "support_messages" }

// ChatSummary 工单列表项
type ChatSummary struct {
	SupportChat
	UnreadCount int64
}

// AllModels 自动迁移的模型列表
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Role{}, &UserRole{}, &Session{},
		&License{}, &Subscription{},
		&SupportChat{}, &SupportMessage{},
	}
}
