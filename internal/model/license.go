package model

import "time"

const (
	LicenseStatusActive = "active"

	PlanFree = "free"

	SubscriptionStatusActive   = "active"
	SubscriptionStatusExpired  = "expired"
	SubscriptionStatusCanceled = "canceled"

	// FreePlanDuration 注册赠送的免费订阅时长
	FreePlanDuration = 30 * 24 * time.Hour
)

// License 插件授权，注册时生成一次
type License struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uint      `gorm:"not null;uniqueIndex;comment:用户ID"`
	LicenseKey string    `gorm:"type:varchar(64);not null;uniqueIndex;comment:授权码"`
	Status     string    `gorm:"type:varchar(32);not null;default:'active';comment:状态"`
	CreatedAt  time.Time `gorm:"comment:创建时间"`
}

func (License) TableName() string { return "licenses" }

// Subscription 订阅，仅展示，无自动续期
type Subscription struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index;comment:用户ID"`
	PlanType  string    `gorm:"type:varchar(32);not null;default:'free';comment:套餐"`
	Status    string    `gorm:"type:varchar(32);not null;default:'active';index;comment:状态"`
	ExpiresAt time.Time `gorm:"comment:到期时间"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

func (Subscription) TableName() string { return "subscriptions" }

// ValidSubscriptionStatus 校验订阅状态取值（仅后台手动修改）
func ValidSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCanceled:
		return true
	}
	return false
}
