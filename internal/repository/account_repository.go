package repository

import (
	"context"

	"vst-portal/internal/model"

	"gorm.io/gorm"
)

// AccountRepository 授权与订阅数据仓储
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建AccountRepository实例
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *AccountRepository) WithTx(tx *gorm.DB) *AccountRepository {
	return &AccountRepository{db: tx}
}

// CreateLicense 创建授权
func (r *AccountRepository) CreateLicense(ctx context.Context, l *model.License) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// CreateSubscription 创建订阅
func (r *AccountRepository) CreateSubscription(ctx context.Context, s *model.Subscription) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetLicense 获取用户授权，不存在时返回 nil
func (r *AccountRepository) GetLicense(ctx context.Context, userID uint) (*model.License, error) {
	var l model.License
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&l).Error
	if err != nil || l.ID == 0 {
		return nil, err
	}
	return &l, nil
}

// GetLatestSubscription 获取用户最新订阅，不存在时返回 nil
func (r *AccountRepository) GetLatestSubscription(ctx context.Context, userID uint) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Limit(1).Find(&s).Error
	if err != nil || s.ID == 0 {
		return nil, err
	}
	return &s, nil
}

// UpdateLatestSubscriptionStatus 修改用户最新订阅的状态，没有订阅时返回 ErrNotFound
func (r *AccountRepository) UpdateLatestSubscriptionStatus(ctx context.Context, userID uint, status string) error {
	sub, err := r.GetLatestSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrNotFound
	}
	return r.db.WithContext(ctx).Model(sub).UpdateColumn("status", status).Error
}

// CountLicenses 授权总数
func (r *AccountRepository) CountLicenses(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.License{}).Count(&count).Error
	return count, err
}

// CountActiveSubscriptions 状态为 active 的订阅数（订阅无自动到期流转）
func (r *AccountRepository) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("status = ?", model.SubscriptionStatusActive).
		Count(&count).Error
	return count, err
}
