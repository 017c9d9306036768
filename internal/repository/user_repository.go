package repository

import (
	"context"
	"time"

	"vst-portal/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 根据ID获取用户
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByEmail 根据邮箱获取用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ExistsEmailOrUsername 邮箱或用户名是否已被占用，excludeID 非0时排除该用户
func (r *UserRepository) ExistsEmailOrUsername(ctx context.Context, email, username string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).
		Where("(email = ? OR username = ?)", email, username)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateFields 更新指定字段
func (r *UserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UserListRow 后台用户列表行
type UserListRow struct {
	ID                 uint
	Email              string
	Username           string
	Status             string
	CreatedAt          time.Time
	LicenseKey         string
	SubscriptionStatus string
}

// ListWithAccount 列出所有用户及授权码、订阅状态，按注册时间倒序
func (r *UserRepository) ListWithAccount(ctx context.Context) ([]UserListRow, error) {
	var rows []UserListRow
	err := r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.email, u.username, u.status, u.created_at, " +
			"COALESCE(l.license_key, '') AS license_key, COALESCE(s.status, '') AS subscription_status").
		Joins("LEFT JOIN licenses l ON l.user_id = u.id").
		Joins("LEFT JOIN subscriptions s ON s.id = (SELECT MAX(s2.id) FROM subscriptions s2 WHERE s2.user_id = u.id)").
		Order("u.created_at DESC, u.id DESC").
		Scan(&rows).Error
	return rows, err
}

// Count 用户总数
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error
	return count, err
}

// CountCreatedSince 指定时间之后注册的用户数
func (r *UserRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
