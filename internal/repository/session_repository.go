package repository

import (
	"context"
	"time"

	"vst-portal/internal/model"

	"gorm.io/gorm"
)

// SessionRepository 会话数据仓储
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建SessionRepository实例
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

// Create 保存会话
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetActive 根据令牌摘要获取未过期会话
func (r *SessionRepository) GetActive(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", tokenHash, now).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// DeleteByHash 删除会话，返回是否存在
func (r *SessionRepository) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	res := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&model.Session{})
	return res.RowsAffected > 0, res.Error
}

// DeleteByUser 删除用户全部会话，返回被删除的令牌摘要
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID uint) ([]string, error) {
	var hashes []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Session{}).Where("user_id = ?", userID).Pluck("token_hash", &hashes).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error
	})
	return hashes, err
}

// DeleteExpired 清理过期会话
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}
