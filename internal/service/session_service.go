package service

import (
	"context"
	"errors"
	"time"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/redis"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionService 服务端会话：签发时落库，登出删除，每次请求校验
// 启用Redis时缓存有效会话，缓存异常时回退到数据库
type SessionService struct {
	repo     *repository.SessionRepository
	jwt      *jwt.JWTService
	cacheTTL time.Duration
	now      func() time.Time
}

// NewSessionService 创建SessionService实例
func NewSessionService(db *gorm.DB, jwtSvc *jwt.JWTService, cacheTTL time.Duration) *SessionService {
	return &SessionService{
		repo:     repository.NewSessionRepository(db),
		jwt:      jwtSvc,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Issue 签发令牌并保存会话，tx 非空时在该事务中写入
func (s *SessionService) Issue(ctx context.Context, tx *gorm.DB, user *model.User) (*jwt.IssuedToken, error) {
	issued, err := s.jwt.GenerateToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	session := &model.Session{
		UserID:    user.ID,
		TokenHash: jwt.HashToken(issued.Token),
		ExpiresAt: issued.ExpiresAt,
	}
	if err := repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return issued, nil
}

// IsSessionActive 会话是否存在且未过期
func (s *SessionService) IsSessionActive(ctx context.Context, tokenHash string) (bool, error) {
	if redis.Enabled() {
		_, found, err := redis.GetCachedSession(ctx, tokenHash)
		if err != nil {
			logger.Warn("读取会话缓存失败，回退数据库", zap.Error(err))
		} else if found {
			return true, nil
		}
	}

	now := s.now()
	session, err := s.repo.GetActive(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if redis.Enabled() {
		ttl := s.cacheTTL
		if remaining := session.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
		if err := redis.CacheSession(ctx, tokenHash, session.UserID, ttl); err != nil {
			logger.Warn("写入会话缓存失败", zap.Error(err))
			return true, nil
		}
		// 查库与写缓存之间会话可能已被撤销，撤销方的删除缓存早于本次写入，需复查
		if _, err := s.repo.GetActive(ctx, tokenHash, s.now()); err != nil {
			s.evict(ctx, tokenHash)
			if errors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// Revoke 删除单个会话
func (s *SessionService) Revoke(ctx context.Context, tokenHash string) error {
	if _, err := s.repo.DeleteByHash(ctx, tokenHash); err != nil {
		return err
	}
	s.evict(ctx, tokenHash)
	return nil
}

// RevokeUser 删除用户全部会话（停用账户）
func (s *SessionService) RevokeUser(ctx context.Context, userID uint) error {
	hashes, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	s.evict(ctx, hashes...)
	return nil
}

// PurgeExpired 清理过期会话
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func (s *SessionService) evict(ctx context.Context, hashes ...string) {
	if !redis.Enabled() || len(hashes) == 0 {
		return
	}
	if err := redis.EvictSessions(ctx, hashes...); err != nil {
		logger.Warn("删除会话缓存失败", zap.Error(err))
	}
}
