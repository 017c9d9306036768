package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/metrics"
	"vst-portal/pkg/password"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthResult 登录/注册结果
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   *Profile
}

// AuthService 注册、登录、登出
type AuthService struct {
	db       *gorm.DB
	profiles profileReader
	sessions *SessionService
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAuthService 创建AuthService实例
func NewAuthService(db *gorm.DB, sessions *SessionService, m *metrics.Metrics) *AuthService {
	return &AuthService{
		db:       db,
		profiles: newProfileReader(db),
		sessions: sessions,
		metrics:  m,
		now:      time.Now,
	}
}

// Register 注册：用户、customer 角色、免费订阅、授权码、会话在同一事务中创建
func (s *AuthService) Register(ctx context.Context, in NewUserInput) (*AuthResult, error) {
	in.Admin = false
	var (
		user   *model.User
		issued *jwt.IssuedToken
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = provisionUser(ctx, tx, in, s.now()); err != nil {
			return err
		}
		issued, err = s.sessions.Issue(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("用户注册成功", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.result(ctx, user.ID, issued)
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	user, err := s.verifyCredentials(ctx, email, plainPassword)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

// AdminLogin 管理员登录，非管理员返回 ErrAdminRequired 且不创建会话
func (s *AuthService) AdminLogin(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	user, err := s.verifyCredentials(ctx, email, plainPassword)
	if err != nil {
		return nil, err
	}
	isAdmin, err := s.profiles.roles.HasRole(ctx, user.ID, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	if !isAdmin {
		s.metrics.LoginAttempt("forbidden")
		logger.Warn("非管理员尝试登录后台", zap.Uint("user_id", user.ID))
		return nil, ErrAdminRequired
	}
	return s.startSession(ctx, user)
}

// Logout 删除当前令牌对应的会话
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, jwt.HashToken(token)); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}

// Profile 当前用户资料
func (s *AuthService) Profile(ctx context.Context, userID uint) (*Profile, error) {
	return s.profiles.load(ctx, userID)
}

// verifyCredentials 未知邮箱与错误密码返回同一个错误
func (s *AuthService) verifyCredentials(ctx context.Context, email, plainPassword string) (*model.User, error) {
	email = strings.TrimSpace(email)
	user, err := s.profiles.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.LoginAttempt("invalid")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if !password.Verify(plainPassword, user.PasswordHash) {
		s.metrics.LoginAttempt("invalid")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		s.metrics.LoginAttempt("disabled")
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	issued, err := s.sessions.Issue(ctx, nil, user)
	if err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	s.metrics.LoginAttempt("success")
	logger.Info("用户登录成功", zap.Uint("user_id", user.ID))
	return s.result(ctx, user.ID, issued)
}

func (s *AuthService) result(ctx context.Context, userID uint, issued *jwt.IssuedToken) (*AuthResult, error) {
	profile, err := s.profiles.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, Profile: profile}, nil
}
