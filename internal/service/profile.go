package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/pkg/license"
	"vst-portal/pkg/password"

	"gorm.io/gorm"
)

// Profile 用户、角色、授权、订阅的联合视图
type Profile struct {
	User         *model.User
	Roles        []model.RoleName
	License      *model.License
	Subscription *model.Subscription
}

// IsAdmin 是否为管理员
func (p *Profile) IsAdmin() bool {
	return model.HasRole(p.Roles, model.RoleAdmin)
}

// profileReader 读取用户资料的公共依赖
type profileReader struct {
	users    *repository.UserRepository
	roles    *repository.RoleRepository
	accounts *repository.AccountRepository
}

func newProfileReader(db *gorm.DB) profileReader {
	return profileReader{
		users:    repository.NewUserRepository(db),
		roles:    repository.NewRoleRepository(db),
		accounts: repository.NewAccountRepository(db),
	}
}

// load 读取用户资料，用户不存在时返回 ErrUserNotFound
func (r profileReader) load(ctx context.Context, userID uint) (*Profile, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	roles, err := r.roles.RolesOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	lic, err := r.accounts.GetLicense(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询授权失败: %w", err)
	}
	sub, err := r.accounts.GetLatestSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询订阅失败: %w", err)
	}
	return &Profile{User: user, Roles: roles, License: lic, Subscription: sub}, nil
}

// NewUserInput 开户参数（注册与后台创建共用）
type NewUserInput struct {
	Email    string
	Username string
	Password string
	Admin    bool
}

// provisionUser 在事务中创建用户、customer 角色、授权码与免费订阅
func provisionUser(ctx context.Context, tx *gorm.DB, in NewUserInput, now time.Time) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if err := password.Validate(in.Password); err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(tx)
	exists, err := users.ExistsEmailOrUsername(ctx, email, username, 0)
	if err != nil {
		return nil, fmt.Errorf("检查用户唯一性失败: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}
	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Status:       model.UserStatusActive,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	roles := repository.NewRoleRepository(tx)
	if err := roles.Assign(ctx, user.ID, model.RoleCustomer); err != nil {
		return nil, fmt.Errorf("分配角色失败: %w", err)
	}
	if in.Admin {
		if err := roles.Assign(ctx, user.ID, model.RoleAdmin); err != nil {
			return nil, fmt.Errorf("分配角色失败: %w", err)
		}
	}

	accounts := repository.NewAccountRepository(tx)
	sub := &model.Subscription{
		UserID:    user.ID,
		PlanType:  model.PlanFree,
		Status:    model.SubscriptionStatusActive,
		ExpiresAt: now.Add(model.FreePlanDuration),
	}
	if err := accounts.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("创建订阅失败: %w", err)
	}

	key, err := license.GenerateKey(now, user.ID)
	if err != nil {
		return nil, err
	}
	lic := &model.License{UserID: user.ID, LicenseKey: key, Status: model.LicenseStatusActive}
	if err := accounts.CreateLicense(ctx, lic); err != nil {
		return nil, fmt.Errorf("创建授权失败: %w", err)
	}
	return user, nil
}
