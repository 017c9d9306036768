package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/password"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecentRegistrationWindow 统计“近期注册”的时间范围
const RecentRegistrationWindow = 7 * 24 * time.Hour

// Stats 后台统计
type Stats struct {
	TotalUsers            int64 `json:"totalUsers"`
	TotalLicenses         int64 `json:"totalLicenses"`
	ActiveSubscriptions   int64 `json:"activeSubscriptions"`
	RecentRegistrations   int64 `json:"recentRegistrations"`
	OpenSupportChats      int64 `json:"openSupportChats"`
	UnreadSupportMessages int64 `json:"unreadSupportMessages"`
}

// UpdateUserInput 后台修改用户，空字符串表示不修改
type UpdateUserInput struct {
	Email              string
	Username           string
	Password           string
	Status             string
	SubscriptionStatus string
}

// AdminService 后台用户管理与统计
type AdminService struct {
	db       *gorm.DB
	profiles profileReader
	support  *repository.SupportRepository
	sessions *SessionService
	now      func() time.Time
}

// NewAdminService 创建AdminService实例
func NewAdminService(db *gorm.DB, sessions *SessionService) *AdminService {
	return &AdminService{
		db:       db,
		profiles: newProfileReader(db),
		support:  repository.NewSupportRepository(db),
		sessions: sessions,
		now:      time.Now,
	}
}

// Stats 汇总统计
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.TotalUsers, err = s.profiles.users.Count(ctx); err != nil {
		return nil, fmt.Errorf("统计用户失败: %w", err)
	}
	if stats.TotalLicenses, err = s.profiles.accounts.CountLicenses(ctx); err != nil {
		return nil, fmt.Errorf("统计授权失败: %w", err)
	}
	if stats.ActiveSubscriptions, err = s.profiles.accounts.CountActiveSubscriptions(ctx); err != nil {
		return nil, fmt.Errorf("统计订阅失败: %w", err)
	}
	if stats.RecentRegistrations, err = s.profiles.users.CountCreatedSince(ctx, s.now().Add(-RecentRegistrationWindow)); err != nil {
		return nil, fmt.Errorf("统计注册失败: %w", err)
	}
	if stats.OpenSupportChats, err = s.support.CountByStatus(ctx, model.ChatStatusOpen); err != nil {
		return nil, fmt.Errorf("统计工单失败: %w", err)
	}
	if stats.UnreadSupportMessages, err = s.support.CountUnread(ctx, model.ViewAdmin); err != nil {
		return nil, fmt.Errorf("统计未读消息失败: %w", err)
	}
	return &stats, nil
}

// ListUsers 用户列表，按注册时间倒序
func (s *AdminService) ListUsers(ctx context.Context) ([]repository.UserListRow, error) {
	rows, err := s.profiles.users.ListWithAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	return rows, nil
}

// CreateUser 后台开户，与注册相同的初始化流程，但不创建会话
func (s *AdminService) CreateUser(ctx context.Context, in NewUserInput) (*Profile, error) {
	var user *model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = provisionUser(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("后台创建用户", zap.Uint("user_id", user.ID), zap.Bool("admin", in.Admin))
	return s.profiles.load(ctx, user.ID)
}

// UpdateUser 后台修改用户资料、状态与订阅状态
func (s *AdminService) UpdateUser(ctx context.Context, actorID, userID uint, in UpdateUserInput) (*Profile, error) {
	user, err := s.profiles.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	status := strings.TrimSpace(in.Status)
	if status != "" && !model.ValidUserStatus(status) {
		return nil, ErrInvalidUserStatus
	}
	if status == model.UserStatusInactive && actorID == userID {
		return nil, ErrCannotDisableSelf
	}
	subStatus := strings.TrimSpace(in.SubscriptionStatus)
	if subStatus != "" && !model.ValidSubscriptionStatus(subStatus) {
		return nil, ErrInvalidSubscription
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = user.Email
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = user.Username
	}
	taken, err := s.profiles.users.ExistsEmailOrUsername(ctx, email, username, userID)
	if err != nil {
		return nil, fmt.Errorf("检查用户唯一性失败: %w", err)
	}
	if taken {
		return nil, ErrEmailOrUsernameTaken
	}

	fields := map[string]interface{}{"email": email, "username": username}
	if in.Password != "" {
		if err := password.Validate(in.Password); err != nil {
			return nil, err
		}
		hash, err := password.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("密码哈希失败: %w", err)
		}
		fields["password_hash"] = hash
	}
	if status != "" {
		fields["status"] = status
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.profiles.users.WithTx(tx).UpdateFields(ctx, userID, fields); err != nil {
			return err
		}
		if subStatus == "" {
			return nil
		}
		if err := s.profiles.accounts.WithTx(tx).UpdateLatestSubscriptionStatus(ctx, userID, subStatus); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoSubscription
			}
			return err
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNoSubscription):
			return nil, err
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrEmailOrUsernameTaken
		}
		return nil, fmt.Errorf("更新用户失败: %w", err)
	}

	if status == model.UserStatusInactive {
		if err := s.sessions.RevokeUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("吊销会话失败: %w", err)
		}
	}
	logger.Info("后台修改用户", zap.Uint("actor_id", actorID), zap.Uint("user_id", userID))
	return s.profiles.load(ctx, userID)
}

// SetUserStatus 启用或停用用户，停用时吊销全部会话
func (s *AdminService) SetUserStatus(ctx context.Context, actorID, userID uint, status string) (*Profile, error) {
	status = strings.TrimSpace(status)
	if !model.ValidUserStatus(status) {
		return nil, ErrInvalidUserStatus
	}
	if status == model.UserStatusInactive && actorID == userID {
		return nil, ErrCannotDisableSelf
	}
	if err := s.profiles.users.UpdateFields(ctx, userID, map[string]interface{}{"status": status}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("更新用户状态失败: %w", err)
	}
	if status == model.UserStatusInactive {
		if err := s.sessions.RevokeUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("吊销会话失败: %w", err)
		}
	}
	logger.Info("用户状态已修改", zap.Uint("actor_id", actorID), zap.Uint("user_id", userID), zap.String("status", status))
	return s.profiles.load(ctx, userID)
}

// ExportUsers 导出用户列表为 xlsx
func (s *AdminService) ExportUsers(ctx context.Context, w io.Writer) error {
	rows, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("关闭导出文件失败", zap.Error(err))
		}
	}()

	const sheet = "Users"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	headers := []interface{}{"ID", "Email", "Username", "Status", "Registered", "License key", "Subscription"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.ID, r.Email, r.Username, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"), r.LicenseKey, r.SubscriptionStatus}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("写入第%d行失败: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "B", "C", 28)
	_ = f.SetColWidth(sheet, "F", "F", 28)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("输出导出文件失败: %w", err)
	}
	return nil
}
