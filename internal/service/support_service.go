package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChatNotifier 工单变化后的刷新提示
type ChatNotifier interface {
	NotifyChatUpdated(chatID, ownerID uint)
}

// Viewer 操作工单的一方
type Viewer struct {
	UserID uint
	View   model.ChatView
}

// CustomerViewer 客户视角
func CustomerViewer(userID uint) Viewer {
	return Viewer{UserID: userID, View: model.ViewCustomer}
}

// AdminViewer 管理员视角
func AdminViewer(userID uint) Viewer {
	return Viewer{UserID: userID, View: model.ViewAdmin}
}

func (v Viewer) roleLabel() string {
	if v.View == model.ViewAdmin {
		return string(model.RoleAdmin)
	}
	return string(model.RoleCustomer)
}

// SupportService 客服工单
type SupportService struct {
	repo     *repository.SupportRepository
	users    *repository.UserRepository
	roles    *repository.RoleRepository
	notifier ChatNotifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSupportService 创建SupportService实例，notifier 可为 nil
func NewSupportService(db *gorm.DB, notifier ChatNotifier, m *metrics.Metrics) *SupportService {
	return &SupportService{
		repo:     repository.NewSupportRepository(db),
		users:    repository.NewUserRepository(db),
		roles:    repository.NewRoleRepository(db),
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateChat 创建工单及首条消息，仅限客户
// 管理员同时持有 customer 角色，需按 admin 角色排除
func (s *SupportService) CreateChat(ctx context.Context, ownerID uint, subject, message string) (*model.SupportChat, error) {
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" || message == "" {
		return nil, ErrEmptySubject
	}
	isAdmin, err := s.roles.HasRole(ctx, ownerID, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	if isAdmin {
		return nil, ErrCustomerOnly
	}

	chat := &model.SupportChat{UserID: ownerID, Subject: subject}
	first := &model.SupportMessage{Message: message}
	if err := s.repo.CreateChatWithMessage(ctx, chat, first); err != nil {
		return nil, fmt.Errorf("创建工单失败: %w", err)
	}

	s.metrics.SupportChatCreated()
	s.metrics.SupportMessagePosted(string(model.RoleCustomer))
	s.notify(chat.ID, ownerID)
	logger.Info("工单已创建", zap.Uint("chat_id", chat.ID), zap.Uint("user_id", ownerID))
	return chat, nil
}

// ListChats 客户只看到自己的工单，管理员看到全部
func (s *SupportService) ListChats(ctx context.Context, viewer Viewer) ([]*model.ChatSummary, error) {
	var ownerID uint
	if viewer.View == model.ViewCustomer {
		ownerID = viewer.UserID
	}
	chats, err := s.repo.ListChats(ctx, viewer.View, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询工单失败: %w", err)
	}
	return chats, nil
}

// Messages 返回工单消息（标记前的状态），随后将对方消息标记为已读
func (s *SupportService) Messages(ctx context.Context, viewer Viewer, chatID uint) (*model.SupportChat, []*model.SupportMessage, error) {
	chat, err := s.accessibleChat(ctx, viewer, chatID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.repo.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询消息失败: %w", err)
	}
	marked, err := s.repo.MarkRead(ctx, viewer.View, chat, viewer.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("标记已读失败: %w", err)
	}
	if marked > 0 {
		logger.Debug("消息已标记为已读", zap.Uint("chat_id", chat.ID), zap.Int64("count", marked))
	}
	return chat, messages, nil
}

// PostMessage 发送消息，已关闭的工单拒绝写入
func (s *SupportService) PostMessage(ctx context.Context, viewer Viewer, chatID uint, text string) (*model.SupportMessage, *model.SupportChat, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrEmptyMessage
	}
	chat, err := s.accessibleChat(ctx, viewer, chatID)
	if err != nil {
		return nil, nil, err
	}
	if chat.Status == model.ChatStatusClosed {
		return nil, nil, ErrChatClosed
	}

	// 最后活动时间不回退
	now := s.now()
	if now.Before(chat.UpdatedAt) {
		now = chat.UpdatedAt
	}
	msg := &model.SupportMessage{
		ChatID:    chat.ID,
		UserID:    viewer.UserID,
		Message:   text,
		IsRead:    false,
		CreatedAt: now,
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, nil, fmt.Errorf("发送消息失败: %w", err)
	}
	chat.UpdatedAt = now

	author, err := s.users.GetByID(ctx, viewer.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询作者失败: %w", err)
	}
	msg.Author = *author

	s.metrics.SupportMessagePosted(viewer.roleLabel())
	s.notify(chat.ID, chat.UserID)
	return msg, chat, nil
}

// UpdateStatus 管理员覆盖工单状态，不校验状态流转
func (s *SupportService) UpdateStatus(ctx context.Context, chatID uint, raw string) (*model.SupportChat, error) {
	status, ok := model.ParseChatStatus(raw)
	if !ok {
		return nil, ErrInvalidChatStatus
	}
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("查询工单失败: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, chat.ID, status); err != nil {
		return nil, fmt.Errorf("更新工单状态失败: %w", err)
	}
	chat.Status = status

	s.notify(chat.ID, chat.UserID)
	logger.Info("工单状态已更新", zap.Uint("chat_id", chat.ID), zap.String("status", string(status)))
	return chat, nil
}

// accessibleChat 客户访问他人或不存在的工单统一返回 ErrChatAccessDenied
func (s *SupportService) accessibleChat(ctx context.Context, viewer Viewer, chatID uint) (*model.SupportChat, error) {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if viewer.View == model.ViewAdmin {
				return nil, ErrChatNotFound
			}
			return nil, ErrChatAccessDenied
		}
		return nil, fmt.Errorf("查询工单失败: %w", err)
	}
	if viewer.View == model.ViewCustomer && chat.UserID != viewer.UserID {
		return nil, ErrChatAccessDenied
	}
	return chat, nil
}

func (s *SupportService) notify(chatID, ownerID uint) {
	if s.notifier != nil {
		s.notifier.NotifyChatUpdated(chatID, ownerID)
	}
}
