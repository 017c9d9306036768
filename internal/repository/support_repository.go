package repository

import (
	"context"

	"vst-portal/internal/model"

	"gorm.io/gorm"
)

// SupportRepository 客服工单数据仓储
type SupportRepository struct {
	db *gorm.DB
}

// NewSupportRepository 创建SupportRepository实例
func NewSupportRepository(db *gorm.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

// CreateChatWithMessage 在同一事务中创建工单及首条消息
func (r *SupportRepository) CreateChatWithMessage(ctx context.Context, chat *model.SupportChat, first *model.SupportMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 状态使用存储默认值 open
		if err := tx.Omit("Owner").Create(chat).Error; err != nil {
			return err
		}
		first.ChatID = chat.ID
		first.UserID = chat.UserID
		return tx.Omit("Author").Create(first).Error
	})
}

// GetChat 根据ID获取工单
func (r *SupportRepository) GetChat(ctx context.Context, id uint) (*model.SupportChat, error) {
	var chat model.SupportChat
	if err := r.db.WithContext(ctx).Preload("Owner").First(&chat, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// ListChats 工单列表，ownerID 为0时返回全部，按最后活动时间倒序
func (r *SupportRepository) ListChats(ctx context.Context, view model.ChatView, ownerID uint) ([]*model.ChatSummary, error) {
	var chats []*model.SupportChat
	q := r.db.WithContext(ctx).Preload("Owner")
	if ownerID != 0 {
		q = q.Where("user_id = ?", ownerID)
	}
	if err := q.Order("updated_at DESC, id DESC").Find(&chats).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	counts, err := r.UnreadCounts(ctx, view, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]*model.ChatSummary, 0, len(chats))
	for _, c := range chats {
		summaries = append(summaries, &model.ChatSummary{SupportChat: *c, UnreadCount: counts[c.ID]})
	}
	return summaries, nil
}

// UnreadCounts 按工单统计对方发送的未读消息数
func (r *SupportRepository) UnreadCounts(ctx context.Context, view model.ChatView, chatIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(chatIDs))
	if len(chatIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ChatID uint
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Table("support_messages AS sm").
		Select("sm.chat_id AS chat_id, COUNT(*) AS total").
		Joins("JOIN support_chats sc ON sc.id = sm.chat_id").
		Where("sm.chat_id IN ? AND sm.is_read = ?", chatIDs, false).
		Where(view.CounterpartClause()).
		Group("sm.chat_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ChatID] = row.Total
	}
	return counts, nil
}

// ListMessages 工单消息，按创建时间、ID升序
func (r *SupportRepository) ListMessages(ctx context.Context, chatID uint) ([]*model.SupportMessage, error) {
	var messages []*model.SupportMessage
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead 将对方发送的未读消息标记为已读，不会标记查看者自己的消息
func (r *SupportRepository) MarkRead(ctx context.Context, view model.ChatView, chat *model.SupportChat, viewerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.SupportMessage{}).
		Where("chat_id = ? AND is_read = ? AND user_id <> ?", chat.ID, false, viewerID).
		Where(view.CounterpartCondition(), chat.UserID).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}

// AddMessage 在同一事务中写入消息并刷新工单最后活动时间
func (r *SupportRepository) AddMessage(ctx context.Context, msg *model.SupportMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.SupportChat{}).
			Where("id = ?", msg.ChatID).
			UpdateColumn("updated_at", msg.CreatedAt).Error
	})
}

// UpdateStatus 覆盖工单状态，不修改最后活动时间
func (r *SupportRepository) UpdateStatus(ctx context.Context, chatID uint, status model.ChatStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.SupportChat{}).
		Where("id = ?", chatID).
		UpdateColumn("status", status).Error
}

// CountByStatus 指定状态的工单数
func (r *SupportRepository) CountByStatus(ctx context.Context, status model.ChatStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SupportChat{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountUnread 全部工单中对方发送的未读消息总数
func (r *SupportRepository) CountUnread(ctx context.Context, view model.ChatView) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("support_messages AS sm").
		Joins("JOIN support_chats sc ON sc.id = sm.chat_id").
		Where("sm.is_read = ?", false).
		Where(view.CounterpartClause()).
		Count(&count).Error
	return count, err
}
