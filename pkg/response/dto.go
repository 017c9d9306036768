package response

import (
	"time"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
)

// LicenseInfo 授权摘要
type LicenseInfo struct {
	LicenseKey string `json:"license_key"`
	Status     string `json:"status"`
}

// SubscriptionInfo 订阅摘要
type SubscriptionInfo struct {
	PlanType  string `json:"plan_type"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

// UserInfo 用户信息（隐藏敏感字段）
type UserInfo struct {
	ID           uint              `json:"id"`
	Email        string            `json:"email"`
	Username     string            `json:"username"`
	Status       string            `json:"status"`
	AvatarURL    string            `json:"avatar_url,omitempty"`
	CreatedAt    string            `json:"created_at"`
	Roles        []model.RoleName  `json:"roles"`
	License      *LicenseInfo      `json:"license,omitempty"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
}

// FilterUserInfo 过滤用户信息，隐藏密码哈希
func FilterUserInfo(user *model.User, roles []model.RoleName, license *model.License, sub *model.Subscription) *UserInfo {
	if user == nil {
		return nil
	}
	if roles == nil {
		roles = []model.RoleName{}
	}
	info := &UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Status:    user.Status,
		AvatarURL: user.AvatarURL,
		CreatedAt: formatTime(user.CreatedAt),
		Roles:     roles,
	}
	if license != nil {
		info.License = &LicenseInfo{LicenseKey: license.LicenseKey, Status: license.Status}
	}
	if sub != nil {
		info.Subscription = &SubscriptionInfo{
			PlanType:  sub.PlanType,
			Status:    sub.Status,
			ExpiresAt: formatTime(sub.ExpiresAt),
		}
	}
	return info
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// AdminUserRow 后台用户列表项
type AdminUserRow struct {
	ID                 uint   `json:"id"`
	Email              string `json:"email"`
	Username           string `json:"username"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at"`
	LicenseKey         string `json:"license_key"`
	SubscriptionStatus string `json:"subscription_status"`
}

// ChatResponse 工单列表项
type ChatResponse struct {
	ID          uint   `json:"id"`
	Subject     string `json:"subject"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email,omitempty"`
	UnreadCount int64  `json:"unread_count"`
}

// FilterChatSummary 转换工单列表项，withEmail 仅管理员视图返回邮箱
func FilterChatSummary(s *model.ChatSummary, withEmail bool) *ChatResponse {
	if s == nil {
		return nil
	}
	resp := &ChatResponse{
		ID:          s.ID,
		Subject:     s.Subject,
		Status:      string(s.Status),
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
		UserName:    s.Owner.Username,
		UnreadCount: s.UnreadCount,
	}
	if withEmail {
		resp.UserEmail = s.Owner.Email
	}
	return resp
}

// SupportMessageResponse 工单消息
type SupportMessageResponse struct {
	ID           uint   `json:"id"`
	ChatID       uint   `json:"chat_id"`
	UserID       uint   `json:"user_id"`
	Message      string `json:"message"`
	IsRead       bool   `json:"is_read"`
	IsAdminReply bool   `json:"is_admin_reply"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	CreatedAt    string `json:"created_at"`
}

// FilterSupportMessage 转换工单消息，ownerID 用于区分客服回复
func FilterSupportMessage(m *model.SupportMessage, ownerID uint) *SupportMessageResponse {
	if m == nil {
		return nil
	}
	return &SupportMessageResponse{
		ID:           m.ID,
		ChatID:       m.ChatID,
		UserID:       m.UserID,
		Message:      m.Message,
		IsRead:       m.IsRead,
		IsAdminReply: m.UserID != ownerID,
		Username:     m.Author.Username,
		Email:        m.Author.Email,
		CreatedAt:    formatTime(m.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// FilterAdminUserRow 转换后台用户列表行
func FilterAdminUserRow(r *repository.UserListRow) *AdminUserRow {
	if r == nil {
		return nil
	}
	return &AdminUserRow{
		ID:                 r.ID,
		Email:              r.Email,
		Username:           r.Username,
		Status:             r.Status,
		CreatedAt:          formatTime(r.CreatedAt),
		LicenseKey:         r.LicenseKey,
		SubscriptionStatus: r.SubscriptionStatus,
	}
}
