package handler

import (
	"vst-portal/internal/model"
	"vst-portal/internal/service"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
)

// SupportHandler 客服工单，客户与管理员共用同一组处理逻辑
type SupportHandler struct {
	support *service.SupportService
}

// NewSupportHandler 创建SupportHandler实例
func NewSupportHandler(support *service.SupportService) *SupportHandler {
	return &SupportHandler{support: support}
}

func customerOf(c *gin.Context) service.Viewer {
	return service.CustomerViewer(jwt.GetUserID(c))
}

func adminOf(c *gin.Context) service.Viewer {
	return service.AdminViewer(jwt.GetUserID(c))
}

// ListChats 客户的工单列表
func (h *SupportHandler) ListChats(c *gin.Context) {
	h.listChats(c, customerOf(c))
}

// AdminListChats 全部工单
func (h *SupportHandler) AdminListChats(c *gin.Context) {
	h.listChats(c, adminOf(c))
}

// CreateChat 创建工单
func (h *SupportHandler) CreateChat(c *gin.Context) {
	var r struct {
		Subject string `json:"subject" binding:"required,notblank,max=255"`
		Message string `json:"message" binding:"required,notblank"`
	}
	if !bindJSON(c, &r) {
		return
	}
	chat, err := h.support.CreateChat(c.Request.Context(), jwt.GetUserID(c), r.Subject, r.Message)
	if err != nil {
		writeError(c, err, "failed to create chat")
		return
	}
	response.Created(c, "chat created", gin.H{"chat_id": chat.ID})
}

// Messages 客户查看工单消息，管理员消息被标记为已读
func (h *SupportHandler) Messages(c *gin.Context) {
	h.messages(c, customerOf(c))
}

// AdminMessages 管理员查看工单消息，客户消息被标记为已读
func (h *SupportHandler) AdminMessages(c *gin.Context) {
	h.messages(c, adminOf(c))
}

// PostMessage 客户发送消息
func (h *SupportHandler) PostMessage(c *gin.Context) {
	h.postMessage(c, customerOf(c))
}

// AdminReply 管理员回复
func (h *SupportHandler) AdminReply(c *gin.Context) {
	h.postMessage(c, adminOf(c))
}

// UpdateStatus 修改工单状态
func (h *SupportHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.NotFound(c, service.ErrChatNotFound.Error())
		return
	}
	var r struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &r) {
		return
	}
	chat, err := h.support.UpdateStatus(c.Request.Context(), id, r.Status)
	if err != nil {
		writeError(c, err, "failed to update chat status")
		return
	}
	response.SuccessWithMessage(c, "chat status updated", gin.H{"chat_id": chat.ID, "status": chat.Status})
}

func (h *SupportHandler) listChats(c *gin.Context, viewer service.Viewer) {
	chats, err := h.support.ListChats(c.Request.Context(), viewer)
	if err != nil {
		writeError(c, err, "failed to fetch chats")
		return
	}
	withEmail := viewer.View == model.ViewAdmin
	items := make([]*response.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		items = append(items, response.FilterChatSummary(chat, withEmail))
	}
	response.Success(c, gin.H{"chats": items})
}

func (h *SupportHandler) messages(c *gin.Context, viewer service.Viewer) {
	id, ok := parseID(c, "id")
	if !ok {
		response.NotFound(c, notFoundMessage(viewer))
		return
	}
	chat, messages, err := h.support.Messages(c.Request.Context(), viewer, id)
	if err != nil {
		writeError(c, err, "failed to fetch messages")
		return
	}
	items := make([]*response.SupportMessageResponse, 0, len(messages))
	for _, m := range messages {
		items = append(items, response.FilterSupportMessage(m, chat.UserID))
	}
	response.Success(c, gin.H{
		"chat_id":  chat.ID,
		"subject":  chat.Subject,
		"status":   chat.Status,
		"messages": items,
	})
}

func (h *SupportHandler) postMessage(c *gin.Context, viewer service.Viewer) {
	id, ok := parseID(c, "id")
	if !ok {
		response.NotFound(c, notFoundMessage(viewer))
		return
	}
	var r struct {
		Message string `json:"message" binding:"required,notblank"`
	}
	if !bindJSON(c, &r) {
		return
	}
	msg, chat, err := h.support.PostMessage(c.Request.Context(), viewer, id, r.Message)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}
	response.Created(c, "message sent", response.FilterSupportMessage(msg, chat.UserID))
}

func notFoundMessage(viewer service.Viewer) string {
	if viewer.View == model.ViewAdmin {
		return service.ErrChatNotFound.Error()
	}
	return service.ErrChatAccessDenied.Error()
}
