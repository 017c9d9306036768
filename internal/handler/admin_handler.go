package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"vst-portal/internal/service"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler 后台管理
type AdminHandler struct {
	auth  *service.AuthService
	admin *service.AdminService
}

// NewAdminHandler 创建AdminHandler实例
func NewAdminHandler(auth *service.AuthService, admin *service.AdminService) *AdminHandler {
	return &AdminHandler{auth: auth, admin: admin}
}

// Me 当前管理员
func (h *AdminHandler) Me(c *gin.Context) {
	profile, err := h.auth.Profile(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to load admin")
		return
	}
	response.Success(c, gin.H{"admin": userInfo(profile)})
}

// Stats 统计数据
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch stats")
		return
	}
	response.Success(c, gin.H{"stats": stats})
}

// ListUsers 用户列表
func (h *AdminHandler) ListUsers(c *gin.Context) {
	rows, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch users")
		return
	}
	users := make([]*response.AdminUserRow, 0, len(rows))
	for i := range rows {
		users = append(users, response.FilterAdminUserRow(&rows[i]))
	}
	response.Success(c, gin.H{"users": users})
}

// CreateUser 后台创建用户
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var r struct {
		Email    string `json:"email" binding:"required,email,max=128"`
		Username string `json:"username" binding:"required,notblank,max=64"`
		Password string `json:"password" binding:"required"`
		Admin    bool   `json:"admin"`
	}
	if !bindJSON(c, &r) {
		return
	}
	profile, err := h.admin.CreateUser(c.Request.Context(), service.NewUserInput{
		Email:    r.Email,
		Username: r.Username,
		Password: r.Password,
		Admin:    r.Admin,
	})
	if err != nil {
		writeError(c, err, "failed to create user")
		return
	}
	response.Created(c, "user created", gin.H{"user": userInfo(profile)})
}

// UpdateUser 后台修改用户
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid user id")
		return
	}
	var r struct {
		Email              string `json:"email" binding:"omitempty,email,max=128"`
		Username           string `json:"username" binding:"max=64"`
		Password           string `json:"password"`
		Status             string `json:"status"`
		SubscriptionStatus string `json:"subscription_status"`
	}
	if !bindJSON(c, &r) {
		return
	}
	profile, err := h.admin.UpdateUser(c.Request.Context(), jwt.GetUserID(c), id, service.UpdateUserInput{
		Email:              r.Email,
		Username:           r.Username,
		Password:           r.Password,
		Status:             r.Status,
		SubscriptionStatus: r.SubscriptionStatus,
	})
	if err != nil {
		writeError(c, err, "failed to update user")
		return
	}
	response.SuccessWithMessage(c, "user updated", gin.H{"user": userInfo(profile)})
}

// SetUserStatus 启用/停用用户
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid user id")
		return
	}
	var r struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	profile, err := h.admin.SetUserStatus(c.Request.Context(), jwt.GetUserID(c), id, r.Status)
	if err != nil {
		writeError(c, err, "failed to update user status")
		return
	}
	response.SuccessWithMessage(c, "user status updated", gin.H{"user": userInfo(profile)})
}

// ExportUsers 导出用户列表
func (h *AdminHandler) ExportUsers(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.admin.ExportUsers(c.Request.Context(), &buf); err != nil {
		writeError(c, err, "failed to export users")
		return
	}
	filename := fmt.Sprintf("users_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
