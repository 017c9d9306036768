package handler

import (
	"errors"
	"net/http"

	"vst-portal/internal/service"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler 个人资料与头像
type AccountHandler struct {
	account *service.AccountService
}

// NewAccountHandler 创建AccountHandler实例
func NewAccountHandler(account *service.AccountService) *AccountHandler {
	return &AccountHandler{account: account}
}

// GetProfile 获取个人资料
func (h *AccountHandler) GetProfile(c *gin.Context) {
	profile, err := h.account.Profile(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to load profile")
		return
	}
	response.Success(c, gin.H{"user": userInfo(profile)})
}

// UpdateProfile 修改个人资料，修改密码需提供当前密码
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var r struct {
		Email           string `json:"email" binding:"omitempty,email,max=128"`
		Username        string `json:"username" binding:"max=64"`
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		AvatarURL       string `json:"avatar_url" binding:"max=255"`
	}
	if !bindJSON(c, &r) {
		return
	}
	profile, err := h.account.UpdateProfile(c.Request.Context(), jwt.GetUserID(c), service.UpdateProfileInput{
		Email:           r.Email,
		Username:        r.Username,
		CurrentPassword: r.CurrentPassword,
		NewPassword:     r.NewPassword,
		AvatarURL:       r.AvatarURL,
	})
	if err != nil {
		writeError(c, err, "failed to update profile")
		return
	}
	response.SuccessWithMessage(c, "profile updated", gin.H{"user": userInfo(profile)})
}

// UploadAvatar 上传头像，表单字段 avatar
func (h *AccountHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			writeError(c, service.ErrNoAvatarFile, "")
			return
		}
		response.BadRequest(c, "failed to read upload")
		return
	}
	url, err := h.account.UploadAvatar(c.Request.Context(), jwt.GetUserID(c), fh)
	if err != nil {
		writeError(c, err, "failed to save avatar")
		return
	}
	response.SuccessWithMessage(c, "avatar uploaded", gin.H{"avatar_url": url})
}

// ServeAvatar 返回头像文件
func (h *AccountHandler) ServeAvatar(c *gin.Context) {
	path, contentType, err := h.account.AvatarFile(c.Param("filename"))
	if err != nil {
		writeError(c, err, "failed to load avatar")
		return
	}
	c.Header("Content-Type", contentType)
	c.File(path)
}
