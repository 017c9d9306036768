package handler

import (
	"net/http"
	"time"

	"vst-portal/config"
	"vst-portal/internal/service"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 注册、登录、登出
type AuthHandler struct {
	auth   *service.AuthService
	cookie config.AuthConfig
}

// NewAuthHandler 创建AuthHandler实例
func NewAuthHandler(auth *service.AuthService, cookie config.AuthConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var r struct {
		Email    string `json:"email" binding:"required,email,max=128"`
		Username string `json:"username" binding:"required,notblank,max=64"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	result, err := h.auth.Register(c.Request.Context(), service.NewUserInput{
		Email:    r.Email,
		Username: r.Username,
		Password: r.Password,
	})
	if err != nil {
		writeError(c, err, "registration failed")
		return
	}
	h.setCookie(c, result.Token, result.ExpiresAt)
	response.Created(c, "registration successful", authResponse(result))
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var r credentialsRequest
	if !bindJSON(c, &r) {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), r.Email, r.Password)
	if err != nil {
		writeError(c, err, "login failed")
		return
	}
	h.setCookie(c, result.Token, result.ExpiresAt)
	response.SuccessWithMessage(c, "login successful", authResponse(result))
}

// AdminLogin 后台登录，要求 admin 角色
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var r credentialsRequest
	if !bindJSON(c, &r) {
		return
	}
	result, err := h.auth.AdminLogin(c.Request.Context(), r.Email, r.Password)
	if err != nil {
		writeError(c, err, "login failed")
		return
	}
	h.setCookie(c, result.Token, result.ExpiresAt)
	response.SuccessWithMessage(c, "admin login successful", authResponse(result))
}

// Me 当前用户资料
func (h *AuthHandler) Me(c *gin.Context) {
	profile, err := h.auth.Profile(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to load profile")
		return
	}
	response.Success(c, gin.H{"user": userInfo(profile)})
}

// Logout 删除当前会话，令牌立即失效
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := jwt.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "token required")
		return
	}
	if err := h.auth.Logout(c.Request.Context(), identity.Token); err != nil {
		writeError(c, err, "logout failed")
		return
	}
	h.clearCookie(c)
	response.SuccessWithMessage(c, "logged out", nil)
}

func (h *AuthHandler) setCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), token, maxAge, "/", h.cookie.CookieDomain, h.cookie.CookieSecure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), "", -1, "/", h.cookie.CookieDomain, h.cookie.CookieSecure, true)
}

func (h *AuthHandler) cookieName() string {
	if h.cookie.CookieName == "" {
		return jwt.DefaultCookieName
	}
	return h.cookie.CookieName
}

func authResponse(result *service.AuthResult) *response.AuthResponse {
	return &response.AuthResponse{Token: result.Token, User: userInfo(result.Profile)}
}

func userInfo(p *service.Profile) *response.UserInfo {
	return response.FilterUserInfo(p.User, p.Roles, p.License, p.Subscription)
}
