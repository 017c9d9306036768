package jwt

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"vst-portal/internal/model"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ContextIdentityKey 当前身份在gin.Context中的键名
	ContextIdentityKey = "identity"
	// DefaultCookieName 令牌 cookie 名称
	DefaultCookieName = "auth_token"
)

// Identity 请求的当前身份，由认证中间件构造一次
type Identity struct {
	UserID    uint
	Email     string
	Username  string
	Token     string
	ExpiresAt time.Time
}

// SessionChecker 会话校验（登出后令牌立即失效）
type SessionChecker interface {
	IsSessionActive(ctx context.Context, tokenHash string) (bool, error)
}

// RoleChecker 角色校验，每次请求实时查询
type RoleChecker interface {
	HasRole(ctx context.Context, userID uint, role model.RoleName) (bool, error)
}

// ExtractToken 唯一的凭证适配：优先 Authorization: Bearer，其次 cookie
func ExtractToken(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		const prefix = "bearer "
		if len(authHeader) > len(prefix) && strings.EqualFold(authHeader[:len(prefix)], prefix) {
			return strings.TrimSpace(authHeader[len(prefix):])
		}
		return ""
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// Authenticate 校验令牌签名与会话，返回身份
func (s *JWTService) Authenticate(ctx context.Context, token string, sessions SessionChecker) (*Identity, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	if sessions != nil {
		active, err := sessions.IsSessionActive(ctx, HashToken(token))
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrSessionRevoked
		}
	}

	identity := &Identity{
		UserID:   uint(userID),
		Email:    claimString(claims, "email"),
		Username: claimString(claims, "username"),
		Token:    token,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// AuthMiddleware JWT认证中间件
// 从 Authorization 头或 cookie 中提取令牌，验证后将身份存入gin.Context
func (s *JWTService) AuthMiddleware(sessions SessionChecker, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, cookieName)
		identity, err := s.Authenticate(c.Request.Context(), token, sessions)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenRequired):
				response.Unauthorized(c, "token required")
			case errors.Is(err, ErrSessionRevoked):
				response.Unauthorized(c, "session expired or revoked")
			case errors.Is(err, ErrInvalidToken):
				logger.Debug("JWT验证失败", zap.Error(err), zap.String("path", c.Request.URL.Path))
				response.Unauthorized(c, "invalid token")
			default:
				logger.Error("会话校验失败", zap.Error(err))
				response.InternalError(c, "failed to verify session", err)
			}
			return
		}

		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// RequireRole 要求当前用户拥有指定角色，必须在 AuthMiddleware 之后使用
func RequireRole(roles RoleChecker, role model.RoleName) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			response.Unauthorized(c, "token required")
			return
		}
		has, err := roles.HasRole(c.Request.Context(), identity.UserID, role)
		if err != nil {
			logger.Error("角色查询失败", zap.Uint("user_id", identity.UserID), zap.Error(err))
			response.InternalError(c, "failed to verify role", err)
			return
		}
		if !has {
			logger.Warn("角色校验未通过",
				zap.Uint("user_id", identity.UserID),
				zap.String("required_role", string(role)),
				zap.String("path", c.Request.URL.Path),
			)
			response.Forbidden(c, string(role)+" role required")
			return
		}
		c.Next()
	}
}

// GetIdentity 从gin.Context中获取当前身份
func GetIdentity(c *gin.Context) (*Identity, bool) {
	if v, exists := c.Get(ContextIdentityKey); exists {
		if identity, ok := v.(*Identity); ok && identity != nil {
			return identity, true
		}
	}
	return nil, false
}

// GetUserID 从gin.Context中获取用户ID，未认证时为0
func GetUserID(c *gin.Context) uint {
	if identity, ok := GetIdentity(c); ok {
		return identity.UserID
	}
	return 0
}
