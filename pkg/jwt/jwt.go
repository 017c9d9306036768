package jwt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vst-portal/config"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenRequired  = errors.New("token required")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionRevoked = errors.New("session expired or revoked")
)

// JWTService 提供 JWT 生成与校验能力
// 使用对称密钥 HS256
// Subject 存放用户ID，Data 存放 email/username 等非敏感信息
// 角色不写入令牌，每次请求重新查询

type JWTService struct {
	secretKey   []byte        // 对称密钥
	issuer      string        // 签发者
	expireAfter time.Duration // 过期时间
	now         func() time.Time
}

// CustomClaims 自定义声明载荷
type CustomClaims struct {
	Data map[string]interface{} `json:"data,omitempty"`
	jwtv5.RegisteredClaims
}

// IssuedToken 签发结果
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// NewJWTService 创建 JWT 服务
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secretKey:   []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		expireAfter: cfg.ExpireTime,
		now:         time.Now,
	}
}

// GenerateToken 生成访问令牌
func (s *JWTService) GenerateToken(userID uint, email, username string) (*IssuedToken, error) {
	if userID == 0 {
		return nil, errors.New("userID is required")
	}

	now := s.now()
	expiresAt := now.Add(s.expireAfter)

	claims := &CustomClaims{
		Data: map[string]interface{}{
			"email":    email,
			"username": username,
		},
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(), // 同一秒内多次签发也得到不同令牌
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(expiresAt),
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("sign token failed: %w", err)
	}
	// 会话记录与令牌使用同一个过期时间（秒级精度）
	return &IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ValidateToken 校验并解析令牌
func (s *JWTService) ValidateToken(tokenString string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}
	claims := &CustomClaims{}
	parsedToken, err := jwtv5.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwtv5.Token) (interface{}, error) {
			// 验证签名方法
			if token.Method != jwtv5.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsedToken.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken 计算令牌摘要，会话表只保存摘要
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// claimString 读取 Data 中的字符串字段
func claimString(claims *CustomClaims, key string) string {
	if claims == nil || claims.Data == nil {
		return ""
	}
	if v, ok := claims.Data[key].(string); ok {
		return v
	}
	return ""
}
