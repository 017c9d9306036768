package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"vst-portal/config"
	"vst-portal/internal/model"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// Handler WebSocket 接入
type Handler struct {
	manager    *Manager
	jwt        *jwt.JWTService
	sessions   jwt.SessionChecker
	roles      jwt.RoleChecker
	cfg        config.WebSocketConfig
	cookieName string
}

// NewHandler 创建 WebSocket 接入处理器
func NewHandler(manager *Manager, jwtSvc *jwt.JWTService, sessions jwt.SessionChecker, roles jwt.RoleChecker, cfg config.WebSocketConfig, cookieName string) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * cfg.PingInterval
	}
	return &Handler{
		manager:    manager,
		jwt:        jwtSvc,
		sessions:   sessions,
		roles:      roles,
		cfg:        cfg,
		cookieName: cookieName,
	}
}

// Serve Gin路由处理函数
// 令牌来源：query 参数 token、Sec-WebSocket-Protocol，最后是 Authorization 头或 cookie
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	protoToken, protocol := tokenFromSubprotocols(websocket.Subprotocols(c.Request))
	if token == "" {
		token = protoToken
	}
	if token == "" {
		token = jwt.ExtractToken(c, h.cookieName)
	}

	identity, err := h.jwt.Authenticate(c.Request.Context(), token, h.sessions)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenRequired):
			response.Unauthorized(c, "token required")
		case errors.Is(err, jwt.ErrSessionRevoked):
			response.Unauthorized(c, "session expired or revoked")
		case errors.Is(err, jwt.ErrInvalidToken):
			response.Unauthorized(c, "invalid token")
		default:
			response.InternalError(c, "failed to verify session", err)
		}
		return
	}

	isAdmin, err := h.roles.HasRole(c.Request.Context(), identity.UserID, model.RoleAdmin)
	if err != nil {
		response.InternalError(c, "failed to verify role", err)
		return
	}

	// 只回显选中的一个子协议
	respHeader := http.Header{}
	if protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.Uint("user_id", identity.UserID), zap.Error(err))
		return
	}

	client := NewClient(identity.UserID, isAdmin, conn)
	h.manager.AddClient(client)
	logger.Info("WebSocket已连接", zap.Uint("user_id", identity.UserID), zap.Bool("admin", isAdmin))

	done := make(chan struct{})
	go h.writeLoop(client, done)
	h.readLoop(client)

	h.manager.RemoveClient(client)
	<-done
	_ = conn.Close()
	logger.Info("WebSocket已断开", zap.Uint("user_id", identity.UserID))
}

// tokenFromSubprotocols 支持 ["Bearer", token]、["Bearer <token>"] 和 [token] 三种写法，
// 返回令牌与应回显的子协议
func tokenFromSubprotocols(protocols []string) (token, selected string) {
	for i, p := range protocols {
		switch {
		case p == "Bearer" && i+1 < len(protocols):
			return protocols[i+1], p
		case strings.HasPrefix(p, "Bearer "):
			return strings.TrimSpace(strings.TrimPrefix(p, "Bearer ")), p
		}
	}
	if len(protocols) == 1 {
		return protocols[0], protocols[0]
	}
	return "", ""
}

// writeLoop 写协程：转发提示并定时发送ping心跳
func (h *Handler) writeLoop(client *Client, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// 让读协程尽快退出
				_ = client.Conn.Close()
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				_ = client.Conn.Close()
				return
			}
		}
	}
}

// readLoop 读协程：只处理心跳，超时未收到任何读事件则断开
func (h *Handler) readLoop(client *Client) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &msg); err == nil && msg.Type == "heartbeat" {
			h.manager.SendToUser(client.UserID, []byte(`{"type":"heartbeat_ack"}`))
		}
	}
}
