package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vst-portal/config"
	"vst-portal/internal/model"
	"vst-portal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowSessions struct{}

func (allowSessions) IsSessionActive(context.Context, string) (bool, error) { return true, nil }

type adminSet map[uint]bool

func (a adminSet) HasRole(_ context.Context, userID uint, role model.RoleName) (bool, error) {
	return role == model.RoleAdmin && a[userID], nil
}

func newTestHub(t *testing.T) (*Manager, *jwt.JWTService, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "ws-secret", ExpireTime: time.Hour, Issuer: "vst-test"})
	manager := NewManager()
	h := NewHandler(manager, jwtSvc, allowSessions{}, adminSet{2: true}, config.WebSocketConfig{PingInterval: time.Second}, "auth_token")

	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return manager, jwtSvc, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string, jwtSvc *jwt.JWTService, userID uint) *websocket.Conn {
	t.Helper()
	issued, err := jwtSvc.GenerateToken(userID, "", "")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+issued.Token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// 收到心跳回复说明连接已注册
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	assert.Equal(t, "heartbeat_ack", readType(t, conn, nil))
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, hint *Hint) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Hint
	require.NoError(t, json.Unmarshal(payload, &msg))
	if hint != nil {
		*hint = msg
	}
	return msg.Type
}

func TestServeRejectsMissingToken(t *testing.T) {
	_, _, url := newTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeDeliversChatHints(t *testing.T) {
	manager, jwtSvc, url := newTestHub(t)

	customer := dial(t, url, jwtSvc, 1)
	admin := dial(t, url, jwtSvc, 2)
	assert.True(t, manager.IsOnline(1))
	assert.True(t, manager.IsOnline(2))

	manager.NotifyChatUpdated(7, 1)

	var hint Hint
	assert.Equal(t, TypeChatUpdated, readType(t, customer, &hint))
	assert.Equal(t, uint(7), hint.ChatID)
	assert.Equal(t, TypeChatUpdated, readType(t, admin, &hint))
	assert.Equal(t, uint(7), hint.ChatID)
}

func TestTokenFromSubprotocols(t *testing.T) {
	cases := []struct {
		in       []string
		token    string
		selected string
	}{
		{[]string{"Bearer", "abc"}, "abc", "Bearer"},
		{[]string{"Bearer abc"}, "abc", "Bearer abc"},
		{[]string{"abc"}, "abc", "abc"},
		{[]string{"chat", "json"}, "", ""},
		{nil, "", ""},
	}
	for _, tc := range cases {
		token, selected := tokenFromSubprotocols(tc.in)
		assert.Equal(t, tc.token, token, "%v", tc.in)
		assert.Equal(t, tc.selected, selected, "%v", tc.in)
	}
}

func TestServeAcceptsBearerSubprotocol(t *testing.T) {
	_, jwtSvc, url := newTestHub(t)
	issued, err := jwtSvc.GenerateToken(1, "", "")
	require.NoError(t, err)

	dialer := websocket.Dialer{Subprotocols: []string{"Bearer", issued.Token}}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, "Bearer", conn.Subprotocol())
	assert.Equal(t, "Bearer", resp.Header.Get("Sec-WebSocket-Protocol"))
}
