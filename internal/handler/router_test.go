package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vst-portal/config"
	"vst-portal/internal/handler"
	"vst-portal/internal/model"
	"vst-portal/internal/testutil"
	"vst-portal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e envelope) decode(t *testing.T, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, dst))
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router http.Handler
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.JWT.Secret = "handler-test-secret"
	cfg.Auth.RateLimitMax = 0
	cfg.Upload.AvatarDir = t.TempDir()
	cfg.Upload.MaxAvatarBytes = 1024
	return cfg
}

func newTestServer(t *testing.T, mutate func(*config.Config), opts handler.Options) *testServer {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	db := testutil.NewDB(t)
	return &testServer{t: t, db: db, router: handler.NewRouter(cfg, db, opts)}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID       uint     `json:"id"`
		Email    string   `json:"email"`
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
		License  *struct {
			LicenseKey string `json:"license_key"`
		} `json:"license"`
		Subscription *struct {
			PlanType string `json:"plan_type"`
			Status   string `json:"status"`
		} `json:"subscription"`
	} `json:"user"`
}

func (s *testServer) register(email, username string) authData {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "username": username, "password": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var data authData
	env.decode(s.t, &data)
	return data
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	testutil.CreateUser(s.t, s.db, "admin@example.com", "admin", "secret123", model.RoleCustomer, model.RoleAdmin)
	w, env := s.do(http.MethodPost, "/api/admin/login", "", gin.H{"email": "admin@example.com", "password": "secret123"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var data authData
	env.decode(s.t, &data)
	return data.Token
}

type chatItem struct {
	ID          uint   `json:"id"`
	Subject     string `json:"subject"`
	Status      string `json:"status"`
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	UnreadCount int64  `json:"unread_count"`
}

func (s *testServer) chats(path, token string) []chatItem {
	s.t.Helper()
	w, env := s.do(http.MethodGet, path, token, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Chats []chatItem `json:"chats"`
	}
	env.decode(s.t, &data)
	return data.Chats
}

type messageItem struct {
	ID           uint   `json:"id"`
	Message      string `json:"message"`
	IsRead       bool   `json:"is_read"`
	IsAdminReply bool   `json:"is_admin_reply"`
	Username     string `json:"username"`
}

func TestBasicRoutes(t *testing.T) {
	s := newTestServer(t, nil, handler.Options{})

	w, env := s.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)

	w, env = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var health map[string]string
	env.decode(t, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "disabled", health["redis"])

	w, env = s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "endpoint not found", env.Error)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil, handler.Options{})

	alice := s.register("alice@example.com", "alice")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, []string{"customer"}, alice.User.Roles)
	require.NotNil(t, alice.User.License)
	require.NotNil(t, alice.User.Subscription)
	assert.Equal(t, "free", alice.User.Subscription.PlanType)

	w, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "alice@example.com", "username": "alice2", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user with this email or username already exists", env.Error)

	w, env = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "not-an-email", "username": "x", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, env.Error)

	w, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", env.Error)

	w, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ghost@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", env.Error)

	w, _ = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// cookie 认证
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: cookies[0].Value})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w, env = s.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	env.decode(t, &me)
	assert.Equal(t, "alice@example.com", me.User.Email)

	w, _ = s.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(http.MethodPost, "/api/auth/logout", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "logged out", env.Message)

	w, env = s.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "session expired or revoked", env.Error)

	// 其他会话不受影响
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminLoginRequiresRole(t *testing.T) {
	s := newTestServer(t, nil, handler.Options{})
	alice := s.register("alice@example.com", "alice")

	w, env := s.do(http.MethodPost, "/api/admin/login", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "admin role required", env.Error)

	w, _ = s.do(http.MethodGet, "/api/admin/stats", alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := s.adminToken()
	w, env = s.do(http.MethodGet, "/api/admin/me", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Admin struct {
			Roles []string `json:"roles"`
		} `json:"admin"`
	}
	env.decode(t, &me)
	assert.ElementsMatch(t, []string{"customer", "admin"}, me.Admin.Roles)
}

func TestSupportConversation(t *testing.T) {
	s := newTestServer(t, nil, handler.Options{})
	alice := s.register("alice@example.com", "alice")
	bob := s.register("bob@example.com", "bob")
	admin := s.adminToken()

	w, env := s.do(http.MethodPost, "/api/support/chats", alice.Token, gin.H{"subject": "Crash on load", "message": "DAW crashes"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ChatID uint `json:"chat_id"`
	}
	env.decode(t, &created)
	chatPath := fmt.Sprintf("/api/support/chats/%d/messages", created.ChatID)
	adminChatPath := fmt.Sprintf("/api/admin/support/chats/%d/messages", created.ChatID)

	w, _ = s.do(http.MethodPost, "/api/support/chats", alice.Token, gin.H{"subject": " ", "message": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPost, "/api/support/chats", admin, gin.H{"subject": "Internal", "message": "test"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "only customers can open support chats", env.Error)

	adminChats := s.chats("/api/admin/support/chats", admin)
	require.Len(t, adminChats, 1)
	assert.Equal(t, int64(1), adminChats[0].UnreadCount)
	assert.Equal(t, "alice", adminChats[0].UserName)
	assert.Equal(t, "alice@example.com", adminChats[0].UserEmail)

	customerChats := s.chats("/api/support/chats", alice.Token)
	require.Len(t, customerChats, 1)
	assert.Equal(t, int64(0), customerChats[0].UnreadCount)
	assert.Empty(t, customerChats[0].UserEmail)

	w, env = s.do(http.MethodPost, adminChatPath, admin, gin.H{"message": "Which DAW?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply messageItem
	env.decode(t, &reply)
	assert.True(t, reply.IsAdminReply)
	assert.Equal(t, "admin", reply.Username)

	assert.Equal(t, int64(1), s.chats("/api/support/chats", alice.Token)[0].UnreadCount)

	w, env = s.do(http.MethodGet, chatPath, alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var thread struct {
		ChatID   uint          `json:"chat_id"`
		Subject  string        `json:"subject"`
		Status   string        `json:"status"`
		Messages []messageItem `json:"messages"`
	}
	env.decode(t, &thread)
	assert.Equal(t, "Crash on load", thread.Subject)
	require.Len(t, thread.Messages, 2)
	assert.False(t, thread.Messages[0].IsAdminReply)
	assert.False(t, thread.Messages[1].IsRead)

	assert.Equal(t, int64(0), s.chats("/api/support/chats", alice.Token)[0].UnreadCount)
	assert.Equal(t, int64(1), s.chats("/api/admin/support/chats", admin)[0].UnreadCount)

	// 他人的工单与不存在的工单不可区分
	w, env = s.do(http.MethodGet, chatPath, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "chat not found or access denied", env.Error)
	w, env = s.do(http.MethodGet, "/api/support/chats/9999/messages", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "chat not found or access denied", env.Error)
	w, _ = s.do(http.MethodGet, "/api/support/chats/abc/messages", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, s.chats("/api/support/chats", bob.Token))

	// 客户不能使用后台接口
	w, _ = s.do(http.MethodGet, adminChatPath, alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	statusPath := fmt.Sprintf("/api/admin/support/chats/%d/status", created.ChatID)
	w, env = s.do(http.MethodPatch, statusPath, admin, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid status", env.Error)

	w, _ = s.do(http.MethodPatch, statusPath, admin, gin.H{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "closed", s.chats("/api/support/chats", alice.Token)[0].Status)

	w, env = s.do(http.MethodPost, chatPath, alice.Token, gin.H{"message": "still broken"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "chat is closed", env.Error)

	w, _ = s.do(http.MethodPatch, "/api/admin/support/chats/9999/status", admin, gin.H{"status": "open"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUserManagement(t *testing.T) {
	s := newTestServer(t, nil, handler.Options{})
	alice := s.register("alice@example.com", "alice")
	admin := s.adminToken()

	w, env := s.do(http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Stats map[string]int64 `json:"stats"`
	}
	env.decode(t, &stats)
	assert.Equal(t, int64(2), stats.Stats["totalUsers"])
	assert.Equal(t, int64(1), stats.Stats["totalLicenses"])
	assert.Equal(t, int64(2), stats.Stats["recentRegistrations"])

	w, env = s.do(http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users struct {
		Users []struct {
			ID                 uint   `json:"id"`
			Email              string `json:"email"`
			LicenseKey         string `json:"license_key"`
			SubscriptionStatus string `json:"subscription_status"`
		} `json:"users"`
	}
	env.decode(t, &users)
	require.Len(t, users.Users, 2)

	w, env = s.do(http.MethodPost, "/api/admin/users", admin, gin.H{"email": "carol@example.com", "username": "carol", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPut, "/api/admin/users/abc", admin, gin.H{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	userPath := fmt.Sprintf("/api/admin/users/%d", alice.User.ID)
	w, env = s.do(http.MethodPut, userPath, admin, gin.H{"username": "alice_renamed", "subscription_status": "expired"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(http.MethodPatch, userPath+"/status", admin, gin.H{"status": "inactive"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "account is disabled", env.Error)

	w, _ = s.do(http.MethodGet, "/api/admin/users/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestRateLimitOnLogin(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.RateLimitMax = 2
		cfg.Auth.RateLimitWindow = time.Hour
	}, handler.Options{})

	body := gin.H{"email": "nobody@example.com", "password": "secret123"}
	for i := 0; i < 2; i++ {
		w, _ := s.do(http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, env := s.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "too many requests, try again later", env.Error)

	// 注册使用独立的计数
	w, _ = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "a@example.com", "username": "a", "password": "secret123"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func (s *testServer) loginVia(forwardedFor string) int {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.RateLimitMax = 2
		cfg.Auth.RateLimitWindow = time.Hour
	}, handler.Options{})

	blocked := 0
	for i := 0; i < 10; i++ {
		if s.loginVia(fmt.Sprintf("203.0.113.%d", i+1)) == http.StatusTooManyRequests {
			blocked++
		}
	}
	assert.Equal(t, 8, blocked)
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	// httptest 请求的对端地址为 192.0.2.1
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.RateLimitMax = 2
		cfg.Auth.RateLimitWindow = time.Hour
		cfg.Server.TrustedProxies = []string{"192.0.2.1"}
	}, handler.Options{})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.loginVia(fmt.Sprintf("203.0.113.%d", i+1)))
	}
	assert.Equal(t, http.StatusUnauthorized, s.loginVia("198.51.100.7"))
	assert.Equal(t, http.StatusUnauthorized, s.loginVia("198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, s.loginVia("198.51.100.7"))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, nil, handler.Options{Metrics: m})

	s.do(http.MethodGet, "/api", "", nil)
	s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "nobody@example.com", "password": "secret123"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "vst_http_requests_total")
	assert.Contains(t, body, `vst_auth_logins_total{result="invalid"} 1`)
}
