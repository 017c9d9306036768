package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"vst-portal/config"
	"vst-portal/internal/model"
	"vst-portal/internal/service"
	"vst-portal/internal/testutil"
	"vst-portal/pkg/jwt"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type notification struct {
	ChatID  uint
	OwnerID uint
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) NotifyChatUpdated(chatID, ownerID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{ChatID: chatID, OwnerID: ownerID})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.events...)
}

type env struct {
	db       *gorm.DB
	jwt      *jwt.JWTService
	sessions *service.SessionService
	auth     *service.AuthService
	account  *service.AccountService
	admin    *service.AdminService
	support  *service.SupportService
	notifier *recordingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour, Issuer: "vst-test"})
	sessions := service.NewSessionService(db, jwtSvc, time.Minute)
	notifier := &recordingNotifier{}
	return &env{
		db:       db,
		jwt:      jwtSvc,
		sessions: sessions,
		auth:     service.NewAuthService(db, sessions, nil),
		account:  service.NewAccountService(db, config.UploadConfig{AvatarDir: t.TempDir(), MaxAvatarBytes: 1024}),
		admin:    service.NewAdminService(db, sessions),
		support:  service.NewSupportService(db, notifier, nil),
		notifier: notifier,
	}
}

// register 通过注册流程创建客户
func (e *env) register(t *testing.T, email, username string) *service.AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), service.NewUserInput{
		Email: email, Username: username, Password: "secret123",
	})
	require.NoError(t, err)
	return res
}

// createAdmin 后台开户创建管理员
func (e *env) createAdmin(t *testing.T, email, username string) *service.Profile {
	t.Helper()
	p, err := e.admin.CreateUser(context.Background(), service.NewUserInput{
		Email: email, Username: username, Password: "secret123", Admin: true,
	})
	require.NoError(t, err)
	require.True(t, p.IsAdmin())
	return p
}

func (e *env) sessionActive(t *testing.T, token string) bool {
	t.Helper()
	ok, err := e.sessions.IsSessionActive(context.Background(), jwt.HashToken(token))
	require.NoError(t, err)
	return ok
}

func unreadOf(chats []*model.ChatSummary, chatID uint) int64 {
	for _, c := range chats {
		if c.ID == chatID {
			return c.UnreadCount
		}
	}
	return -1
}
