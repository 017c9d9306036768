package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vst-portal/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	active map[string]bool
	err    error
}

func (s *stubSessions) IsSessionActive(_ context.Context, hash string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.active[hash], nil
}

type stubRoles map[uint][]model.RoleName

func (s stubRoles) HasRole(_ context.Context, userID uint, role model.RoleName) (bool, error) {
	for _, r := range s[userID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(svc *JWTService, sessions SessionChecker, roles RoleChecker) *gin.Engine {
	r := gin.New()
	auth := r.Group("/", svc.AuthMiddleware(sessions, "auth_token"))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	auth.GET("/admin", RequireRole(roles, model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doRequest(r http.Handler, path string, setup func(*http.Request)) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestExtractTokenPrefersHeader(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer header-token")
	c.Request.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
	assert.Equal(t, "header-token", ExtractToken(c, "auth_token"))

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", ExtractToken(c, "auth_token"))

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", ExtractToken(c, "auth_token"))
}

func TestAuthMiddleware(t *testing.T) {
	svc := newTestService()
	issued, err := svc.GenerateToken(5, "c@example.com", "c")
	require.NoError(t, err)

	sessions := &stubSessions{active: map[string]bool{HashToken(issued.Token): true}}
	r := newTestRouter(svc, sessions, stubRoles{})

	t.Run("missing token", func(t *testing.T) {
		w, body := doRequest(r, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "token required", body["error"])
	})

	t.Run("invalid token", func(t *testing.T) {
		w, body := doRequest(r, "/me", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer nope")
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid token", body["error"])
	})

	t.Run("bearer ok", func(t *testing.T) {
		w, body := doRequest(r, "/me", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+issued.Token)
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 5, body["user_id"])
	})

	t.Run("cookie ok", func(t *testing.T) {
		w, _ := doRequest(r, "/me", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "auth_token", Value: issued.Token})
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("revoked session", func(t *testing.T) {
		other, err := svc.GenerateToken(5, "c@example.com", "c")
		require.NoError(t, err)
		w, body := doRequest(r, "/me", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+other.Token)
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "session expired or revoked", body["error"])
	})

	t.Run("session store failure", func(t *testing.T) {
		broken := newTestRouter(svc, &stubSessions{err: errors.New("db down")}, stubRoles{})
		w, _ := doRequest(broken, "/me", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+issued.Token)
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	svc := newTestService()
	customer, err := svc.GenerateToken(1, "u@example.com", "u")
	require.NoError(t, err)
	admin, err := svc.GenerateToken(2, "a@example.com", "a")
	require.NoError(t, err)

	sessions := &stubSessions{active: map[string]bool{
		HashToken(customer.Token): true,
		HashToken(admin.Token):    true,
	}}
	roles := stubRoles{
		1: {model.RoleCustomer},
		2: {model.RoleCustomer, model.RoleAdmin},
	}
	r := newTestRouter(svc, sessions, roles)

	w, body := doRequest(r, "/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+customer.Token)
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "admin role required", body["error"])

	w, _ = doRequest(r, "/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+admin.Token)
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
