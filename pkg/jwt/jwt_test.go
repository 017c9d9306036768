package jwt

import (
	"errors"
	"testing"
	"time"

	"vst-portal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:     "test-secret",
		ExpireTime: time.Hour,
		Issuer:     "vst-portal-test",
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService()

	issued, err := svc.GenerateToken(42, "alice@example.com", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 2*time.Second)

	claims, err := svc.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice@example.com", claimString(claims, "email"))
	assert.Equal(t, "alice", claimString(claims, "username"))
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateTokenUniqueWithinSameSecond(t *testing.T) {
	svc := newTestService()
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	a, err := svc.GenerateToken(1, "a@example.com", "a")
	require.NoError(t, err)
	b, err := svc.GenerateToken(1, "a@example.com", "a")
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	assert.NotEqual(t, HashToken(a.Token), HashToken(b.Token))
}

func TestGenerateTokenRequiresUser(t *testing.T) {
	_, err := newTestService().GenerateToken(0, "", "")
	assert.Error(t, err)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newTestService()
	issued, err := svc.GenerateToken(7, "b@example.com", "b")
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := svc.ValidateToken("")
		assert.True(t, errors.Is(err, ErrTokenRequired))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "other", ExpireTime: time.Hour, Issuer: "vst-portal-test"})
		_, err := other.ValidateToken(issued.Token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour, Issuer: "someone-else"})
		_, err := other.ValidateToken(issued.Token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestService()
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ValidateToken(issued.Token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.Len(t, HashToken("abc"), 64)
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
