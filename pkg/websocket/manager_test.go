package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Client) Hint {
	t.Helper()
	select {
	case raw := <-c.Send:
		var h Hint
		require.NoError(t, json.Unmarshal(raw, &h))
		return h
	default:
		t.Fatalf("expected a hint for user %d", c.UserID)
		return Hint{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message for user %d: %s", c.UserID, raw)
	default:
	}
}

func TestNotifyChatUpdatedReachesOwnerAndAdmins(t *testing.T) {
	m := NewManager()
	owner := NewClient(1, false, nil)
	otherCustomer := NewClient(2, false, nil)
	admin := NewClient(3, true, nil)
	adminSecondTab := NewClient(3, true, nil)
	for _, c := range []*Client{owner, otherCustomer, admin, adminSecondTab} {
		m.AddClient(c)
	}

	m.NotifyChatUpdated(42, 1)

	assert.Equal(t, Hint{Type: TypeChatUpdated, ChatID: 42}, recv(t, owner))
	assert.Equal(t, uint(42), recv(t, admin).ChatID)
	assert.Equal(t, uint(42), recv(t, adminSecondTab).ChatID)
	assertEmpty(t, otherCustomer)
}

func TestRemoveClientClosesChannel(t *testing.T) {
	m := NewManager()
	c := NewClient(7, false, nil)
	m.AddClient(c)
	require.True(t, m.IsOnline(7))

	m.RemoveClient(c)
	assert.False(t, m.IsOnline(7))
	_, ok := <-c.Send
	assert.False(t, ok)

	// 重复移除与向离线用户推送都不会panic
	assert.NotPanics(t, func() {
		m.RemoveClient(c)
		m.SendToUser(7, []byte("x"))
	})
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	m := NewManager()
	c := NewClient(1, false, nil)
	m.AddClient(c)
	for i := 0; i < cap(c.Send)+5; i++ {
		m.SendToUser(1, []byte("x"))
	}
	assert.Len(t, c.Send, cap(c.Send))
}
