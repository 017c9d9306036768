package websocket

import (
	"encoding/json"
	"sync"

	"vst-portal/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 推送给前端的刷新提示类型，前端收到后重新拉取数据
const TypeChatUpdated = "chat_updated"

// Hint 刷新提示
type Hint struct {
	Type   string `json:"type"`
	ChatID uint   `json:"chat_id"`
}

// Client 一个WebSocket连接
// 同一用户可以有多个连接（多个标签页）

type Client struct {
	UserID  uint
	IsAdmin bool
	Conn    *websocket.Conn
	Send    chan []byte
}

// NewClient 创建连接对象
func NewClient(userID uint, isAdmin bool, conn *websocket.Conn) *Client {
	return &Client{
		UserID:  userID,
		IsAdmin: isAdmin,
		Conn:    conn,
		Send:    make(chan []byte, 64),
	}
}

// Manager 管理所有在线连接，只推送提示，不保证离线送达

type Manager struct {
	clients map[uint]map[*Client]struct{}
	lock    sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{clients: make(map[uint]map[*Client]struct{})}
}

// AddClient 添加连接
func (m *Manager) AddClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	set, ok := m.clients[client.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		m.clients[client.UserID] = set
	}
	set[client] = struct{}{}
}

// RemoveClient 移除连接并关闭发送通道
func (m *Manager) RemoveClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	set, ok := m.clients[client.UserID]
	if !ok {
		return
	}
	if _, exists := set[client]; !exists {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(m.clients, client.UserID)
	}
}

// IsOnline 用户是否有在线连接
func (m *Manager) IsOnline(userID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients[userID]) > 0
}

// SendToUser 推送给指定用户的全部连接，不在线时丢弃
func (m *Manager) SendToUser(userID uint, msg []byte) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for c := range m.clients[userID] {
		m.deliver(c, msg)
	}
}

// SendToAdmins 推送给所有在线管理员，skipUserID 的连接除外
func (m *Manager) SendToAdmins(msg []byte, skipUserID uint) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for uid, set := range m.clients {
		if uid == skipUserID {
			continue
		}
		for c := range set {
			if c.IsAdmin {
				m.deliver(c, msg)
			}
		}
	}
}

// deliver 非阻塞写入，调用方持有读锁
func (m *Manager) deliver(c *Client, msg []byte) {
	select {
	case c.Send <- msg:
	default:
		logger.Debug("推送通道已满，丢弃提示", zap.Uint("user_id", c.UserID))
	}
}

// NotifyChatUpdated 工单有变化时通知所有者与在线管理员
func (m *Manager) NotifyChatUpdated(chatID, ownerID uint) {
	payload, err := json.Marshal(Hint{Type: TypeChatUpdated, ChatID: chatID})
	if err != nil {
		return
	}
	m.SendToUser(ownerID, payload)
	m.SendToAdmins(payload, ownerID)
}
