// internal/api/websocket.go
package api

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

const (
	clientSendBuffer = 64
	pingTimeout      = 60 * time.Second
	pingInterval     = (pingTimeout * 9) / 10
	writeTimeout     = 10 * time.Second
	cleanupInterval  = 30 * time.Second
)

// WebSocketConnection 定义 WebSocket 连接的接口，*websocket.Conn 满足该接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient 表示一个订阅会话事件的连接
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	send      chan []byte
	done      chan struct{}
	closed    int32 // 0=开启，1=关闭
	lastPing  atomic.Int64
	createdAt time.Time
}

// NewWebSocketClient 创建客户端
func NewWebSocketClient(conn WebSocketConnection, sessionID string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, clientSendBuffer),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close 安全关闭客户端连接，可重复调用
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// Done 连接关闭时被关闭
func (client *WebSocketClient) Done() <-chan struct{} {
	return client.done
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// enqueue 非阻塞入队；队列满说明客户端跟不上，直接断开
func (client *WebSocketClient) enqueue(message []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		client.Close()
		return false
	}
}

// WebSocketManager 按会话管理 WebSocket 连接
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // sessionID -> clients
	mutex       sync.RWMutex
	logger      *utils.Logger
	pingTimeout time.Duration

	started  bool
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWebSocketManager 创建管理器，需要调用 Start 启动清理循环
func NewWebSocketManager(logger *utils.Logger) *WebSocketManager {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		logger:      logger,
		pingTimeout: pingTimeout,
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start 启动后台清理循环
func (manager *WebSocketManager) Start() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if manager.started {
		return
	}
	manager.started = true
	go manager.run()
}

// Stop 关闭所有连接并等待后台循环退出
func (manager *WebSocketManager) Stop() {
	manager.stopOnce.Do(func() {
		close(manager.stop)

		manager.mutex.Lock()
		started := manager.started
		for _, clients := range manager.connections {
			for client := range clients {
				client.Close()
			}
		}
		manager.connections = make(map[string]map[*WebSocketClient]struct{})
		manager.mutex.Unlock()

		if started {
			<-manager.stopped
		}
		manager.logger.Info("WebSocket manager stopped", nil)
	})
}

// run 定期清理过期连接
func (manager *WebSocketManager) run() {
	defer close(manager.stopped)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.cleanupExpiredConnections()
		case <-manager.stop:
			return
		}
	}
}

func (manager *WebSocketManager) isStopping() bool {
	select {
	case <-manager.stop:
		return true
	default:
		return false
	}
}

// Register 注册客户端；管理器已停止时返回 false
func (manager *WebSocketManager) Register(client *WebSocketClient) bool {
	if client == nil {
		return false
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if manager.isStopping() {
		return false
	}

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}
	client.UpdatePing()

	manager.logger.Debug("WebSocket client connected", map[string]interface{}{
		"session_id": client.sessionID,
	})
	return true
}

// Unregister 注销并关闭客户端
func (manager *WebSocketManager) Unregister(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	if clients, exists := manager.connections[client.sessionID]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}
	manager.mutex.Unlock()

	client.Close()
	manager.logger.Debug("WebSocket client disconnected", map[string]interface{}{
		"session_id": client.sessionID,
	})
}

// cleanupExpiredConnections 清理过期和已关闭的连接
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	removed := 0
	for sessionID, clients := range manager.connections {
		for client := range clients {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(clients, client)
				client.Close()
				removed++
			}
		}
		if len(clients) == 0 {
			delete(manager.connections, sessionID)
		}
	}
	if removed > 0 {
		manager.logger.Info("Expired WebSocket clients removed", map[string]interface{}{"count": removed})
	}
}

// sessionEventView 推送给前端的事件，会话与 REST 接口使用同一视图
type sessionEventView struct {
	models.SessionEvent
	Session *sessionView `json:"session,omitempty"`
}

func newSessionEventView(event models.SessionEvent) sessionEventView {
	view := sessionEventView{SessionEvent: event}
	if event.Session != nil {
		sv := newSessionView(event.Session)
		view.Session = &sv
	}
	return view
}

// PublishSessionEvent 实现 services.EventPublisher
func (manager *WebSocketManager) PublishSessionEvent(event models.SessionEvent) {
	manager.BroadcastToSession(event.SessionID, newSessionEventView(event))
}

// BroadcastToSession 向订阅指定会话的所有客户端发送消息
func (manager *WebSocketManager) BroadcastToSession(sessionID string, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		manager.logger.Error("Failed to encode WebSocket message", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
		return
	}

	manager.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(manager.connections[sessionID]))
	for client := range manager.connections[sessionID] {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	dropped := 0
	for _, client := range clients {
		if !client.enqueue(msgBytes) {
			dropped++
		}
	}
	if dropped > 0 {
		manager.logger.Warn("WebSocket clients dropped, send queue full", map[string]interface{}{
			"session_id": sessionID,
			"count":      dropped,
		})
	}
}

// ClientCount 当前订阅某会话的连接数
func (manager *WebSocketManager) ClientCount(sessionID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.connections[sessionID])
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]interface{})
	total := 0
	for sessionID, clients := range manager.connections {
		active := 0
		for client := range clients {
			if !client.IsClosed() {
				active++
			}
		}
		sessions[sessionID] = map[string]interface{}{"client_count": active}
		total += active
	}

	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": total,
		"sessions":          sessions,
	}
}
