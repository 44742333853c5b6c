// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/ShortsStudio/internal/models"
)

// newUpgrader 按允许的来源构造升级器
func newUpgrader(origins []string) websocket.Upgrader {
	allowAll := allowAllOrigins(origins)
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// SessionWebSocket 推送会话状态变化，连接后先发送一次完整快照
func (h *Handler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.Sessions.GetSession(sessionID); err != nil {
		h.Response.FromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
		return
	}

	client := NewWebSocketClient(conn, sessionID)
	if !h.Hub.Register(client) {
		client.Close()
		return
	}
	defer h.Hub.Unregister(client)
	h.Logger.Info("Session stream opened", map[string]interface{}{
		"session_id": sessionID,
		"clients":    h.Hub.ClientCount(sessionID),
	})

	// 注册之后再取快照，保证快照不早于之后推送的事件
	session, err := h.Sessions.GetSession(sessionID)
	if err != nil {
		return
	}
	snapshot, err := json.Marshal(newSessionEventView(models.SessionEvent{
		Type:      models.EventSessionSnapshot,
		SessionID: sessionID,
		Session:   session,
		Timestamp: time.Now(),
	}))
	if err != nil {
		return
	}
	client.enqueue(snapshot)

	go h.writePump(client)
	h.readPump(client)
}

// readPump 只处理 pong 和关闭；客户端不需要发送业务消息
func (h *Handler) readPump(client *WebSocketClient) {
	client.conn.SetReadDeadline(time.Now().Add(pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(pingTimeout))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Debug("WebSocket read ended", map[string]interface{}{
					"session_id": client.sessionID,
					"error":      err,
				})
			}
			return
		}
		client.UpdatePing()
	}
}

// writePump 发送队列中的消息并定期 ping
func (h *Handler) writePump(client *WebSocketClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.Done():
			return
		}
	}
}
