// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Corphon/StoryboardMCP/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// NotificationHub 向所有已连接客户端推送瞬态通知
// 实现 services.Notifier；只保留最新一条通知（新通知替换旧通知），
// 新连接建立时补发当前这条
type NotificationHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	latest  *models.Notification

	writeTimeout time.Duration
}

// NewNotificationHub 创建通知中心
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients:      make(map[*websocket.Conn]bool),
		writeTimeout: 10 * time.Second,
	}
}

// Notify 广播一条通知，替换当前展示的通知
// 即发即弃：写失败的连接直接移除，不重试不阻塞
func (h *NotificationHub) Notify(message string, severity models.NotificationSeverity) {
	notification := &models.Notification{
		Type:      "notification",
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		log.Printf("⚠️ 序列化通知失败: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = notification

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// HandleConnection 处理 /ws/notifications 连接
func (h *NotificationHub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket 升级失败: %v", err)
		return
	}

	h.register(conn)

	// 读循环只用于感知客户端断开
	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// register 注册连接并补发最新通知
func (h *NotificationHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[conn] = true

	if h.latest != nil {
		if payload, err := json.Marshal(h.latest); err == nil {
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	}

	log.Printf("✅ 通知客户端已连接，当前连接数: %d", len(h.clients))
}

// unregister 注销连接
func (h *NotificationHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[conn]; exists {
		conn.Close()
		delete(h.clients, conn)
	}
}

// Status 返回通知中心状态（调试用）
func (h *NotificationHub) Status() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := map[string]interface{}{
		"connected_clients": len(h.clients),
	}
	if h.latest != nil {
		status["latest_notification"] = h.latest
	}
	return status
}
