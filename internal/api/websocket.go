// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/CompanionBridgeMCP/internal/inference"
	"github.com/Corphon/CompanionBridgeMCP/internal/utils"
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

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetWriteDeadline(t time.Time) error
}

// statusClient 表示一个订阅状态推送的客户端连接
type statusClient struct {
	conn   WebSocketConnection
	send   chan []byte
	closed int32 // 原子操作标志，0=开启，1=关闭
}

// Close 安全关闭客户端连接
func (client *statusClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *statusClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// StatusBroadcaster 将推理网关的健康事件推送给所有已连接的客户端
type StatusBroadcaster struct {
	mutex   sync.RWMutex
	clients map[*statusClient]struct{}
	started int32
}

// NewStatusBroadcaster 创建状态广播器
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[*statusClient]struct{}),
	}
}

// Start 订阅健康事件通道并开始广播（只启动一次）
func (b *StatusBroadcaster) Start(events <-chan inference.HealthEvent) {
	if !atomic.CompareAndSwapInt32(&b.started, 0, 1) {
		return
	}

	go func() {
		for event := range events {
			payload, err := json.Marshal(map[string]interface{}{
				"type":      "inference_health",
				"healthy":   event.Healthy,
				"error":     event.Error,
				"timestamp": event.Timestamp.Format(time.RFC3339),
			})
			if err != nil {
				continue
			}
			b.broadcast(payload)
		}
	}()
}

// broadcast 向所有客户端发送消息，队列满的客户端丢弃本条
func (b *StatusBroadcaster) broadcast(payload []byte) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for client := range b.clients {
		if client.IsClosed() {
			continue
		}
		select {
		case client.send <- payload:
		default:
			utils.GetLogger().Warn("Status client send queue full, message dropped", nil)
		}
	}
}

// register 注册客户端
func (b *StatusBroadcaster) register(client *statusClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.clients[client] = struct{}{}
}

// unregister 注销客户端
func (b *StatusBroadcaster) unregister(client *statusClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.clients, client)
}

// ClientCount 返回当前连接数
func (b *StatusBroadcaster) ClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// StatusWebSocket 处理 /ws/status 连接升级
func (h *Handler) StatusWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := &statusClient{
		conn: conn,
		send: make(chan []byte, 16),
	}

	h.Broadcaster.register(client)

	// 写循环
	go func() {
		defer func() {
			h.Broadcaster.unregister(client)
			client.Close()
		}()

		for payload := range client.send {
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	// 读循环只用于探测断连
	go func() {
		defer func() {
			h.Broadcaster.unregister(client)
			client.Close()
			close(client.send)
		}()

		for {
			if _, _, err := client.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
