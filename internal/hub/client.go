package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/metrics"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// 连接 ID 在升级时由 Handler 分配，参与者身份由 Service 层通过注册表解析。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string      // 连接 ID (uuid)
	send chan []byte // 向此客户端发送消息的缓冲通道
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ID 返回连接 ID。
func (c *Client) ID() string { return c.id }

// CloseConn 关闭底层 WebSocket 连接。
func (c *Client) CloseConn() { c.conn.Close() }

// enqueue 非阻塞地将一条已序列化的消息放入发送队列。
// 队列满（接收方过慢或已断开）时丢弃该消息，绝不拖住调用方。
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		metrics.BroadcastsDropped.Inc()
		logrus.WithField("conn_id", c.id).Warn("Client send channel full, dropping message")
	}
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的处理通道。
// 在自己的 goroutine 中运行；退出时触发注销（断开等同于离开房间）。
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: msgUnregister, Client: c}
		if !c.hub.queueWithTimeout(unregisterMsg, 1*time.Second) {
			logrus.WithField("conn_id", c.id).Warn("Failed to queue unregister message to Hub")
		}
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("ReadPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("conn_id", c.id)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			logrus.WithField("conn_id", c.id).Debugf("Ignoring non-text message type: %d", messageType)
			continue
		}

		frameMsg := HubMessage{Type: msgFrame, Client: c, RawData: message}
		// 非阻塞入队，Hub 处理不过来或已停止则丢弃该帧
		if !c.hub.QueueMessage(frameMsg) {
			logrus.WithField("conn_id", c.id).Warn("Dropping client frame")
		}
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接，并周期性发送 Ping。
// 在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("WritePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭（注销时）
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
