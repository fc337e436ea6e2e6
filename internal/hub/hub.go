package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/dto"
	"github.com/catmaikl777/kitten-draw-backend/internal/metrics"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
	"github.com/catmaikl777/kitten-draw-backend/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// draw 消息携带完整画布快照 (data-URL)，需要远大于普通聊天消息的上限。
	maxMessageSize = 1 << 20
)

// Hub 内部通道传递的消息类型
const (
	msgRegister   = "register"
	msgUnregister = "unregister"
	msgFrame      = "frame"
	msgKick       = "kick"
)

// HubMessage 定义了在 Hub 内部通道传递的消息。
type HubMessage struct {
	Type    string  // "register", "unregister", "frame", "kick"
	Client  *Client // 来源客户端（register/unregister/frame）
	RawData []byte  // 仅用于 frame（原始 WebSocket 消息）
	ConnID  string  // 仅用于 kick：目标连接
	Reason  string  // 仅用于 kick：发给目标连接的错误文本
}

// Hub 维护活跃连接集合，并把入站消息路由到各 Service。
// 它同时充当连接注册表的传输半边：connID -> *Client。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件。
	// closed 标志与通道关闭在 closedMu 下保持一致：
	// 所有入队方持读锁并先检查标志，避免向已关闭的通道发送。
	messageChan chan HubMessage
	closed      bool
	closedMu    sync.RWMutex

	clients   map[string]*Client // connID -> Client
	clientsMu sync.RWMutex

	// 注入的 Service，处理业务逻辑
	session *service.SessionManager
	draw    *service.DrawRelay
	chat    *service.ChatRelay
	store   repository.RoomStore // 仅用于维护 rooms_active 指标
}

// NewHub 创建并返回一个新的 Hub 实例。
func NewHub(session *service.SessionManager, draw *service.DrawRelay, chat *service.ChatRelay, store repository.RoomStore) *Hub {
	if session == nil {
		panic("SessionManager cannot be nil for Hub")
	}
	if draw == nil {
		panic("DrawRelay cannot be nil for Hub")
	}
	if chat == nil {
		panic("ChatRelay cannot be nil for Hub")
	}
	if store == nil {
		panic("RoomStore cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		clients:     make(map[string]*Client),
		session:     session,
		draw:        draw,
		chat:        chat,
		store:       store,
	}
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
// 所有消息在本循环内依次处理：这是协议顺序保证的来源——
// 同一发送方的 draw 按提交顺序转发，且任一房间的状态变更被串行化。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case msgRegister:
			h.registerClient(msg.Client)
		case msgUnregister:
			h.unregisterClient(msg.Client)
		case msgFrame:
			h.handleFrame(msg)
		case msgKick:
			h.kickClient(msg.ConnID, msg.Reason)
		default:
			log.Warnf("Hub: received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// Stop 关闭 Hub 的消息通道，使 Run 退出。
// 通道只在置位 closed 标志之后关闭，此后的入队调用安全地返回 false。
func (h *Hub) Stop() {
	h.closedMu.Lock()
	defer h.closedMu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.messageChan)
}

// QueueMessage 将消息放入 Hub 的处理队列（非阻塞）。
// 返回 false 表示队列已满或 Hub 已停止，消息被丢弃。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	h.closedMu.RLock()
	defer h.closedMu.RUnlock()
	if h.closed {
		return false
	}
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// queueWithTimeout 入队一条消息，队列满时最多等待 d。
// 用于注销这类必须尽量送达的消息；Hub 已停止时返回 false。
func (h *Hub) queueWithTimeout(msg HubMessage, d time.Duration) bool {
	h.closedMu.RLock()
	defer h.closedMu.RUnlock()
	if h.closed {
		return false
	}
	select {
	case h.messageChan <- msg:
		return true
	case <-time.After(d):
		return false
	}
}

// ClientCount 返回当前活跃连接数，供健康检查使用。
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Kick 向连接发送错误消息并关闭它，供后台清扫任务回收闲置房间时使用。
// 从 Worker goroutine 调用：实际处理入队到事件循环，
// 与该连接可能同时发生的注销（send 通道关闭）串行化。
func (h *Hub) Kick(connID, reason string) {
	h.QueueMessage(HubMessage{Type: msgKick, ConnID: connID, Reason: reason})
}

// kickClient 在事件循环内执行踢出。连接已注销时是 no-op。
func (h *Hub) kickClient(connID, reason string) {
	h.clientsMu.RLock()
	client, ok := h.clients[connID]
	h.clientsMu.RUnlock()
	if !ok {
		return
	}
	h.sendTo(client, dto.NewErrorMessage(reason))
	client.CloseConn()
}

// registerClient 处理客户端注册。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	h.clientsMu.Lock()
	h.clients[client.ID()] = client
	h.clientsMu.Unlock()

	metrics.ConnectionsActive.Inc()
	logrus.WithField("conn_id", client.ID()).Info("Client registered to Hub")
}

// unregisterClient 处理客户端注销。传输层断开与显式 leave_room 走同一条
// 离开路径：先结清会话（通知对端、必要时销毁空房间），再回收连接。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithField("conn_id", client.ID())

	deliveries, err := h.session.Leave(context.Background(), client.ID())
	if err != nil {
		logCtx.WithError(err).Error("Failed to settle session on disconnect")
	}
	h.dispatch(deliveries)
	h.syncRoomGauge()

	h.clientsMu.Lock()
	if _, exists := h.clients[client.ID()]; exists {
		delete(h.clients, client.ID())
		// 每个连接只会注销一次（事件循环串行处理），可以安全关闭 send 通道
		close(client.send)
		metrics.ConnectionsActive.Dec()
	}
	h.clientsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")
}

// handleFrame 解析一帧入站消息并按类型路由到对应的 Service。
// 故意不使用 go routine：协议的顺序保证依赖本循环的串行处理。
// 任何失败都被隔离到来源连接——回一条 error，连接保持。
func (h *Hub) handleFrame(msg HubMessage) {
	ctx := context.Background()
	client := msg.Client
	logCtx := logrus.WithField("conn_id", client.ID())

	// 单帧处理的任何意外故障都不允许带垮事件循环
	defer func() {
		if r := recover(); r != nil {
			logCtx.Errorf("Panic while handling client frame: %v", r)
			h.sendTo(client, dto.NewErrorMessage(service.ErrInternalServer.Error()))
		}
	}()

	frame, err := dto.DecodeClientMessage(msg.RawData)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to decode client message")
		h.sendTo(client, dto.NewErrorMessage(service.ErrInvalidPayload.Error()))
		return
	}
	logCtx = logCtx.WithField("kind", frame.Type)

	switch frame.Type {
	case dto.KindCreateRoom:
		joined, err := h.session.Create(ctx, client.ID(), frame.Username)
		if err != nil {
			h.sendError(client, logCtx, err)
			return
		}
		metrics.RoomsCreated.Inc()
		h.syncRoomGauge()
		h.sendTo(client, joined)

	case dto.KindJoinRoom:
		joined, deliveries, err := h.session.Join(ctx, client.ID(), frame.RoomID, frame.Username)
		if err != nil {
			metrics.JoinsTotal.WithLabelValues(joinResult(err)).Inc()
			h.sendError(client, logCtx, err)
			return
		}
		metrics.JoinsTotal.WithLabelValues("ok").Inc()
		h.sendTo(client, joined)
		h.dispatch(deliveries)

	case dto.KindLeaveRoom:
		deliveries, err := h.session.Leave(ctx, client.ID())
		if err != nil {
			h.sendError(client, logCtx, err)
			return
		}
		h.dispatch(deliveries)
		h.syncRoomGauge()

	case dto.KindDraw:
		deliveries, err := h.draw.SubmitDraw(ctx, client.ID(), frame.DrawOp())
		if err != nil {
			h.sendError(client, logCtx, err)
			return
		}
		metrics.MessagesRelayed.WithLabelValues("draw").Inc()
		h.dispatch(deliveries)

	case dto.KindClear:
		deliveries, err := h.draw.SubmitClear(ctx, client.ID())
		if err != nil {
			h.sendError(client, logCtx, err)
			return
		}
		metrics.MessagesRelayed.WithLabelValues("clear").Inc()
		h.dispatch(deliveries)

	case dto.KindChatMessage:
		deliveries, err := h.chat.SubmitChat(ctx, client.ID(), frame.Message)
		if err != nil {
			h.sendError(client, logCtx, err)
			return
		}
		if len(deliveries) > 0 {
			metrics.MessagesRelayed.WithLabelValues("chat").Inc()
		}
		h.dispatch(deliveries)

	default:
		logCtx.Warn("Unknown client message kind")
		h.sendTo(client, dto.NewErrorMessage(service.ErrInvalidPayload.Error()))
	}
}

// dispatch 将 Service 计算出的投递项扇出到目标连接。
func (h *Hub) dispatch(deliveries []service.Delivery) {
	for _, d := range deliveries {
		payload, err := json.Marshal(d.Message)
		if err != nil {
			logrus.WithError(err).Error("Failed to marshal outbound message")
			continue
		}
		h.clientsMu.RLock()
		targets := make([]*Client, 0, len(d.ConnIDs))
		for _, connID := range d.ConnIDs {
			if client, ok := h.clients[connID]; ok {
				targets = append(targets, client)
			}
		}
		h.clientsMu.RUnlock()

		for _, client := range targets {
			client.enqueue(payload)
		}
	}
}

// sendTo 序列化并入队一条发往单个连接的消息。
func (h *Hub) sendTo(client *Client, msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal message for client")
		return
	}
	client.enqueue(payload)
}

// sendError 将业务错误回给出错的连接。
func (h *Hub) sendError(client *Client, logCtx *logrus.Entry, err error) {
	logCtx.WithError(err).Warn("Request failed")
	text := err.Error()
	if errors.Is(err, service.ErrInternalServer) {
		text = service.ErrInternalServer.Error()
	}
	h.sendTo(client, dto.NewErrorMessage(text))
}

// syncRoomGauge 同步 rooms_active 指标。
func (h *Hub) syncRoomGauge() {
	if n, err := h.store.Count(context.Background()); err == nil {
		metrics.RoomsActive.Set(float64(n))
	}
}

// joinResult 将 Join 的业务错误映射为指标标签。
func joinResult(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, service.ErrRoomFull):
		return "room_full"
	case errors.Is(err, service.ErrAlreadyInRoom):
		return "already_in_room"
	default:
		return "error"
	}
}
