package service

import (
	"context"
	"encoding/json"
	"fmt"
	"lingopeer_backend/internal/config"
	"lingopeer_backend/pkg/logger"
	"lingopeer_backend/pkg/monitoring"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 2048
	onlineTTL      = 2 * time.Minute // 在线状态过期时间

	signalChannel   = "signal_channel"
	onlineKeyPrefix = "user:online:"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CallHandler 消费信令通道上与呼叫相关的上行消息
type CallHandler interface {
	HandleMessage(senderID uint, env Envelope)
	HandleDisconnect(userID uint)
}

type Client struct {
	Hub     *SignalHub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	Name    string
	Limiter *rate.Limiter

	// 仅在 readPump goroutine 内读写
	authenticated bool
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		// 限流校验
		if !c.Limiter.Allow() {
			continue
		}

		c.Hub.handleFrame(c, message)
	}
}

// handleFrame 分发一条上行帧。协议违例只丢弃，连接保持打开
func (h *SignalHub) handleFrame(c *Client, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		logger.Log.Debug("Malformed signaling frame", zap.Uint("userId", c.UserID), zap.Error(err))
		return
	}

	monitoring.SignalMessageCounter.WithLabelValues(env.Type, "in").Inc()

	switch env.Type {
	case MsgAuthenticate:
		h.handleAuthenticate(c, env.Data)
	case MsgCallRequest, MsgCallAccept, MsgCallDecline, MsgEndCall:
		if !c.authenticated {
			logger.Log.Warn("Signaling message before authenticate", zap.Uint("userId", c.UserID), zap.String("type", env.Type))
			return
		}
		if h.calls != nil {
			h.calls.HandleMessage(c.UserID, env)
		}
	default:
		logger.Log.Debug("Unknown signaling message type", zap.String("type", env.Type), zap.Uint("userId", c.UserID))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(c.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-c.Send)
				}
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SignalHub 持有信令连接的生命周期：在线注册表、Redis 在线状态、跨实例转发
type SignalHub struct {
	registry   *PresenceRegistry
	register   chan *Client
	unregister chan *Client
	Redis      *redis.Client
	calls      CallHandler
	cfg        *config.SignalingConfig
	ctx        context.Context
}

func NewSignalHub(rdb *redis.Client, registry *PresenceRegistry, cfg *config.SignalingConfig) *SignalHub {
	return &SignalHub{
		registry:   registry,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Redis:      rdb,
		cfg:        cfg,
		ctx:        context.Background(),
	}
}

func (h *SignalHub) SetCallHandler(handler CallHandler) {
	h.calls = handler
}

func (h *SignalHub) Registry() *PresenceRegistry {
	return h.registry
}

// handleAuthenticate 将连接绑定到 JWT 已验证的身份上。
// 消息体里的 userId 必须与握手时的身份一致，否则按协议违例丢弃。
func (h *SignalHub) handleAuthenticate(c *Client, data json.RawMessage) {
	var payload AuthenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Log.Debug("Malformed authenticate payload", zap.Uint("userId", c.UserID), zap.Error(err))
		return
	}
	if payload.UserID != c.UserID {
		logger.Log.Warn("Authenticate userId mismatch",
			zap.Uint("connUserId", c.UserID), zap.Uint("claimedUserId", payload.UserID))
		return
	}
	if c.authenticated {
		return
	}
	c.authenticated = true
	h.register <- c
}

type PubSubMessage struct {
	TargetUsers []uint          `json:"targetUsers"`
	Payload     json.RawMessage `json:"payload"`
}

func (h *SignalHub) Run() {
	pubsub := h.Redis.Subscribe(h.ctx, signalChannel)
	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var psMsg PubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.pushToLocalRawUsers(psMsg.TargetUsers, psMsg.Payload)
		}
	}()

	// 批量处理状态更新
	ticker := time.NewTicker(500 * time.Millisecond)
	// 状态续期定时器 (Heartbeat)
	heartbeatTicker := time.NewTicker(1 * time.Minute)
	defer func() {
		ticker.Stop()
		heartbeatTicker.Stop()
	}()

	type statusUpdate struct {
		userID uint
		status string
	}
	var pendingUpdates []statusUpdate

	for {
		select {
		case client := <-h.register:
			// 重连时旧连接由注册表在锁内关闭
			if !h.registry.Register(client.UserID, client) {
				monitoring.SignalOnlineUsers.Inc()
			}
			pendingUpdates = append(pendingUpdates, statusUpdate{client.UserID, "online"})

		case client := <-h.unregister:
			if h.registry.Unregister(client) {
				monitoring.SignalOnlineUsers.Dec()
				pendingUpdates = append(pendingUpdates, statusUpdate{client.UserID, "offline"})
				// 断线视为隐式挂断，避免会话悬挂
				if h.calls != nil {
					h.calls.HandleDisconnect(client.UserID)
				}
			}

		case <-heartbeatTicker.C:
			// 为本地在线用户批量续期
			h.refreshOnlineStatus()

		case <-ticker.C:
			if len(pendingUpdates) == 0 {
				continue
			}

			pipe := h.Redis.Pipeline()
			for _, update := range pendingUpdates {
				key := onlineKey(update.userID)
				if update.status == "online" {
					pipe.Set(h.ctx, key, "true", onlineTTL)
				} else {
					pipe.Del(h.ctx, key)
				}
			}
			_, err := pipe.Exec(h.ctx)
			if err != nil {
				logger.Log.Error("Redis pipeline error", zap.Error(err))
			}

			h.broadcastOnlineUsers()
			pendingUpdates = pendingUpdates[:0]
		}
	}
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("%s%d", onlineKeyPrefix, userID)
}

// refreshOnlineStatus 刷新当前实例所有在线用户的过期时间
func (h *SignalHub) refreshOnlineStatus() {
	ids := h.registry.OnlineIDs()
	if len(ids) == 0 {
		return
	}
	pipe := h.Redis.Pipeline()
	for _, userID := range ids {
		pipe.Expire(h.ctx, onlineKey(userID), onlineTTL)
	}
	pipe.Exec(h.ctx)
	logger.Log.Debug("Refreshed online status", zap.Int("count", len(ids)))
}

// broadcastOnlineUsers 在线集合变化时向所有连接广播
func (h *SignalHub) broadcastOnlineUsers() {
	ids := h.OnlineUserIDs()
	h.publish(nil, WSMessage{
		Type: MsgOnlineUsersUpdate,
		Data: OnlineUsersPayload{OnlineUsers: ids},
	})
}

// OnlineUserIDs 合并本地注册表与 Redis 在线键（多实例部署）
func (h *SignalHub) OnlineUserIDs() []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, id := range h.registry.OnlineIDs() {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if h.Redis != nil {
		var cursor uint64
		for {
			keys, next, err := h.Redis.Scan(h.ctx, cursor, onlineKeyPrefix+"*", 100).Result()
			if err != nil {
				break
			}
			for _, key := range keys {
				raw := strings.TrimPrefix(key, onlineKeyPrefix)
				id64, err := strconv.ParseUint(raw, 10, 32)
				if err != nil {
					continue
				}
				id := uint(id64)
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return ids
}

// Push 将消息单播给指定用户。目标不在线返回 false，调用方据此回告发送者，
// 而不是让呼叫方无限等待一个根本不可达的对端。
func (h *SignalHub) Push(userID uint, msg WSMessage) bool {
	if !h.IsUserOnline(userID) {
		return false
	}
	h.publish([]uint{userID}, msg)
	return true
}

func (h *SignalHub) publish(userIDs []uint, msg WSMessage) {
	msgBytes, _ := json.Marshal(msg)
	psMsg := PubSubMessage{
		TargetUsers: userIDs,
		Payload:     msgBytes,
	}
	payload, _ := json.Marshal(psMsg)
	h.Redis.Publish(h.ctx, signalChannel, payload)
	monitoring.SignalMessageCounter.WithLabelValues(msg.Type, "out").Inc()
}

func (h *SignalHub) pushToLocalRawUsers(userIDs []uint, payload []byte) {
	if len(userIDs) == 0 {
		// 空目标列表 = 广播给本实例全部连接
		h.registry.SendAll(payload)
		return
	}

	for _, id := range userIDs {
		h.registry.Send(id, payload)
	}
}

func (h *SignalHub) IsUserOnline(userID uint) bool {
	// 查本地注册表
	if _, ok := h.registry.Lookup(userID); ok {
		return true
	}

	// 查 Redis (多实例部署)
	val, err := h.Redis.Get(h.ctx, onlineKey(userID)).Result()
	return err == nil && val == "true"
}

// Stop 关闭所有连接并清理在线状态
func (h *SignalHub) Stop() {
	logger.Log.Info("SignalHub stopping: clearing online status and closing connections...")

	allUserIDs := h.registry.Drain()

	if len(allUserIDs) > 0 {
		pipe := h.Redis.Pipeline()
		for _, userID := range allUserIDs {
			pipe.Del(h.ctx, onlineKey(userID))
		}
		pipe.Exec(h.ctx)
	}

	monitoring.SignalOnlineUsers.Set(0)
	logger.Log.Info("SignalHub stopped", zap.Int("closedConnections", len(allUserIDs)))
}

func ServeWs(hub *SignalHub, w http.ResponseWriter, r *http.Request, userID uint, name string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	messageRate, messageBurst := 30, 50
	if hub.cfg != nil {
		messageRate, messageBurst = hub.cfg.MessageRate, hub.cfg.MessageBurst
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		UserID:  userID,
		Name:    name,
		Limiter: rate.NewLimiter(rate.Limit(messageRate), messageBurst),
	}

	go client.writePump()
	go client.readPump()
}
