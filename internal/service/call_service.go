package service

import (
	"encoding/json"
	"lingopeer_backend/internal/model"
	"lingopeer_backend/pkg/logger"
	"lingopeer_backend/pkg/monitoring"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pusher 向指定用户投递下行信令消息，目标不可达时返回 false
type Pusher interface {
	Push(userID uint, msg WSMessage) bool
}

type userFinder interface {
	FindByID(id uint) (*model.User, error)
}

type exerciseFinder interface {
	FindExerciseByID(id uint) (*model.Exercise, error)
	FindModule(moduleID uint) (*model.CourseModule, error)
}

// CallRequest 一次待应答的呼叫邀请，被 call_accept / call_decline 恰好消费一次
type CallRequest struct {
	RequestID       string
	CallerID        uint
	CalleeID        uint
	CallerName      string
	ExerciseID      uint
	ModuleID        uint
	ExerciseIndex   int
	ExerciseTitle   string
	Topics          []string
	DurationMinutes int
	CreatedAt       time.Time
}

type CallSessionStatus string

const (
	SessionConnected CallSessionStatus = "connected"
	SessionEnded     CallSessionStatus = "ended"
)

// CallSession 一次进行中的真人练习通话，进程重启即丢失（学员重新发起即可）
type CallSession struct {
	SessionID       string
	CallerID        uint
	CalleeID        uint
	ModuleID        uint
	ExerciseIndex   int
	ExerciseTitle   string
	Topics          []string
	DurationMinutes int
	StartedAt       time.Time
	Status          CallSessionStatus
}

func (s *CallSession) ParticipantIDs() [2]uint {
	return [2]uint{s.CallerID, s.CalleeID}
}

func (s *CallSession) HasParticipant(userID uint) bool {
	return s.CallerID == userID || s.CalleeID == userID
}

func (s *CallSession) PartnerOf(userID uint) uint {
	if s.CallerID == userID {
		return s.CalleeID
	}
	return s.CallerID
}

// EvaluatorPolicy 决定通话结束后由哪一方提交互评
type EvaluatorPolicy func(session *CallSession) uint

// CallerEvaluates 默认策略：发起方（主持练习的一方）评价对方
func CallerEvaluates(session *CallSession) uint {
	return session.CallerID
}

// CalleeEvaluates 备选策略：受邀方评价发起方
func CalleeEvaluates(session *CallSession) uint {
	return session.CalleeID
}

// CallCoordinator 按 (主叫, 被叫) 维护呼叫状态机：
// Idle → Requesting → Connected → Ended。
// 状态只存在于两端与这里的临时记录中，不落库。
type CallCoordinator struct {
	mu          sync.Mutex
	requests    map[string]*CallRequest // requestId -> 待应答邀请
	sessions    map[string]*CallSession // sessionId -> 进行中通话
	userSession map[uint]string         // userId -> sessionId，保证一人同时至多一通
	pusher      Pusher
	users       userFinder
	exercises   exerciseFinder
	policy      EvaluatorPolicy
	requestTTL  time.Duration
}

func NewCallCoordinator(pusher Pusher, users userFinder, exercises exerciseFinder, policy EvaluatorPolicy, requestTTL time.Duration) *CallCoordinator {
	if policy == nil {
		policy = CallerEvaluates
	}
	if requestTTL <= 0 {
		requestTTL = 45 * time.Second
	}
	return &CallCoordinator{
		requests:    make(map[string]*CallRequest),
		sessions:    make(map[string]*CallSession),
		userSession: make(map[uint]string),
		pusher:      pusher,
		users:       users,
		exercises:   exercises,
		policy:      policy,
		requestTTL:  requestTTL,
	}
}

// SetRequestTTL 支持配置热更新，下一轮清理即按新超时生效
func (c *CallCoordinator) SetRequestTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.requestTTL = ttl
	c.mu.Unlock()
}

// HandleMessage 上行消息分发表。未知类型与坏载荷记录后丢弃，连接不受影响。
func (c *CallCoordinator) HandleMessage(senderID uint, env Envelope) {
	switch env.Type {
	case MsgCallRequest:
		var payload CallRequestPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Log.Debug("Malformed call_request payload", zap.Uint("userId", senderID), zap.Error(err))
			return
		}
		c.handleCallRequest(senderID, payload)
	case MsgCallAccept:
		var payload CallAcceptPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Log.Debug("Malformed call_accept payload", zap.Uint("userId", senderID), zap.Error(err))
			return
		}
		c.handleCallAccept(senderID, payload.RequestID)
	case MsgCallDecline:
		var payload CallDeclinePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Log.Debug("Malformed call_decline payload", zap.Uint("userId", senderID), zap.Error(err))
			return
		}
		c.handleCallDecline(senderID, payload.RequestID)
	case MsgEndCall:
		var payload EndCallPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Log.Debug("Malformed end_call payload", zap.Uint("userId", senderID), zap.Error(err))
			return
		}
		c.handleEndCall(senderID, payload.SessionID)
	default:
		logger.Log.Debug("Unhandled call message type", zap.String("type", env.Type))
	}
}

func (c *CallCoordinator) handleCallRequest(callerID uint, payload CallRequestPayload) {
	req := &CallRequest{
		RequestID:       uuid.New().String(),
		CallerID:        callerID,
		CalleeID:        payload.CalleeID,
		CallerName:      payload.CallerName,
		ExerciseID:      payload.ExerciseID,
		DurationMinutes: payload.Duration,
		CreatedAt:       time.Now(),
	}

	// 练习元数据尽力而为：查不到也不阻断呼叫
	if ex, err := c.exercises.FindExerciseByID(payload.ExerciseID); err == nil {
		req.ModuleID = ex.ModuleID
		req.ExerciseIndex = ex.Index
		req.ExerciseTitle = ex.Title
		if req.DurationMinutes == 0 {
			req.DurationMinutes = ex.DurationMinutes
		}
		if mod, err := c.exercises.FindModule(ex.ModuleID); err == nil {
			req.Topics = mod.TopicList()
		}
	} else {
		logger.Log.Warn("call_request for unknown exercise",
			zap.Uint("exerciseId", payload.ExerciseID), zap.Uint("callerId", callerID))
	}

	callerAvatar := ""
	if caller, err := c.users.FindByID(callerID); err == nil {
		callerAvatar = caller.Avatar
		if req.CallerName == "" {
			req.CallerName = caller.Name
		}
	}

	c.mu.Lock()
	c.requests[req.RequestID] = req
	c.mu.Unlock()

	monitoring.CallEventCounter.WithLabelValues("requested").Inc()

	notice := CallRequestNotice{
		RequestID:     req.RequestID,
		CallerID:      req.CallerID,
		CallerName:    req.CallerName,
		CallerAvatar:  callerAvatar,
		ExerciseID:    req.ExerciseID,
		ExerciseTitle: req.ExerciseTitle,
		Duration:      req.DurationMinutes,
		Topics:        req.Topics,
	}
	if !c.pusher.Push(req.CalleeID, WSMessage{Type: MsgCallRequest, Data: notice}) {
		// 投递失败立即回告主叫，不让对方无限等待
		c.mu.Lock()
		delete(c.requests, req.RequestID)
		c.mu.Unlock()
		monitoring.CallEventCounter.WithLabelValues("failed").Inc()
		c.pusher.Push(callerID, WSMessage{
			Type: MsgCallDeclined,
			Data: CallDeclinedPayload{RequestID: req.RequestID, Reason: "offline"},
		})
	}
}

func (c *CallCoordinator) handleCallAccept(senderID uint, requestID string) {
	c.mu.Lock()
	req, ok := c.requests[requestID]
	if !ok {
		// 过期引用（主叫已取消/超时）按无操作处理
		c.mu.Unlock()
		return
	}
	if req.CalleeID != senderID {
		c.mu.Unlock()
		logger.Log.Warn("call_accept from non-callee",
			zap.Uint("senderId", senderID), zap.String("requestId", requestID))
		return
	}
	delete(c.requests, requestID)

	// 一人同时至多一通：任一方已在通话中则拒绝本次接受
	if _, busy := c.userSession[req.CallerID]; !busy {
		_, busy = c.userSession[req.CalleeID]
		if !busy {
			session := &CallSession{
				SessionID:       uuid.New().String(),
				CallerID:        req.CallerID,
				CalleeID:        req.CalleeID,
				ModuleID:        req.ModuleID,
				ExerciseIndex:   req.ExerciseIndex,
				ExerciseTitle:   req.ExerciseTitle,
				Topics:          req.Topics,
				DurationMinutes: req.DurationMinutes,
				StartedAt:       time.Now(),
				Status:          SessionConnected,
			}
			c.sessions[session.SessionID] = session
			c.userSession[session.CallerID] = session.SessionID
			c.userSession[session.CalleeID] = session.SessionID
			c.mu.Unlock()

			monitoring.CallEventCounter.WithLabelValues("accepted").Inc()
			monitoring.ActiveCallSessions.Inc()
			c.notifyAccepted(session)
			return
		}
	}
	c.mu.Unlock()

	monitoring.CallEventCounter.WithLabelValues("declined").Inc()
	declined := CallDeclinedPayload{RequestID: requestID, Reason: "busy"}
	c.pusher.Push(req.CallerID, WSMessage{Type: MsgCallDeclined, Data: declined})
	c.pusher.Push(req.CalleeID, WSMessage{Type: MsgCallDeclined, Data: declined})
}

func (c *CallCoordinator) notifyAccepted(session *CallSession) {
	for _, pid := range session.ParticipantIDs() {
		partnerID := session.PartnerOf(pid)
		partnerName, partnerAvatar := c.lookupUser(partnerID)
		c.pusher.Push(pid, WSMessage{
			Type: MsgCallAccepted,
			Data: CallAcceptedPayload{
				SessionID:     session.SessionID,
				PartnerID:     partnerID,
				PartnerName:   partnerName,
				PartnerAvatar: partnerAvatar,
				ExerciseTitle: session.ExerciseTitle,
				Duration:      session.DurationMinutes,
				Topics:        session.Topics,
			},
		})
	}
}

func (c *CallCoordinator) lookupUser(userID uint) (name, avatar string) {
	user, err := c.users.FindByID(userID)
	if err != nil {
		return "", ""
	}
	return user.Name, user.Avatar
}

func (c *CallCoordinator) handleCallDecline(senderID uint, requestID string) {
	c.mu.Lock()
	req, ok := c.requests[requestID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if req.CalleeID != senderID {
		c.mu.Unlock()
		logger.Log.Warn("call_decline from non-callee",
			zap.Uint("senderId", senderID), zap.String("requestId", requestID))
		return
	}
	delete(c.requests, requestID)
	c.mu.Unlock()

	monitoring.CallEventCounter.WithLabelValues("declined").Inc()
	c.pusher.Push(req.CallerID, WSMessage{
		Type: MsgCallDeclined,
		Data: CallDeclinedPayload{RequestID: requestID, Reason: "declined"},
	})
}

// handleEndCall 幂等：重复挂断或会话早已结束都是无操作
func (c *CallCoordinator) handleEndCall(senderID uint, sessionID string) {
	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	if !ok || !session.HasParticipant(senderID) {
		c.mu.Unlock()
		return
	}
	c.removeSessionLocked(session)
	c.mu.Unlock()

	c.finishSession(session)
}

func (c *CallCoordinator) removeSessionLocked(session *CallSession) {
	session.Status = SessionEnded
	delete(c.sessions, session.SessionID)
	delete(c.userSession, session.CallerID)
	delete(c.userSession, session.CalleeID)
}

// finishSession 通知双方通话结束，并指定其中一方进入互评流程
func (c *CallCoordinator) finishSession(session *CallSession) {
	monitoring.CallEventCounter.WithLabelValues("ended").Inc()
	monitoring.ActiveCallSessions.Dec()

	evaluatorID := c.policy(session)
	evaluatedID := session.PartnerOf(evaluatorID)
	evaluatedName, _ := c.lookupUser(evaluatedID)

	for _, pid := range session.ParticipantIDs() {
		c.pusher.Push(pid, WSMessage{
			Type: MsgCallEnded,
			Data: CallEndedPayload{
				SessionID:         session.SessionID,
				ShouldEvaluate:    pid == evaluatorID,
				EvaluatedUserID:   evaluatedID,
				EvaluatedUserName: evaluatedName,
			},
		})
	}
}

// HandleDisconnect 断线等价于隐式 end_call，同时清掉该用户相关的待应答邀请
func (c *CallCoordinator) HandleDisconnect(userID uint) {
	c.mu.Lock()
	var ended *CallSession
	if sessionID, ok := c.userSession[userID]; ok {
		if session, ok := c.sessions[sessionID]; ok {
			c.removeSessionLocked(session)
			ended = session
		}
	}

	var orphaned []*CallRequest // 被叫掉线的邀请，需要回告主叫
	for id, req := range c.requests {
		if req.CallerID == userID {
			delete(c.requests, id)
		} else if req.CalleeID == userID {
			delete(c.requests, id)
			orphaned = append(orphaned, req)
		}
	}
	c.mu.Unlock()

	for _, req := range orphaned {
		c.pusher.Push(req.CallerID, WSMessage{
			Type: MsgCallDeclined,
			Data: CallDeclinedPayload{RequestID: req.RequestID, Reason: "offline"},
		})
	}

	if ended != nil {
		c.finishSession(ended)
	}
}

// ExpireStaleRequests 清理超时未应答的邀请并向主叫推送 call_timeout
func (c *CallCoordinator) ExpireStaleRequests() {
	now := time.Now()
	var expired []*CallRequest

	c.mu.Lock()
	for id, req := range c.requests {
		if now.Sub(req.CreatedAt) >= c.requestTTL {
			delete(c.requests, id)
			expired = append(expired, req)
		}
	}
	c.mu.Unlock()

	for _, req := range expired {
		monitoring.CallEventCounter.WithLabelValues("timeout").Inc()
		c.pusher.Push(req.CallerID, WSMessage{
			Type: MsgCallTimeout,
			Data: CallTimeoutPayload{RequestID: req.RequestID},
		})
	}
}

// ActiveSessionOf 查询用户当前所在的通话（若有）
func (c *CallCoordinator) ActiveSessionOf(userID uint) (*CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID, ok := c.userSession[userID]
	if !ok {
		return nil, false
	}
	session, ok := c.sessions[sessionID]
	return session, ok
}

// PendingRequestCount 供测试与健康观测使用
func (c *CallCoordinator) PendingRequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *CallCoordinator) ActiveSessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
