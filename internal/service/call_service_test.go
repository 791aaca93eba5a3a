package service

import (
	"encoding/json"
	"errors"
	"lingopeer_backend/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePusher 记录所有下行消息，offline 集合里的用户投递失败
type fakePusher struct {
	mu      sync.Mutex
	sent    map[uint][]WSMessage
	offline map[uint]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		sent:    make(map[uint][]WSMessage),
		offline: make(map[uint]bool),
	}
}

func (p *fakePusher) Push(userID uint, msg WSMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offline[userID] {
		return false
	}
	p.sent[userID] = append(p.sent[userID], msg)
	return true
}

func (p *fakePusher) messagesFor(userID uint) []WSMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WSMessage(nil), p.sent[userID]...)
}

func (p *fakePusher) lastFor(userID uint) (WSMessage, bool) {
	msgs := p.messagesFor(userID)
	if len(msgs) == 0 {
		return WSMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

type fakeUserFinder struct {
	users map[uint]*model.User
}

func (f *fakeUserFinder) FindByID(id uint) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type fakeExerciseFinder struct {
	exercises map[uint]*model.Exercise
	modules   map[uint]*model.CourseModule
}

func (f *fakeExerciseFinder) FindExerciseByID(id uint) (*model.Exercise, error) {
	if ex, ok := f.exercises[id]; ok {
		return ex, nil
	}
	return nil, errors.New("exercise not found")
}

func (f *fakeExerciseFinder) FindModule(moduleID uint) (*model.CourseModule, error) {
	if m, ok := f.modules[moduleID]; ok {
		return m, nil
	}
	return nil, errors.New("module not found")
}

func newTestCoordinator(pusher *fakePusher, ttl time.Duration) *CallCoordinator {
	ex := &model.Exercise{
		ModuleID:        3,
		Index:           2,
		Kind:            model.LiveCall,
		Title:           "Practice call: Ordering at a Café",
		DurationMinutes: 10,
	}
	ex.ID = 30
	users := &fakeUserFinder{users: map[uint]*model.User{
		1: {Name: "Alice", Avatar: "/uploads/a.png"},
		2: {Name: "Bob", Avatar: "/uploads/b.png"},
		3: {Name: "Carol"},
	}}
	exercises := &fakeExerciseFinder{
		exercises: map[uint]*model.Exercise{30: ex},
		modules: map[uint]*model.CourseModule{
			3: {Topics: `["ordering food","small talk"]`},
		},
	}
	return NewCallCoordinator(pusher, users, exercises, nil, ttl)
}

func envelope(t *testing.T, msgType string, payload interface{}) Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Type: msgType, Data: raw}
}

func requestCall(t *testing.T, c *CallCoordinator, pusher *fakePusher, callerID, calleeID uint) string {
	t.Helper()
	c.HandleMessage(callerID, envelope(t, MsgCallRequest, CallRequestPayload{
		CalleeID:   calleeID,
		ExerciseID: 30,
	}))
	msg, ok := pusher.lastFor(calleeID)
	require.True(t, ok, "callee should receive call_request")
	require.Equal(t, MsgCallRequest, msg.Type)
	return msg.Data.(CallRequestNotice).RequestID
}

func connectCall(t *testing.T, c *CallCoordinator, pusher *fakePusher, callerID, calleeID uint) string {
	t.Helper()
	requestID := requestCall(t, c, pusher, callerID, calleeID)
	c.HandleMessage(calleeID, envelope(t, MsgCallAccept, CallAcceptPayload{RequestID: requestID}))
	session, ok := c.ActiveSessionOf(callerID)
	require.True(t, ok)
	return session.SessionID
}

func TestCallRequestCarriesExerciseMetadata(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestCall(t, c, pusher, 1, 2)

	msg, _ := pusher.lastFor(2)
	notice := msg.Data.(CallRequestNotice)
	assert.Equal(t, uint(1), notice.CallerID)
	assert.Equal(t, "Alice", notice.CallerName)
	assert.Equal(t, "/uploads/a.png", notice.CallerAvatar)
	assert.Equal(t, "Practice call: Ordering at a Café", notice.ExerciseTitle)
	assert.Equal(t, 10, notice.Duration)
	assert.Equal(t, []string{"ordering food", "small talk"}, notice.Topics)
	assert.Equal(t, 1, c.PendingRequestCount())
}

func TestCallRequestToOfflineCalleeBouncesBack(t *testing.T) {
	pusher := newFakePusher()
	pusher.offline[2] = true
	c := newTestCoordinator(pusher, time.Minute)

	c.HandleMessage(1, envelope(t, MsgCallRequest, CallRequestPayload{CalleeID: 2, ExerciseID: 30}))

	msg, ok := pusher.lastFor(1)
	require.True(t, ok)
	assert.Equal(t, MsgCallDeclined, msg.Type)
	assert.Equal(t, "offline", msg.Data.(CallDeclinedPayload).Reason)
	assert.Equal(t, 0, c.PendingRequestCount())
}

func TestAcceptCreatesSessionAndNotifiesBothSides(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	sessionID := connectCall(t, c, pusher, 1, 2)
	assert.Equal(t, 1, c.ActiveSessionCount())
	assert.Equal(t, 0, c.PendingRequestCount())

	callerMsg, _ := pusher.lastFor(1)
	require.Equal(t, MsgCallAccepted, callerMsg.Type)
	callerView := callerMsg.Data.(CallAcceptedPayload)
	assert.Equal(t, sessionID, callerView.SessionID)
	assert.Equal(t, uint(2), callerView.PartnerID)
	assert.Equal(t, "Bob", callerView.PartnerName)

	calleeMsg, _ := pusher.lastFor(2)
	require.Equal(t, MsgCallAccepted, calleeMsg.Type)
	calleeView := calleeMsg.Data.(CallAcceptedPayload)
	assert.Equal(t, sessionID, calleeView.SessionID)
	assert.Equal(t, uint(1), calleeView.PartnerID)
	assert.Equal(t, "Alice", calleeView.PartnerName)
}

func TestDeclineNotifiesCaller(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestID := requestCall(t, c, pusher, 1, 2)
	c.HandleMessage(2, envelope(t, MsgCallDecline, CallDeclinePayload{RequestID: requestID}))

	msg, _ := pusher.lastFor(1)
	assert.Equal(t, MsgCallDeclined, msg.Type)
	declined := msg.Data.(CallDeclinedPayload)
	assert.Equal(t, requestID, declined.RequestID)
	assert.Equal(t, "declined", declined.Reason)
	assert.Equal(t, 0, c.PendingRequestCount())
}

// 过期引用（已消费的 requestId）按无操作处理
func TestStaleAcceptAndDeclineAreNoOps(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestID := requestCall(t, c, pusher, 1, 2)
	c.HandleMessage(2, envelope(t, MsgCallDecline, CallDeclinePayload{RequestID: requestID}))

	before := len(pusher.messagesFor(1))
	c.HandleMessage(2, envelope(t, MsgCallAccept, CallAcceptPayload{RequestID: requestID}))
	c.HandleMessage(2, envelope(t, MsgCallDecline, CallDeclinePayload{RequestID: requestID}))
	assert.Len(t, pusher.messagesFor(1), before)
	assert.Equal(t, 0, c.ActiveSessionCount())
}

func TestAcceptFromNonCalleeIsIgnored(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestID := requestCall(t, c, pusher, 1, 2)
	c.HandleMessage(3, envelope(t, MsgCallAccept, CallAcceptPayload{RequestID: requestID}))

	assert.Equal(t, 0, c.ActiveSessionCount())
	assert.Equal(t, 1, c.PendingRequestCount())
}

// 一人同时至多一通：已在通话中的一方接受新邀请会被拒绝
func TestAcceptWhileBusyDeclinesWithBusyReason(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	connectCall(t, c, pusher, 1, 2)

	requestID := requestCall(t, c, pusher, 3, 2)
	c.HandleMessage(2, envelope(t, MsgCallAccept, CallAcceptPayload{RequestID: requestID}))

	assert.Equal(t, 1, c.ActiveSessionCount())
	msg, _ := pusher.lastFor(3)
	assert.Equal(t, MsgCallDeclined, msg.Type)
	assert.Equal(t, "busy", msg.Data.(CallDeclinedPayload).Reason)
}

func TestEndCallNotifiesBothAndPicksEvaluator(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	sessionID := connectCall(t, c, pusher, 1, 2)
	c.HandleMessage(2, envelope(t, MsgEndCall, EndCallPayload{SessionID: sessionID}))

	assert.Equal(t, 0, c.ActiveSessionCount())

	callerMsg, _ := pusher.lastFor(1)
	require.Equal(t, MsgCallEnded, callerMsg.Type)
	callerEnd := callerMsg.Data.(CallEndedPayload)
	// 默认策略：发起方负责评价对方
	assert.True(t, callerEnd.ShouldEvaluate)
	assert.Equal(t, uint(2), callerEnd.EvaluatedUserID)
	assert.Equal(t, "Bob", callerEnd.EvaluatedUserName)

	calleeMsg, _ := pusher.lastFor(2)
	require.Equal(t, MsgCallEnded, calleeMsg.Type)
	assert.False(t, calleeMsg.Data.(CallEndedPayload).ShouldEvaluate)
}

func TestEndCallIsIdempotent(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	sessionID := connectCall(t, c, pusher, 1, 2)
	c.HandleMessage(1, envelope(t, MsgEndCall, EndCallPayload{SessionID: sessionID}))

	before := len(pusher.messagesFor(2))
	c.HandleMessage(1, envelope(t, MsgEndCall, EndCallPayload{SessionID: sessionID}))
	c.HandleMessage(2, envelope(t, MsgEndCall, EndCallPayload{SessionID: sessionID}))
	assert.Len(t, pusher.messagesFor(2), before)
}

func TestEndCallFromOutsiderIsIgnored(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	sessionID := connectCall(t, c, pusher, 1, 2)
	c.HandleMessage(3, envelope(t, MsgEndCall, EndCallPayload{SessionID: sessionID}))

	assert.Equal(t, 1, c.ActiveSessionCount())
}

func TestCalleeEvaluatesPolicy(t *testing.T) {
	pusher := newFakePusher()
	users := &fakeUserFinder{users: map[uint]*model.User{
		1: {Name: "Alice"}, 2: {Name: "Bob"},
	}}
	exercises := &fakeExerciseFinder{
		exercises: map[uint]*model.Exercise{},
		modules:   map[uint]*model.CourseModule{},
	}
	c := NewCallCoordinator(pusher, users, exercises, CalleeEvaluates, time.Minute)

	requestID := requestCall(t, c, pusher, 1, 2)
	c.HandleMessage(2, envelope(t, MsgCallAccept, CallAcceptPayload{RequestID: requestID}))
	session, _ := c.ActiveSessionOf(1)
	c.HandleMessage(1, envelope(t, MsgEndCall, EndCallPayload{SessionID: session.SessionID}))

	calleeMsg, _ := pusher.lastFor(2)
	require.Equal(t, MsgCallEnded, calleeMsg.Type)
	assert.True(t, calleeMsg.Data.(CallEndedPayload).ShouldEvaluate)
	assert.Equal(t, uint(1), calleeMsg.Data.(CallEndedPayload).EvaluatedUserID)
}

func TestDisconnectEndsActiveSession(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	connectCall(t, c, pusher, 1, 2)
	c.HandleDisconnect(2)

	assert.Equal(t, 0, c.ActiveSessionCount())
	msg, _ := pusher.lastFor(1)
	assert.Equal(t, MsgCallEnded, msg.Type)
}

// 被叫掉线时，主叫挂起的邀请要收到 offline 回告
func TestDisconnectExpiresPendingRequests(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestID := requestCall(t, c, pusher, 1, 2)
	c.HandleDisconnect(2)

	assert.Equal(t, 0, c.PendingRequestCount())
	msg, _ := pusher.lastFor(1)
	assert.Equal(t, MsgCallDeclined, msg.Type)
	declined := msg.Data.(CallDeclinedPayload)
	assert.Equal(t, requestID, declined.RequestID)
	assert.Equal(t, "offline", declined.Reason)
}

// 主叫掉线时自己的邀请直接作废，不打扰被叫
func TestDisconnectDropsOwnOutgoingRequests(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestCall(t, c, pusher, 1, 2)
	before := len(pusher.messagesFor(2))
	c.HandleDisconnect(1)

	assert.Equal(t, 0, c.PendingRequestCount())
	assert.Len(t, pusher.messagesFor(2), before)
}

func TestExpireStaleRequestsSendsTimeout(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, 10*time.Millisecond)

	requestID := requestCall(t, c, pusher, 1, 2)
	time.Sleep(20 * time.Millisecond)
	c.ExpireStaleRequests()

	assert.Equal(t, 0, c.PendingRequestCount())
	msg, _ := pusher.lastFor(1)
	require.Equal(t, MsgCallTimeout, msg.Type)
	assert.Equal(t, requestID, msg.Data.(CallTimeoutPayload).RequestID)
}

func TestExpireStaleRequestsKeepsFreshOnes(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	requestCall(t, c, pusher, 1, 2)
	c.ExpireStaleRequests()

	assert.Equal(t, 1, c.PendingRequestCount())
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	pusher := newFakePusher()
	c := newTestCoordinator(pusher, time.Minute)

	c.HandleMessage(1, Envelope{Type: MsgCallRequest, Data: json.RawMessage(`{"calleeId":"oops"}`)})
	assert.Equal(t, 0, c.PendingRequestCount())
	assert.Empty(t, pusher.messagesFor(2))
}
