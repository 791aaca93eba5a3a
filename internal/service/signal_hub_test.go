package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCallHandler struct {
	messages    []Envelope
	senders     []uint
	disconnects []uint
}

func (f *fakeCallHandler) HandleMessage(senderID uint, env Envelope) {
	f.senders = append(f.senders, senderID)
	f.messages = append(f.messages, env)
}

func (f *fakeCallHandler) HandleDisconnect(userID uint) {
	f.disconnects = append(f.disconnects, userID)
}

// newTestHub 返回 hub、其呼叫处理器 fake，以及一个接收注册事件的通道
func newTestHub(t *testing.T) (*SignalHub, *fakeCallHandler, chan *Client) {
	t.Helper()
	handler := &fakeCallHandler{}
	hub := NewSignalHub(nil, NewPresenceRegistry(), nil)
	hub.SetCallHandler(handler)

	registered := make(chan *Client, 4)
	go func() {
		for c := range hub.register {
			registered <- c
		}
	}()
	return hub, handler, registered
}

func rawFrame(t *testing.T, msgType string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(map[string]json.RawMessage{
		"type": json.RawMessage(`"` + msgType + `"`),
		"data": data,
	})
	require.NoError(t, err)
	return frame
}

func hubClient(hub *SignalHub, userID uint) *Client {
	return &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
}

func TestHubAuthenticateBindsConnection(t *testing.T) {
	hub, _, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, rawFrame(t, MsgAuthenticate, AuthenticatePayload{UserID: 7}))

	assert.True(t, client.authenticated)
	select {
	case got := <-registered:
		assert.Same(t, client, got)
	case <-time.After(time.Second):
		t.Fatal("expected connection to be registered")
	}
}

// 消息体里的 userId 与握手身份不一致时按协议违例丢弃
func TestHubAuthenticateUserIDMismatchRejected(t *testing.T) {
	hub, handler, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, rawFrame(t, MsgAuthenticate, AuthenticatePayload{UserID: 8}))

	assert.False(t, client.authenticated)
	assert.Empty(t, registered)

	// 认证失败后呼叫消息仍被拦下
	hub.handleFrame(client, rawFrame(t, MsgCallRequest, CallRequestPayload{CalleeID: 9}))
	assert.Empty(t, handler.messages)
}

func TestHubDuplicateAuthenticateRegistersOnce(t *testing.T) {
	hub, _, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, rawFrame(t, MsgAuthenticate, AuthenticatePayload{UserID: 7}))
	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("expected first authenticate to register")
	}

	hub.handleFrame(client, rawFrame(t, MsgAuthenticate, AuthenticatePayload{UserID: 7}))
	assert.Empty(t, registered)
	assert.True(t, client.authenticated)
}

func TestHubMalformedAuthenticatePayloadRejected(t *testing.T) {
	hub, _, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, []byte(`{"type":"authenticate","data":"not-an-object"}`))

	assert.False(t, client.authenticated)
	assert.Empty(t, registered)
}

func TestHubDropsCallMessagesBeforeAuthenticate(t *testing.T) {
	hub, handler, _ := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, rawFrame(t, MsgCallRequest, CallRequestPayload{CalleeID: 9}))
	hub.handleFrame(client, rawFrame(t, MsgEndCall, map[string]string{"sessionId": "s1"}))

	assert.Empty(t, handler.messages)
}

func TestHubForwardsCallMessagesAfterAuthenticate(t *testing.T) {
	hub, handler, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, rawFrame(t, MsgAuthenticate, AuthenticatePayload{UserID: 7}))
	<-registered

	hub.handleFrame(client, rawFrame(t, MsgCallRequest, CallRequestPayload{CalleeID: 9}))

	require.Len(t, handler.messages, 1)
	assert.Equal(t, []uint{7}, handler.senders)
	assert.Equal(t, MsgCallRequest, handler.messages[0].Type)
}

// 帧不是合法 JSON 时丢弃，连接不受影响
func TestHubMalformedFrameIsDropped(t *testing.T) {
	hub, handler, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, []byte(`{"type":`))

	assert.False(t, client.authenticated)
	assert.Empty(t, registered)
	assert.Empty(t, handler.messages)
}

func TestHubIgnoresUnknownMessageType(t *testing.T) {
	hub, handler, registered := newTestHub(t)
	client := hubClient(hub, 7)

	hub.handleFrame(client, rawFrame(t, "dance", map[string]string{"move": "spin"}))

	assert.Empty(t, registered)
	assert.Empty(t, handler.messages)
}
