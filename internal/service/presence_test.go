package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func presenceClient(userID uint) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, 4)}
}

func sendClosed(ch chan []byte) bool {
	select {
	case _, ok := <-ch:
		return !ok
	default:
		return false
	}
}

func TestPresenceRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewPresenceRegistry()
	client := presenceClient(7)

	assert.False(t, registry.Register(7, client))

	got, ok := registry.Lookup(7)
	assert.True(t, ok)
	assert.Same(t, client, got)
	assert.Equal(t, 1, registry.Count())
}

func TestPresenceRegistry_ReconnectReplacesOldBinding(t *testing.T) {
	registry := NewPresenceRegistry()
	oldClient := presenceClient(7)
	newClient := presenceClient(7)

	registry.Register(7, oldClient)
	assert.True(t, registry.Register(7, newClient))
	assert.True(t, sendClosed(oldClient.Send), "replaced connection's channel should be closed")

	got, _ := registry.Lookup(7)
	assert.Same(t, newClient, got)
	assert.Equal(t, 1, registry.Count())
}

// 旧连接迟到的断开不能摘掉新连接
func TestPresenceRegistry_StaleUnregisterKeepsNewBinding(t *testing.T) {
	registry := NewPresenceRegistry()
	oldClient := presenceClient(7)
	newClient := presenceClient(7)

	registry.Register(7, oldClient)
	registry.Register(7, newClient)

	assert.False(t, registry.Unregister(oldClient))
	_, ok := registry.Lookup(7)
	assert.True(t, ok)

	assert.True(t, registry.Unregister(newClient))
	assert.True(t, sendClosed(newClient.Send))
	_, ok = registry.Lookup(7)
	assert.False(t, ok)
}

func TestPresenceRegistry_SendDeliversToBoundConnection(t *testing.T) {
	registry := NewPresenceRegistry()
	client := presenceClient(7)
	registry.Register(7, client)

	assert.True(t, registry.Send(7, []byte("hello")))
	assert.Equal(t, []byte("hello"), <-client.Send)

	assert.False(t, registry.Send(8, []byte("nobody")))
}

func TestPresenceRegistry_SendDropsWhenBufferFull(t *testing.T) {
	registry := NewPresenceRegistry()
	client := &Client{UserID: 7, Send: make(chan []byte, 1)}
	registry.Register(7, client)

	assert.True(t, registry.Send(7, []byte("a")))
	assert.True(t, registry.Send(7, []byte("b")))

	assert.Equal(t, []byte("a"), <-client.Send)
	select {
	case extra := <-client.Send:
		t.Fatalf("expected overflow frame to be dropped, got %q", extra)
	default:
	}
}

func TestPresenceRegistry_SendAll(t *testing.T) {
	registry := NewPresenceRegistry()
	first := presenceClient(1)
	second := presenceClient(2)
	registry.Register(1, first)
	registry.Register(2, second)

	registry.SendAll([]byte("everyone"))
	assert.Equal(t, []byte("everyone"), <-first.Send)
	assert.Equal(t, []byte("everyone"), <-second.Send)
}

// 重连替换与并发投递必须能同时发生而不写入已关闭的通道
func TestPresenceRegistry_ConcurrentSendAndReconnect(t *testing.T) {
	registry := NewPresenceRegistry()
	registry.Register(7, presenceClient(7))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			registry.Register(7, presenceClient(7))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			registry.Send(7, []byte("payload"))
			registry.SendAll([]byte("broadcast"))
		}
	}()
	wg.Wait()

	_, ok := registry.Lookup(7)
	assert.True(t, ok)
}

func TestPresenceRegistry_OnlineIDsSorted(t *testing.T) {
	registry := NewPresenceRegistry()
	for _, id := range []uint{42, 3, 17, 99, 1} {
		registry.Register(id, presenceClient(id))
	}
	assert.Equal(t, []uint{1, 3, 17, 42, 99}, registry.OnlineIDs())
}

func TestPresenceRegistry_Drain(t *testing.T) {
	registry := NewPresenceRegistry()
	first := presenceClient(1)
	second := presenceClient(2)
	registry.Register(1, first)
	registry.Register(2, second)

	drained := registry.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, registry.Count())
	assert.True(t, sendClosed(first.Send))
	assert.True(t, sendClosed(second.Send))
}
