package service

import (
	"sort"
	"sync"
)

const presenceShardCount = 32

type presenceShard struct {
	clients map[uint]*Client
	mu      sync.RWMutex
}

// PresenceRegistry 维护 userId -> 活跃连接 的进程内映射。
// 只有连接/认证/断开事件可以写入；进程重启后从零重建，在线状态只作尽力而为。
//
// Send 通道的关闭必须与投递持有同一把分片锁：投递在读锁内进行，
// 关闭在写锁内进行，否则并发投递可能写入已关闭的通道。
type PresenceRegistry struct {
	shards [presenceShardCount]*presenceShard
}

func NewPresenceRegistry() *PresenceRegistry {
	r := &PresenceRegistry{}
	for i := 0; i < presenceShardCount; i++ {
		r.shards[i] = &presenceShard{
			clients: make(map[uint]*Client),
		}
	}
	return r
}

func (r *PresenceRegistry) shard(userID uint) *presenceShard {
	return r.shards[userID%presenceShardCount]
}

// Register 绑定用户与连接。同一用户重连时旧连接在锁内被关闭并替换，
// 返回是否发生了替换
func (r *PresenceRegistry) Register(userID uint, client *Client) (replaced bool) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.clients[userID]; ok && prev != client {
		close(prev.Send)
		replaced = true
	}
	s.clients[userID] = client
	return replaced
}

// Unregister 仅当当前绑定仍是该连接时才移除并关闭（避免重连后误删新连接）
func (r *PresenceRegistry) Unregister(client *Client) bool {
	if client == nil {
		return false
	}
	s := r.shard(client.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.clients[client.UserID]; ok && cur == client {
		delete(s.clients, client.UserID)
		close(client.Send)
		return true
	}
	return false
}

func (r *PresenceRegistry) Lookup(userID uint) (*Client, bool) {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[userID]
	return client, ok
}

// Send 向指定用户的连接投递一帧，慢消费者直接丢帧。目标不在本实例返回 false
func (r *PresenceRegistry) Send(userID uint, payload []byte) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[userID]
	if !ok {
		return false
	}
	select {
	case client.Send <- payload:
	default:
	}
	return true
}

// SendAll 向本实例全部连接投递一帧
func (r *PresenceRegistry) SendAll(payload []byte) {
	for i := 0; i < presenceShardCount; i++ {
		s := r.shards[i]
		s.mu.RLock()
		for _, client := range s.clients {
			select {
			case client.Send <- payload:
			default:
			}
		}
		s.mu.RUnlock()
	}
}

func (r *PresenceRegistry) OnlineIDs() []uint {
	var ids []uint
	for i := 0; i < presenceShardCount; i++ {
		s := r.shards[i]
		s.mu.RLock()
		for userID := range s.clients {
			ids = append(ids, userID)
		}
		s.mu.RUnlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Drain 关闭并移除全部连接，返回受影响的用户，用于进程停机
func (r *PresenceRegistry) Drain() []uint {
	var userIDs []uint
	for i := 0; i < presenceShardCount; i++ {
		s := r.shards[i]
		s.mu.Lock()
		for userID, client := range s.clients {
			userIDs = append(userIDs, userID)
			close(client.Send)
			delete(s.clients, userID)
		}
		s.mu.Unlock()
	}
	return userIDs
}

func (r *PresenceRegistry) Count() int {
	count := 0
	for i := 0; i < presenceShardCount; i++ {
		s := r.shards[i]
		s.mu.RLock()
		count += len(s.clients)
		s.mu.RUnlock()
	}
	return count
}
