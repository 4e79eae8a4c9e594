// Package realtime 片单变更推送：进程内订阅中心以及 PostgreSQL LISTEN/NOTIFY 桥接。
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/user/movielist/internal/model"
)

// ErrHubClosed 订阅中心已关闭
var ErrHubClosed = errors.New("realtime hub closed")

// Change 已提交的片单变更，订阅方收到后应重新读取完整文档
type Change struct {
	Namespace string `json:"ns"`
	OwnerID   string `json:"owner"`
	ListID    string `json:"list"`
	Version   int64  `json:"version"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Owner 变更所属的所有者
func (c Change) Owner() model.Owner {
	return model.Owner{Namespace: c.Namespace, ID: c.OwnerID}
}

// Publisher 发布片单变更
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Subscription 单个订阅，C 的容量为 1，积压时只保留版本最新的一次变更
type Subscription struct {
	C <-chan Change

	mu     sync.Mutex
	ch     chan Change
	hub    *Hub
	key    string
	id     uint64
	listID string
	once   sync.Once
}

// Unsubscribe 取消订阅并关闭 C，可重复调用
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub 进程内订阅中心，按所有者分组
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*Subscription)}
}

func ownerKey(owner model.Owner) string {
	return owner.Namespace + "/" + owner.ID
}

// SubscribeDocument 订阅单个片单的变更
func (h *Hub) SubscribeDocument(owner model.Owner, listID string) (*Subscription, error) {
	return h.subscribe(owner, listID)
}

// SubscribeCollection 订阅所有者名下全部片单的变更
func (h *Hub) SubscribeCollection(owner model.Owner) (*Subscription, error) {
	return h.subscribe(owner, "")
}

func (h *Hub) subscribe(owner model.Owner, listID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	ch := make(chan Change, 1)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		hub:    h,
		key:    ownerKey(owner),
		id:     h.nextID,
		listID: listID,
	}
	group, ok := h.subs[sub.key]
	if !ok {
		group = make(map[uint64]*Subscription)
		h.subs[sub.key] = group
	}
	group[sub.id] = sub
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.subs[sub.key]
	if !ok {
		return
	}
	if _, ok := group[sub.id]; !ok {
		return
	}
	delete(group, sub.id)
	if len(group) == 0 {
		delete(h.subs, sub.key)
	}
	close(sub.ch)
}

// Publish 将变更投递给匹配的订阅，不会阻塞
func (h *Hub) Publish(_ context.Context, change Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	for _, sub := range h.subs[ownerKey(change.Owner())] {
		if sub.listID != "" && sub.listID != change.ListID {
			continue
		}
		sub.deliver(change)
	}
	return nil
}

// deliver 投递变更；积压的变更版本更新时保留积压的那一个
// 发布顺序与提交顺序不一定一致
func (s *Subscription) deliver(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.ch <- change:
		return
	default:
	}
	select {
	case pending := <-s.ch:
		if !supersedes(change, pending) {
			change = pending
		}
	default:
	}
	select {
	case s.ch <- change:
	default:
	}
}

// supersedes 判断 next 是否比 pending 更新；删除是终态
func supersedes(next, pending Change) bool {
	if next.ListID != pending.ListID {
		return true
	}
	if pending.Deleted {
		return false
	}
	return next.Deleted || next.Version >= pending.Version
}

// Subscribers 当前订阅数
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, group := range h.subs {
		n += len(group)
	}
	return n
}

// Close 关闭所有订阅，之后的订阅和发布都会失败
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for key, group := range h.subs {
		for _, sub := range group {
			close(sub.ch)
		}
		delete(h.subs, key)
	}
}
