package server

import (
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Registry 管理会话：接入、分配 id、容量限制与注销。
// 会话表与 World 中玩家的增删在 r.mu 内串行完成（锁顺序：Registry → World），
// 因此玩家数与 active 不会被观察到半更新状态。
type Registry struct {
	mu       sync.Mutex
	max      int
	queue    int
	nextID   PlayerID
	sessions map[PlayerID]*Session
	closed   bool

	world   *World
	metrics *Metrics
	sink    EventSink
}

func NewRegistry(max, queue int, world *World, metrics *Metrics, sink EventSink) *Registry {
	if sink == nil {
		sink = nopSink{}
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Registry{
		max:      max,
		queue:    queue,
		sessions: make(map[PlayerID]*Session),
		world:    world,
		metrics:  metrics,
		sink:     sink,
	}
}

// Accept 为连接分配新 id 并在 World 中创建玩家。Welcome 在会话对广播可见之前入队，
// 保证它是客户端收到的第一条消息。满员返回 ErrCapacity，不创建玩家。
func (r *Registry) Accept(conn FrameConn, trace string) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrServerClosed
	}
	if len(r.sessions) >= r.max {
		r.mu.Unlock()
		r.metrics.IncRejected()
		return nil, ErrCapacity
	}

	r.nextID++
	id := r.nextID
	welcome, err := EncodeWelcome(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	s := newSession(id, trace, conn, r.queue)
	if err := s.Enqueue(welcome); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := r.world.AddPlayer(id); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.sink.Record(Event{Kind: EventJoin, Player: id})
	return s, nil
}

// Remove 注销会话与玩家并关闭连接；重复调用无副作用，返回会话是否存在
func (r *Registry) Remove(id PlayerID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.world.RemovePlayer(id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	_ = s.Close()
	r.sink.Record(Event{Kind: EventLeave, Player: id})
	return true
}

// Sessions 当前会话的副本（按 id 排序），用于锁外广播
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll 关闭全部会话并拒绝之后的接入
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
		r.world.RemovePlayer(id)
	}
	r.mu.Unlock()

	var err error
	for _, s := range all {
		err = multierr.Append(err, s.Close())
	}
	return err
}
