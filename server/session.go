package server

import (
	"errors"
	"sync"
)

// ErrQueueFull 发送队列已满，本条消息被丢弃（会话保留）
var ErrQueueFull = errors.New("send queue full")

// FrameConn 一条按消息边界收发的连接（TCP 长度前缀帧或 WebSocket 消息）
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	Close() error
	RemoteAddr() string
}

// Session 连接与玩家身份的绑定；生命周期与一个 Player 完全重合
type Session struct {
	ID    PlayerID
	Trace string // 连接级 trace id，用于日志关联

	conn FrameConn

	mu     sync.Mutex
	send   chan []byte
	closed bool

	closeOnce sync.Once
	closeErr  error
}

func newSession(id PlayerID, trace string, conn FrameConn, queue int) *Session {
	return &Session{
		ID:    id,
		Trace: trace,
		conn:  conn,
		send:  make(chan []byte, queue),
	}
}

// Enqueue 将消息压入发送队列（非阻塞）。队列满返回 ErrQueueFull，
// 会话已关闭返回 ErrSessionClosed。
func (s *Session) Enqueue(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 关闭发送队列与底层连接；可重复调用
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()

	s.closeOnce.Do(func() { s.closeErr = s.conn.Close() })
	return s.closeErr
}

// Closed 会话是否已关闭
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// writePump 独立协程，按 FIFO 顺序写出队列中的消息；写失败即关闭连接，
// 读协程随之退出并完成注销
func (s *Session) writePump() {
	for msg := range s.send {
		if err := s.conn.WriteFrame(msg); err != nil {
			Log.Debugw("write failed, closing session", "player", s.ID, "conn", s.Trace, "err", err)
			_ = s.Close()
			for range s.send {
			}
			return
		}
	}
}
