package server

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol 负载无法解析：丢弃该消息，连接保留
	ErrProtocol = errors.New("protocol error")
	// ErrFraming 长度前缀越界，流已不可信：立即关闭连接
	ErrFraming = errors.New("framing error")
	// ErrCapacity 会话数已达上限
	ErrCapacity = errors.New("server at capacity")
	// ErrSessionClosed 会话已关闭，不能再入队
	ErrSessionClosed = errors.New("session closed")
	// ErrServerClosed 服务端正在关闭，不再接受新会话
	ErrServerClosed = errors.New("server closed")
)

// TransportError 读写失败、对端重置或 EOF；只触发该会话的清理
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport 判断 err 是否为传输层错误
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
