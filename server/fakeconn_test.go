package server

import (
	"errors"
	"io"
	"sync"
	"time"
)

// fakeConn 内存中的 FrameConn：in 通道喂入帧，写出的帧记录在 sent
type fakeConn struct {
	in   chan []byte
	sent chan []byte

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	failWrite bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		sent: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

func (f *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case b := <-f.in:
		return b, nil
	case <-f.done:
		return nil, &TransportError{Op: "read", Err: io.EOF}
	}
}

func (f *fakeConn) WriteFrame(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.failWrite {
		return &TransportError{Op: "write", Err: errors.New("broken pipe")}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent <- cp
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "fake" }

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// next 等待下一条写出的帧
func (f *fakeConn) next(timeout time.Duration) ([]byte, bool) {
	select {
	case b := <-f.sent:
		return b, true
	case <-time.After(timeout):
		return nil, false
	}
}
