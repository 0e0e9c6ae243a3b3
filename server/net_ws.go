package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn WebSocket 自带消息边界：每条消息恰好一个 JSON 负载
type wsConn struct {
	ws          *websocket.Conn
	readTimeout time.Duration
}

func newWSConn(ws *websocket.Conn, max int, readTimeout time.Duration) *wsConn {
	ws.SetReadLimit(int64(max))
	return &wsConn{ws: ws, readTimeout: readTimeout}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, errors.Join(ErrFraming, err)
		}
		return nil, &TransportError{Op: "read", Err: err}
	}
	return payload, nil
}

func (c *wsConn) WriteFrame(payload []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Close 尽力发送关闭帧后关闭底层连接
func (c *wsConn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入，与 TCP 客户端共享会话表、容量与世界
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}
	s.serve(newWSConn(ws, s.cfg.MaxFrameBytes, s.cfg.ReadTimeout))
}
