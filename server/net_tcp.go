package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const writeTimeout = 5 * time.Second

// tcpConn 在 TCP 流上实现长度前缀帧
type tcpConn struct {
	c           net.Conn
	r           *bufio.Reader
	max         int
	readTimeout time.Duration
}

func newTCPConn(c net.Conn, max int, readTimeout time.Duration) *tcpConn {
	return &tcpConn{c: c, r: bufio.NewReader(c), max: max, readTimeout: readTimeout}
}

func (t *tcpConn) ReadFrame() ([]byte, error) {
	if t.readTimeout > 0 {
		_ = t.c.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
	return ReadFrame(t.r, t.max)
}

func (t *tcpConn) WriteFrame(payload []byte) error {
	_ = t.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return WriteFrame(t.c, payload, t.max)
}

func (t *tcpConn) Close() error       { return t.c.Close() }
func (t *tcpConn) RemoteAddr() string { return t.c.RemoteAddr().String() }

// Server 进程内唯一的游戏服务：TCP 监听、可选 HTTP（WebSocket 网关 + 管理接口）、模拟循环
type Server struct {
	cfg     Config
	world   *World
	reg     *Registry
	loop    *Loop
	metrics *Metrics
	journal *Journal

	ln      net.Listener
	httpLn  net.Listener
	httpSrv *http.Server

	cancel   context.CancelFunc
	loopDone chan struct{}
	conns    sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Server{cfg: cfg, metrics: &Metrics{}}

	var sink EventSink = nopSink{}
	if cfg.JournalDir != "" {
		s.journal = NewJournal(cfg.JournalDir)
		sink = s.journal
	}
	s.world = NewWorld(cfg.World, NewSpawner(cfg.World, seed))
	s.reg = NewRegistry(cfg.MaxPlayers, cfg.SendQueue, s.world, s.metrics, sink)
	s.loop = NewLoop(s.world, s.reg, cfg.TickPeriod, cfg.IdlePoll, s.metrics, sink)
	return s, nil
}

// Start 开始监听并启动模拟循环，立即返回
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	if s.cfg.HTTPAddr != "" {
		hl, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return err
		}
		s.httpLn = hl
		s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := s.httpSrv.Serve(hl); err != nil && err != http.ErrServerClosed {
				Log.Errorw("http serve", "err", err)
			}
		}()
		Log.Infof("http (ws + admin) listening on %s", hl.Addr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	go func() {
		defer close(s.loopDone)
		s.loop.Run(ctx)
	}()

	go s.acceptLoop()
	Log.Infof("game server listening on %s (max players %d)", ln.Addr(), s.cfg.MaxPlayers)
	return nil
}

// Addr TCP 实际监听地址
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// HTTPAddr HTTP 实际监听地址；未启用时为空
func (s *Server) HTTPAddr() string {
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

func (s *Server) World() *World       { return s.world }
func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Metrics() *Metrics   { return s.metrics }

// Shutdown 停止接入 → 等待当前 Tick 完成 → 关闭所有会话
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	var err error
	if s.ln != nil {
		err = multierr.Append(err, s.ln.Close())
	}
	if s.httpSrv != nil {
		err = multierr.Append(err, s.httpSrv.Shutdown(ctx))
	}
	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			err = multierr.Append(err, ctx.Err())
		}
	}
	err = multierr.Append(err, s.reg.CloseAll())

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}

	if s.journal != nil {
		err = multierr.Append(err, s.journal.Close())
	}
	Log.Info("server stopped")
	return err
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// track 登记一个连接协程；关闭开始后返回 false
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) acceptLoop() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			Log.Warnw("accept failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.track() {
			_ = c.Close()
			return
		}
		go func() {
			defer s.conns.Done()
			s.serve(newTCPConn(c, s.cfg.MaxFrameBytes, s.cfg.ReadTimeout))
		}()
	}
}

// serve 处理一条连接的完整生命周期：接入（或拒绝）→ 读循环 → 注销
func (s *Server) serve(fc FrameConn) {
	trace := uuid.NewString()
	sess, err := s.reg.Accept(fc, trace)
	if err != nil {
		if errors.Is(err, ErrCapacity) {
			Log.Infow("connection rejected: server full", "conn", trace, "remote", fc.RemoteAddr())
			if b, encErr := EncodeRejected("server full"); encErr == nil {
				_ = fc.WriteFrame(b)
			}
		} else {
			Log.Warnw("accept session", "conn", trace, "err", err)
		}
		_ = fc.Close()
		return
	}
	Log.Infow("player connected", "player", sess.ID, "conn", trace, "remote", fc.RemoteAddr())

	go sess.writePump()
	s.readLoop(sess)
	s.reg.Remove(sess.ID)
}

// readLoop 解码客户端消息并作用于 World；单条坏消息只丢弃，传输错误或帧越界则退出
func (s *Server) readLoop(sess *Session) {
	for {
		payload, err := sess.conn.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, ErrFraming):
				s.metrics.IncFramingErrors()
				Log.Warnw("framing violation, closing connection", "player", sess.ID, "conn", sess.Trace, "err", err)
			case sess.Closed():
				Log.Debugw("session closed", "player", sess.ID, "conn", sess.Trace)
			default:
				Log.Infow("player disconnected", "player", sess.ID, "conn", sess.Trace, "err", err)
			}
			return
		}

		msg, err := DecodeClientMessage(payload, s.cfg.World.KeyStep)
		if err != nil {
			s.metrics.IncProtocolErrors()
			Log.Warnw("dropping malformed message", "player", sess.ID, "conn", sess.Trace, "err", err)
			continue
		}
		s.apply(sess.ID, msg)
	}
}

func (s *Server) apply(id PlayerID, msg ClientMessage) {
	if msg.Command == CommandReset {
		if s.world.Reset(id) {
			s.metrics.IncResets()
			if s.journal != nil {
				s.journal.Record(Event{Kind: EventReset, Player: id})
			}
		}
		return
	}
	if s.world.ApplyIntent(id, msg.Intent) {
		s.metrics.IncIntentsApplied()
	} else {
		s.metrics.IncIntentsIgnored()
	}
}
