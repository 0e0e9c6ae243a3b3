package server

import (
	"context"
	"sync/atomic"
	"time"
)

// LoopState 模拟循环状态：空闲时低频轮询 active，运行时按固定周期 Tick
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
)

func (s LoopState) String() string {
	if s == LoopRunning {
		return "running"
	}
	return "idle"
}

// Loop 单独协程推进世界：加锁 Tick → 解锁 → 取快照 → 锁外广播
type Loop struct {
	world   *World
	reg     *Registry
	metrics *Metrics
	sink    EventSink

	period time.Duration
	idle   time.Duration

	state atomic.Int32
	// 广播时发现已关闭的会话，下一轮由循环协程异步注销
	leaves chan PlayerID
}

func NewLoop(world *World, reg *Registry, period, idle time.Duration, metrics *Metrics, sink EventSink) *Loop {
	if sink == nil {
		sink = nopSink{}
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Loop{
		world:   world,
		reg:     reg,
		metrics: metrics,
		sink:    sink,
		period:  period,
		idle:    idle,
		leaves:  make(chan PlayerID, 64),
	}
}

func (l *Loop) State() LoopState { return LoopState(l.state.Load()) }

// Run 阻塞直到 ctx 取消；取消时当前 Tick 会先完成
func (l *Loop) Run(ctx context.Context) {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		l.processLeaves()

		if !l.world.Active() {
			if ticker != nil {
				ticker.Stop()
				ticker = nil
				l.setState(LoopIdle)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.idle):
			}
			continue
		}

		if ticker == nil {
			ticker = time.NewTicker(l.period)
			l.setState(LoopRunning)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Step()
		}
	}
}

// Step 执行一次完整 Tick 并广播快照
func (l *Loop) Step() TickReport {
	start := time.Now()
	rep := l.world.Tick(1)
	for _, id := range rep.Crashed {
		Log.Infow("player crashed", "player", id, "tick", rep.Tick)
	}
	l.broadcast(l.world.Snapshot())
	l.metrics.AddTick(time.Since(start).Nanoseconds(), rep)

	if rep.Recycled > 0 || len(rep.Crashed) > 0 {
		l.sink.Record(Event{Kind: EventTick, Tick: rep.Tick, Recycled: rep.Recycled, Crashed: rep.Crashed})
	}
	return rep
}

// broadcast 快照只编码一次；单个会话失败不影响其他会话
func (l *Loop) broadcast(snap Snapshot) {
	b, err := EncodeSnapshot(snap)
	if err != nil {
		Log.Errorw("encode snapshot", "tick", snap.Tick, "err", err)
		return
	}
	for _, s := range l.reg.Sessions() {
		switch err := s.Enqueue(b); err {
		case nil:
		case ErrQueueFull:
			l.metrics.IncSnapshotsDropped()
		default:
			l.requestLeave(s.ID)
		}
	}
}

// requestLeave 非阻塞；队列满时改为独立协程注销
func (l *Loop) requestLeave(id PlayerID) {
	select {
	case l.leaves <- id:
	default:
		go l.reg.Remove(id)
	}
}

func (l *Loop) processLeaves() {
	for {
		select {
		case id := <-l.leaves:
			if l.reg.Remove(id) {
				Log.Infow("session removed after failed send", "player", id)
			}
		default:
			return
		}
	}
}

func (l *Loop) setState(s LoopState) {
	if LoopState(l.state.Swap(int32(s))) != s {
		Log.Infow("simulation loop state changed", "state", s.String())
	}
}
