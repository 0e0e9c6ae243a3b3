package server

import (
	"sync/atomic"
)

// Metrics 记录运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount        int64 // 统计的 Tick 次数
	TotalTickNs      int64 // Tick 累计耗时（纳秒）
	IntentsApplied   int64 // 生效的移动意图
	IntentsIgnored   int64 // 因撞车/重置/玩家不存在被忽略的意图
	ProtocolErrors   int64 // 无法解析而丢弃的消息
	FramingErrors    int64 // 因帧越界关闭的连接
	Rejected         int64 // 因满员被拒绝的连接
	SnapshotsDropped int64 // 因发送队列满被丢弃的快照
	Recycled         int64 // 回收的障碍数
	Crashes          int64 // 撞车次数
	Resets           int64 // 重置命令数
}

func (m *Metrics) IncIntentsApplied()   { atomic.AddInt64(&m.IntentsApplied, 1) }
func (m *Metrics) IncIntentsIgnored()   { atomic.AddInt64(&m.IntentsIgnored, 1) }
func (m *Metrics) IncProtocolErrors()   { atomic.AddInt64(&m.ProtocolErrors, 1) }
func (m *Metrics) IncFramingErrors()    { atomic.AddInt64(&m.FramingErrors, 1) }
func (m *Metrics) IncRejected()         { atomic.AddInt64(&m.Rejected, 1) }
func (m *Metrics) IncSnapshotsDropped() { atomic.AddInt64(&m.SnapshotsDropped, 1) }
func (m *Metrics) IncResets()           { atomic.AddInt64(&m.Resets, 1) }

// AddTick 记录一次 Tick 的耗时与结果
func (m *Metrics) AddTick(ns int64, rep TickReport) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	atomic.AddInt64(&m.Recycled, int64(rep.Recycled))
	atomic.AddInt64(&m.Crashes, int64(len(rep.Crashed)))
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
		"intents_applied":   atomic.LoadInt64(&m.IntentsApplied),
		"intents_ignored":   atomic.LoadInt64(&m.IntentsIgnored),
		"protocol_errors":   atomic.LoadInt64(&m.ProtocolErrors),
		"framing_errors":    atomic.LoadInt64(&m.FramingErrors),
		"rejected":          atomic.LoadInt64(&m.Rejected),
		"snapshots_dropped": atomic.LoadInt64(&m.SnapshotsDropped),
		"recycled":          atomic.LoadInt64(&m.Recycled),
		"crashes":           atomic.LoadInt64(&m.Crashes),
		"resets":            atomic.LoadInt64(&m.Resets),
	}
}
