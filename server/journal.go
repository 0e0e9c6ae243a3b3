package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// 事件类型
const (
	EventJoin  = "join"
	EventLeave = "leave"
	EventReset = "reset"
	EventTick  = "tick"
)

// Event 一条事件日志；只写不读，重启后不恢复
type Event struct {
	TS       string     `json:"ts"`
	Kind     string     `json:"kind"`
	Tick     uint64     `json:"tick,omitempty"`
	Player   PlayerID   `json:"player,omitempty"`
	Recycled int        `json:"recycled,omitempty"`
	Crashed  []PlayerID `json:"crashed,omitempty"`
}

// EventSink 接收会话与 Tick 事件
type EventSink interface {
	Record(Event)
}

type nopSink struct{}

func (nopSink) Record(Event) {}

// Journal 按小时滚动的 zstd 压缩 JSONL 事件日志
type Journal struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJournal(baseDir string) *Journal {
	return &Journal{baseDir: baseDir, prefix: "events", now: time.Now}
}

// Record 写入失败只记日志，不影响模拟
func (j *Journal) Record(e Event) {
	if e.TS == "" {
		e.TS = j.now().UTC().Format(time.RFC3339Nano)
	}
	if err := j.write(e); err != nil {
		Log.Warnw("journal write failed", "kind", e.Kind, "err", err)
	}
}

func (j *Journal) write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	return err
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}
