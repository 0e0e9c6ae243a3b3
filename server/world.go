package server

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// World 共享的权威世界状态。所有读改写都在同一把锁内完成，
// 保证玩家表、active 标志与障碍池始终一致；锁内不做任何网络 IO。
type World struct {
	mu sync.Mutex

	cfg        WorldConfig
	spawner    *Spawner
	players    map[PlayerID]*Player
	obstacles  []Obstacle
	roadOffset float64
	active     bool
	tick       uint64
}

// TickReport 一次 Tick 的结果，供计数与事件日志使用
type TickReport struct {
	Tick     uint64
	Recycled int
	Crashed  []PlayerID
}

// NewWorld 创建世界并填充初始障碍池
func NewWorld(cfg WorldConfig, spawner *Spawner) *World {
	return &World{
		cfg:       cfg,
		spawner:   spawner,
		players:   make(map[PlayerID]*Player),
		obstacles: spawner.Populate(),
	}
}

// AddPlayer 在出生点创建玩家
func (w *World) AddPlayer(id PlayerID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.players[id]; ok {
		return fmt.Errorf("player %d already exists", id)
	}
	p := &Player{ID: id, SpriteIndex: w.spawner.PlayerSprite()}
	w.respawn(p)
	w.players[id] = p
	w.active = true
	return nil
}

// RemovePlayer 删除玩家；返回玩家是否存在
func (w *World) RemovePlayer(id PlayerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.players[id]; !ok {
		return false
	}
	delete(w.players, id)
	w.active = len(w.players) > 0
	return true
}

// ApplyIntent 对未撞车的玩家施加位移并裁剪到边界；返回是否生效
func (w *World) ApplyIntent(id PlayerID, in Intent) bool {
	if !finite(in.DX) || !finite(in.DY) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok || p.Crashed || p.resetPending {
		return false
	}
	p.X = clamp(p.X+in.DX, 0, w.cfg.Width-w.cfg.CarWidth)
	p.Y = clamp(p.Y+in.DY, 0, w.cfg.Height-w.cfg.CarHeight)
	return true
}

// Reset 重置位置、分数与撞车状态；同一 Tick 内随后到达的移动被忽略
func (w *World) Reset(id PlayerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return false
	}
	w.respawn(p)
	p.Score = 0
	p.Crashed = false
	p.resetPending = true
	return true
}

// Tick 推进一次世界：障碍下落与回收计分 → 碰撞检测 → 路面滚动
func (w *World) Tick(dt float64) TickReport {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	rep := TickReport{Tick: w.tick}

	for i := range w.obstacles {
		w.obstacles[i].Y += w.obstacles[i].Speed * dt
		if w.obstacles[i].Y <= w.cfg.Height {
			continue
		}
		w.spawner.Recycle(w.obstacles, i)
		rep.Recycled++
		// 集体计分：每回收一个障碍，所有未撞车玩家 +1
		for _, p := range w.players {
			if !p.Crashed {
				p.Score++
			}
		}
	}

	for _, id := range w.sortedIDs() {
		p := w.players[id]
		p.resetPending = false
		if p.Crashed {
			continue
		}
		car := rect{X: p.X, Y: p.Y, W: w.cfg.CarWidth, H: w.cfg.CarHeight}
		for _, o := range w.obstacles {
			if car.Intersects(rect{X: o.X, Y: o.Y, W: w.cfg.ObstacleWidth, H: w.cfg.ObstacleHeight}) {
				p.Crashed = true
				rep.Crashed = append(rep.Crashed, id)
				break
			}
		}
	}

	w.roadOffset = math.Mod(w.roadOffset+w.cfg.RoadStep*dt, w.cfg.Height)
	return rep
}

// Snapshot 返回深拷贝，可在锁外安全编码与广播
func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		Tick:       w.tick,
		Players:    make(map[PlayerID]PlayerState, len(w.players)),
		Obstacles:  make([]ObstacleState, 0, len(w.obstacles)),
		RoadOffset: w.roadOffset,
		Active:     w.active,
	}
	for id, p := range w.players {
		s.Players[id] = PlayerState{X: p.X, Y: p.Y, Score: p.Score, Crashed: p.Crashed, SpriteIndex: p.SpriteIndex}
	}
	for _, o := range w.obstacles {
		s.Obstacles = append(s.Obstacles, ObstacleState{ID: o.ID, X: o.X, Y: o.Y, SpriteIndex: o.SpriteIndex})
	}
	return s
}

func (w *World) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *World) PlayerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players)
}

// SpawnTuning 可热更新的障碍参数
type SpawnTuning struct {
	BaseSpeed   float64 `json:"base_speed"`
	SpeedJitter float64 `json:"speed_jitter"`
	RoadStep    float64 `json:"road_step"`
}

func (w *World) Tuning() SpawnTuning {
	w.mu.Lock()
	defer w.mu.Unlock()
	base, jitter := w.spawner.Tuning()
	return SpawnTuning{BaseSpeed: base, SpeedJitter: jitter, RoadStep: w.cfg.RoadStep}
}

// SetTuning 新速度只影响之后生成或回收的障碍
func (w *World) SetTuning(t SpawnTuning) error {
	if t.BaseSpeed <= 0 || t.SpeedJitter < 0 || t.RoadStep < 0 {
		return fmt.Errorf("invalid tuning: base_speed=%v speed_jitter=%v road_step=%v", t.BaseSpeed, t.SpeedJitter, t.RoadStep)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawner.SetTuning(t.BaseSpeed, t.SpeedJitter)
	w.cfg.RoadStep = t.RoadStep
	return nil
}

// respawn 回到出生点 (0.45w, 0.7h)
func (w *World) respawn(p *Player) {
	p.X = clamp(w.cfg.Width*0.45, 0, w.cfg.Width-w.cfg.CarWidth)
	p.Y = clamp(w.cfg.Height*0.7, 0, w.cfg.Height-w.cfg.CarHeight)
}

// 按 id 排序遍历，保证碰撞结果与 map 迭代顺序无关
func (w *World) sortedIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
