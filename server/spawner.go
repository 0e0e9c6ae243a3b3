package server

import "math/rand"

// Spawner 障碍物生命周期：生成、回收时的位置/速度/贴图随机化。
// 自带计数器与随机源，可用固定种子构造以便测试复现；非并发安全，由 World 的锁保护。
type Spawner struct {
	cfg    WorldConfig
	rng    *rand.Rand
	nextID int64
}

func NewSpawner(cfg WorldConfig, seed int64) *Spawner {
	return &Spawner{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Spawn 生成下一个障碍物；lead 为额外的上方偏移，让启动时的一批障碍错开入场
func (s *Spawner) Spawn(lead float64) Obstacle {
	s.nextID++
	return Obstacle{
		ID:          s.nextID,
		X:           s.rng.Float64() * (s.cfg.Width - s.cfg.ObstacleWidth),
		Y:           -s.cfg.ObstacleHeight - lead,
		Speed:       s.cfg.BaseSpeed + s.rng.Float64()*s.cfg.SpeedJitter,
		SpriteIndex: s.rng.Intn(s.cfg.ObstacleSprites),
	}
}

// Populate 启动时填充固定数量的障碍池，lead 依次递增
func (s *Spawner) Populate() []Obstacle {
	out := make([]Obstacle, s.cfg.ObstacleCount)
	for i := range out {
		out[i] = s.Spawn(float64(i) * s.cfg.LeadStep)
	}
	return out
}

// Recycle 原位替换越过底部的障碍物，池大小不变
func (s *Spawner) Recycle(pool []Obstacle, i int) {
	pool[i] = s.Spawn(0)
}

// PlayerSprite 新玩家的随机贴图
func (s *Spawner) PlayerSprite() int {
	return s.rng.Intn(s.cfg.PlayerSprites)
}

// Tuning 热更新障碍速度参数（由 World 加锁调用）
func (s *Spawner) Tuning() (base, jitter float64) {
	return s.cfg.BaseSpeed, s.cfg.SpeedJitter
}

func (s *Spawner) SetTuning(base, jitter float64) {
	s.cfg.BaseSpeed = base
	s.cfg.SpeedJitter = jitter
}
