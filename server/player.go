package server

// PlayerID 服务端分配的玩家唯一标识（单调递增，不复用）
type PlayerID int64

// Player 世界内的玩家实体（服务端权威状态）
type Player struct {
	ID          PlayerID
	X           float64
	Y           float64
	Score       int
	Crashed     bool
	SpriteIndex int

	// 本 Tick 已重置：在下一次 Tick 之前忽略移动意图
	resetPending bool
}

// Obstacle 从屏幕顶部落下的障碍车；回收时原位替换
type Obstacle struct {
	ID          int64
	X           float64
	Y           float64
	Speed       float64
	SpriteIndex int
}

// rect 轴对齐包围盒
type rect struct {
	X, Y, W, H float64
}

// Intersects AABB 相交测试；纯函数，边缘相接不算碰撞
func (a rect) Intersects(b rect) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}
