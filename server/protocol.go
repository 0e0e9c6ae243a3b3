package server

import (
	"encoding/json"
	"fmt"
)

// 客户端 -> 服务端命令
const CommandReset = "reset"

const rejectedStatus = "rejected"

// Welcome 握手成功后第一条消息
// 示例：{"your_id":1}
type Welcome struct {
	YourID PlayerID `json:"your_id"`
}

// Rejected 满员时代替 Welcome 发送，随后关闭连接
type Rejected struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Snapshot 每个 Tick 广播给所有会话的世界快照（深拷贝，可跨协程传递）
type Snapshot struct {
	Tick       uint64                   `json:"tick"`
	Players    map[PlayerID]PlayerState `json:"players"`
	Obstacles  []ObstacleState          `json:"obstacles"`
	RoadOffset float64                  `json:"road_offset"`
	Active     bool                     `json:"active"`
}

type PlayerState struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Score       int     `json:"score"`
	Crashed     bool    `json:"crashed"`
	SpriteIndex int     `json:"sprite_index"`
}

type ObstacleState struct {
	ID          int64   `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	SpriteIndex int     `json:"sprite_index"`
}

// Intent 客户端移动意图（增量），只作用于发送者自己的玩家
type Intent struct {
	DX float64
	DY float64
}

// ClientMessage 解码后的入站消息：Command 非空时为命令，否则为 Intent
type ClientMessage struct {
	Command string
	Intent  Intent
}

// 入站 JSON 结构；兼容旧客户端的按键状态 {"left":true,...}
type clientPayload struct {
	Command *string  `json:"command"`
	DX      *float64 `json:"dx"`
	DY      *float64 `json:"dy"`
	Left    *bool    `json:"left"`
	Right   *bool    `json:"right"`
	Up      *bool    `json:"up"`
	Down    *bool    `json:"down"`
}

// DecodeClientMessage 解析一帧入站负载；任何解析失败都包装为 ErrProtocol。
// keyStep 为按键状态每个方向贡献的位移。
func DecodeClientMessage(b []byte, keyStep float64) (ClientMessage, error) {
	var p clientPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if p.Command != nil {
		if *p.Command != CommandReset {
			return ClientMessage{}, fmt.Errorf("%w: unknown command %q", ErrProtocol, *p.Command)
		}
		return ClientMessage{Command: *p.Command}, nil
	}
	if p.DX == nil && p.DY == nil && p.Left == nil && p.Right == nil && p.Up == nil && p.Down == nil {
		return ClientMessage{}, fmt.Errorf("%w: message carries no intent or command", ErrProtocol)
	}

	var in Intent
	if p.DX != nil {
		in.DX = *p.DX
	}
	if p.DY != nil {
		in.DY = *p.DY
	}
	if held(p.Left) {
		in.DX -= keyStep
	}
	if held(p.Right) {
		in.DX += keyStep
	}
	if held(p.Up) {
		in.DY -= keyStep
	}
	if held(p.Down) {
		in.DY += keyStep
	}
	return ClientMessage{Intent: in}, nil
}

func held(b *bool) bool { return b != nil && *b }

func EncodeWelcome(id PlayerID) ([]byte, error) {
	return json.Marshal(Welcome{YourID: id})
}

func EncodeRejected(msg string) ([]byte, error) {
	return json.Marshal(Rejected{Status: rejectedStatus, Message: msg})
}

func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}
