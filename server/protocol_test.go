package server

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    ClientMessage
		wantErr bool
	}{
		{name: "delta", in: `{"dx":5,"dy":-2.5}`, want: ClientMessage{Intent: Intent{DX: 5, DY: -2.5}}},
		{name: "dx only", in: `{"dx":3}`, want: ClientMessage{Intent: Intent{DX: 3}}},
		{name: "reset", in: `{"command":"reset"}`, want: ClientMessage{Command: CommandReset}},
		{name: "command wins over delta", in: `{"command":"reset","dx":4}`, want: ClientMessage{Command: CommandReset}},
		{name: "held keys", in: `{"left":false,"right":true,"up":true,"down":false}`, want: ClientMessage{Intent: Intent{DX: 5, DY: -5}}},
		{name: "keys and delta add up", in: `{"dx":1,"left":true}`, want: ClientMessage{Intent: Intent{DX: -4}}},
		{name: "no keys held", in: `{"left":false,"right":false,"up":false,"down":false}`, want: ClientMessage{}},
		{name: "unknown command", in: `{"command":"fly"}`, wantErr: true},
		{name: "wrong type", in: `{"dx":"five"}`, wantErr: true},
		{name: "not an object", in: `[1,2]`, wantErr: true},
		{name: "truncated", in: `{"dx":`, wantErr: true},
		{name: "empty object", in: `{}`, wantErr: true},
		{name: "null", in: `null`, wantErr: true},
		{name: "empty payload", in: ``, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tc.in), 5)
			if tc.wantErr {
				if !errors.Is(err, ErrProtocol) {
					t.Fatalf("expected ErrProtocol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEncodeWelcomeAndRejected(t *testing.T) {
	b, err := EncodeWelcome(1)
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if string(b) != `{"your_id":1}` {
		t.Fatalf("welcome = %s", b)
	}

	b, err = EncodeRejected("server full")
	if err != nil {
		t.Fatalf("rejected: %v", err)
	}
	if string(b) != `{"status":"rejected","message":"server full"}` {
		t.Fatalf("rejected = %s", b)
	}
}

func TestEncodeSnapshotShape(t *testing.T) {
	s := Snapshot{
		Tick:       3,
		Players:    map[PlayerID]PlayerState{2: {X: 10, Y: 20, Score: 4, Crashed: true, SpriteIndex: 1}},
		Obstacles:  []ObstacleState{{ID: 7, X: 1, Y: -130, SpriteIndex: 4}},
		RoadOffset: 16,
		Active:     true,
	}
	b, err := EncodeSnapshot(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	players := raw["players"].(map[string]any)
	p := players["2"].(map[string]any)
	if p["crashed"] != true || p["score"].(float64) != 4 || p["sprite_index"].(float64) != 1 {
		t.Fatalf("player fields wrong: %v", p)
	}
	obs := raw["obstacles"].([]any)[0].(map[string]any)
	if obs["id"].(float64) != 7 || obs["y"].(float64) != -130 {
		t.Fatalf("obstacle fields wrong: %v", obs)
	}
	if _, ok := obs["speed"]; ok {
		t.Fatalf("speed is server-internal and must not be sent")
	}
	if raw["road_offset"].(float64) != 16 || raw["active"] != true {
		t.Fatalf("world fields wrong: %v", raw)
	}

	var back Snapshot
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if back.Players[2].Score != 4 {
		t.Fatalf("integer player keys should decode back, got %+v", back.Players)
	}
}
