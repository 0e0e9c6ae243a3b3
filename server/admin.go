package server

import (
	"encoding/json"
	"net/http"
)

// Handler HTTP 路由：WebSocket 网关与管理、监控接口
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/state", s.HandleState)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleAdminConfig 障碍参数的读取与热更新
// GET  /admin/config  返回当前参数
// POST /admin/config  以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		BaseSpeed   *float64 `json:"base_speed,omitempty"`
		SpeedJitter *float64 `json:"speed_jitter,omitempty"`
		RoadStep    *float64 `json:"road_step,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.world.Tuning())
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		t := s.world.Tuning()
		if body.BaseSpeed != nil {
			t.BaseSpeed = *body.BaseSpeed
		}
		if body.SpeedJitter != nil {
			t.SpeedJitter = *body.SpeedJitter
		}
		if body.RoadStep != nil {
			t.RoadStep = *body.RoadStep
		}
		if err := s.world.SetTuning(t); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		Log.Infof("tuning updated: base_speed=%.2f speed_jitter=%.2f road_step=%.2f", t.BaseSpeed, t.SpeedJitter, t.RoadStep)
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"loop":     s.loop.State().String(),
		"sessions": s.reg.Len(),
		"metrics":  s.metrics.Snapshot(),
	})
}

// HandleState 输出当前世界快照（与广播内容一致）
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.world.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
