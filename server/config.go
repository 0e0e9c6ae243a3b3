package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端全部可调参数；YAML 文件覆盖默认值，命令行再覆盖文件
type Config struct {
	Addr     string `yaml:"addr"`      // TCP 监听地址
	HTTPAddr string `yaml:"http_addr"` // WebSocket 网关 + 管理接口，为空则不启动

	MaxPlayers    int           `yaml:"max_players"`
	TickPeriod    time.Duration `yaml:"tick_period"`
	IdlePoll      time.Duration `yaml:"idle_poll"`
	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	SendQueue     int           `yaml:"send_queue"`
	ReadTimeout   time.Duration `yaml:"read_timeout"` // 0 表示不设读超时

	// Seed 为 0 时使用当前时间
	Seed int64 `yaml:"seed"`

	World WorldConfig `yaml:"world"`
	Log   LogConfig   `yaml:"log"`

	JournalDir string `yaml:"journal_dir"`
}

// WorldConfig 世界尺寸与障碍物参数（单位：像素，速度为每 Tick 像素）
type WorldConfig struct {
	Width           float64 `yaml:"width"`
	Height          float64 `yaml:"height"`
	CarWidth        float64 `yaml:"car_width"`
	CarHeight       float64 `yaml:"car_height"`
	ObstacleWidth   float64 `yaml:"obstacle_width"`
	ObstacleHeight  float64 `yaml:"obstacle_height"`
	ObstacleCount   int     `yaml:"obstacle_count"`
	BaseSpeed       float64 `yaml:"base_speed"`
	SpeedJitter     float64 `yaml:"speed_jitter"`
	LeadStep        float64 `yaml:"lead_step"`
	RoadStep        float64 `yaml:"road_step"`
	KeyStep         float64 `yaml:"key_step"`
	PlayerSprites   int     `yaml:"player_sprites"`
	ObstacleSprites int     `yaml:"obstacle_sprites"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

func DefaultConfig() Config {
	return Config{
		Addr:          "0.0.0.0:5555",
		HTTPAddr:      ":8080",
		MaxPlayers:    2,
		TickPeriod:    50 * time.Millisecond,
		IdlePoll:      100 * time.Millisecond,
		MaxFrameBytes: 64 << 10,
		SendQueue:     64,
		World:         DefaultWorldConfig(),
		Log:           LogConfig{Level: "debug"},
	}
}

func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Width:           1320,
		Height:          680,
		CarWidth:        77,
		CarHeight:       155,
		ObstacleWidth:   65,
		ObstacleHeight:  130,
		ObstacleCount:   3,
		BaseSpeed:       7,
		SpeedJitter:     6,
		LeadStep:        200,
		RoadStep:        8,
		KeyStep:         5,
		PlayerSprites:   2,
		ObstacleSprites: 5,
	}
}

// LoadConfig 读取 YAML 配置；path 为空时直接返回默认值
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: addr is required")
	case c.MaxPlayers <= 0:
		return fmt.Errorf("config: max_players must be > 0, got %d", c.MaxPlayers)
	case c.TickPeriod <= 0 || c.IdlePoll <= 0:
		return errors.New("config: tick_period and idle_poll must be > 0")
	case c.MaxFrameBytes <= 0:
		return fmt.Errorf("config: max_frame_bytes must be > 0, got %d", c.MaxFrameBytes)
	case c.SendQueue <= 0:
		return fmt.Errorf("config: send_queue must be > 0, got %d", c.SendQueue)
	case c.ReadTimeout < 0:
		return errors.New("config: read_timeout must be >= 0")
	}
	return c.World.Validate()
}

func (w WorldConfig) Validate() error {
	switch {
	case w.Width <= 0 || w.Height <= 0:
		return errors.New("config: world size must be positive")
	case w.CarWidth <= 0 || w.CarHeight <= 0 || w.CarWidth > w.Width || w.CarHeight > w.Height:
		return errors.New("config: car must be positive and fit inside the world")
	case w.ObstacleWidth <= 0 || w.ObstacleHeight <= 0 || w.ObstacleWidth > w.Width:
		return errors.New("config: obstacle must be positive and fit inside the world")
	case w.ObstacleCount <= 0:
		return errors.New("config: obstacle_count must be > 0")
	case w.BaseSpeed <= 0 || w.SpeedJitter < 0:
		return errors.New("config: base_speed must be > 0 and speed_jitter >= 0")
	case w.LeadStep < 0 || w.RoadStep < 0 || w.KeyStep < 0:
		return errors.New("config: lead_step, road_step and key_step must be >= 0")
	case w.PlayerSprites <= 0 || w.ObstacleSprites <= 0:
		return errors.New("config: sprite counts must be > 0")
	}
	return nil
}
