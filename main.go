package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"watchout/server"
)

// Watch Out 多人服务端入口：TCP 游戏端口 + 可选 HTTP（WebSocket 网关、管理接口）
func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (optional)")
		addr       = flag.String("addr", "", "tcp listen address, e.g. 0.0.0.0:5555")
		httpAddr   = flag.String("http", "", "http listen address for /ws and admin endpoints; \"off\" disables")
		maxPlayers = flag.Int("max-players", 0, "maximum concurrent players")
		seed       = flag.Int64("seed", 0, "random seed (0 = time based)")
		logFile    = flag.String("log", "", "log file path (rotated); stderr when empty")
		logLevel   = flag.String("log-level", "", "debug|info|warn|error")
		journalDir = flag.String("journal", "", "directory for the compressed event journal")
	)
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	// 命令行只覆盖显式给出的参数
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "http":
			cfg.HTTPAddr = *httpAddr
			if *httpAddr == "off" {
				cfg.HTTPAddr = ""
			}
		case "max-players":
			cfg.MaxPlayers = *maxPlayers
		case "seed":
			cfg.Seed = *seed
		case "log":
			cfg.Log.File = *logFile
		case "log-level":
			cfg.Log.Level = *logLevel
		case "journal":
			cfg.JournalDir = *journalDir
		}
	})

	if err := server.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer server.SyncLogger()

	srv, err := server.NewServer(cfg)
	if err != nil {
		server.Log.Fatalf("server: %v", err)
	}
	if err := srv.Start(); err != nil {
		server.Log.Fatalf("listen: %v", err)
	}

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnw("shutdown", "err", err)
	}
}
