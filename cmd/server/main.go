package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/nightspire/dungeonpulse/internal/config"
	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Default()
	}

	level, parseErr := zapcore.ParseLevel(cfg.Log.Level)
	if parseErr != nil {
		level = zapcore.InfoLevel
	}
	logger.Init(cfg.Log.File, level)
	defer logger.Sync()

	if err != nil {
		logger.Log.Warnf("加载配置文件失败，使用默认配置: %v", err)
	}

	// 种子为 0 时按启动时间取种子
	if cfg.World.Seed == 0 {
		cfg.World.Seed = uint64(time.Now().UnixNano())
		logger.Log.Infof("🎲 使用启动时间作为世界种子: %d", cfg.World.Seed)
	}

	// 创建服务器
	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Log.Fatalf("创建服务器失败: %v", err)
	}

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Log.Info("正在关闭服务器...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		logger.Sync()
		os.Exit(0)
	}()

	// 启动服务器
	logger.Log.Info("🏰 地牢服务器启动中...")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("服务器启动失败: %v", err)
	}
}
