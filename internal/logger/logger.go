package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局 SugaredLogger；Init 之前写日志是安全的空操作
var Log = zap.NewNop().Sugar()

// Init 初始化 zap 日志，同时输出到滚动文件与标准输出
// filePath: 日志文件路径，如 "logs/server.log"
func Init(filePath string, level zapcore.Level) {
	// 文件滚动策略：10MB 每文件，保留 3 个备份，最长 7 天
	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(lj), level),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	)

	Log = zap.New(core, zap.AddCaller()).Sugar()
}

// Sync 刷新日志缓冲
func Sync() {
	_ = Log.Sync()
}
