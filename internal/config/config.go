package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	World  WorldConfig  `yaml:"world"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig HTTP/WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxMessageSize int64  `yaml:"max_message_size"` // 单帧最大字节数
}

// RedisConfig Redis 配置（用户目录存储）
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorldConfig 地牢世界配置
type WorldConfig struct {
	RoomLimit       int    `yaml:"room_limit"`        // 目标房间数
	Seed            uint64 `yaml:"seed"`              // 世界种子，0 表示按启动时间取种子
	PulseIntervalMS int    `yaml:"pulse_interval_ms"` // 脉冲广播间隔（毫秒）
}

// LogConfig 日志配置
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"` // debug/info/warn/error
}

// PulseInterval 返回脉冲广播间隔
func (c *WorldConfig) PulseInterval() time.Duration {
	return time.Duration(c.PulseIntervalMS) * time.Millisecond
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults 填充未设置的配置项
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8071
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = 4096
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.World.RoomLimit == 0 {
		c.World.RoomLimit = 100
	}
	if c.World.PulseIntervalMS == 0 {
		c.World.PulseIntervalMS = 333
	}
	if c.Log.File == "" {
		c.Log.File = "logs/server.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
