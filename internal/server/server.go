package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/nightspire/dungeonpulse/internal/config"
	"github.com/nightspire/dungeonpulse/internal/directory"
	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/world"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，生产环境需要限制
	},
}

// Server HTTP + WebSocket 服务器
type Server struct {
	config    *config.Config
	redis     *redis.Client
	directory *directory.Directory
	world     *world.Manager

	maxMessageSize int64

	clients   map[string]*Client
	clientsMu sync.RWMutex

	router *mux.Router
	http   *http.Server
}

// NewServer 创建服务器实例：连接 Redis、生成世界、装配路由
func NewServer(cfg *config.Config) (*Server, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	dir := directory.New(rdb)

	manager, err := world.NewManager(cfg.World.Seed, cfg.World.RoomLimit, cfg.World.PulseInterval(), dir)
	if err != nil {
		return nil, fmt.Errorf("生成世界失败: %w", err)
	}

	s := &Server{
		config:         cfg,
		redis:          rdb,
		directory:      dir,
		world:          manager,
		maxMessageSize: cfg.Server.MaxMessageSize,
		clients:        make(map[string]*Client),
	}
	s.router = s.buildRouter()

	logger.Log.Infof("🗺️ 世界已生成: 种子=%d 房间数=%d", manager.Seed(), manager.RoomCount())
	return s, nil
}

// World 世界管理器（测试与运维入口使用）
func (s *Server) World() *world.Manager {
	return s.world
}

// Handler 完整路由（测试用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动脉冲循环与 HTTP 服务，阻塞直到监听退出
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.world.Start()

	logger.Log.Infof("🚀 服务器启动在 http://%s", addr)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown 优雅关闭：停止脉冲循环、关闭监听、断开所有客户端、关闭 Redis
func (s *Server) Shutdown(ctx context.Context) {
	s.world.Stop()

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			logger.Log.Warnf("HTTP 关闭异常: %v", err)
		}
	}

	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	_ = s.redis.Close()
	logger.Log.Info("服务器已关闭")
}

// registerClient 注册连接。同一玩家的旧连接会被顶掉
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	old, ok := s.clients[client.playerID]
	s.clients[client.playerID] = client
	s.clientsMu.Unlock()

	if ok {
		logger.Log.Infof("🔁 玩家 %s 建立新连接，顶掉旧连接", client.username)
		old.Close()
	}
}

// handleDisconnect 连接断开时的清理。被新连接顶掉的旧连接断开时
// 玩家已换绑到新连接，此时不把玩家移出世界
func (s *Server) handleDisconnect(c *Client) {
	c.Close()

	s.clientsMu.Lock()
	current, ok := s.clients[c.playerID]
	if ok && current == c {
		delete(s.clients, c.playerID)
	}
	s.clientsMu.Unlock()

	if ok && current == c {
		s.world.PlayerDisconnected(c.playerID)
		logger.Log.Infof("❌ 玩家 %s 已断开", c.username)
	}
}

// OnlineCount 在线连接数
func (s *Server) OnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
