package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nightspire/dungeonpulse/internal/logger"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 发送缓冲帧数
	sendBufferSize = 256
)

// Client 一条已绑定玩家身份的实时连接
type Client struct {
	playerID string
	username string

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
}

func newClient(s *Server, conn *websocket.Conn, playerID, username string) *Client {
	return &Client{
		playerID: playerID,
		username: username,
		server:   s,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
}

// readPump 从 WebSocket 读取二进制帧并逐帧分发
func (c *Client) readPump() {
	defer func() {
		c.server.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.server.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warnf("读取错误: %v", err)
			}
			break
		}
		c.server.dispatchFrame(c, frame)
	}
}

// writePump 把发送缓冲写入 WebSocket，附带 ping 保活
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendFrame 尽力把一帧推给客户端：缓冲满时丢弃连接而不是阻塞世界状态变更。
// 读锁必须覆盖整个入队操作，Close 的写锁才能与之互斥，
// 不会在判空后、入队前关掉通道
func (c *Client) SendFrame(frame []byte) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}

	select {
	case c.send <- frame:
		c.mu.RUnlock()
	default:
		c.mu.RUnlock()
		// 发送缓冲区已满，关闭连接
		logger.Log.Warnf("客户端 %s 发送缓冲区已满", c.playerID)
		c.Close()
	}
}

// Close 关闭客户端连接，可安全重复调用
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
