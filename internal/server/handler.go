package server

import (
	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/protocol"
	"github.com/nightspire/dungeonpulse/internal/world"
)

// dispatchFrame 按魔数分发一帧入站消息。畸形帧记录日志后丢弃，
// 绝不因此断开连接
func (s *Server) dispatchFrame(c *Client, frame []byte) {
	magic, body, err := protocol.DecodeFrame(frame)
	if err != nil {
		logger.Log.Warnf("玩家 %s 发来畸形帧: %v", c.playerID, err)
		return
	}

	switch magic {
	case protocol.MagicLatencyPing:
		// RTT 探针原样回送，负载不做解析
		c.SendFrame(frame)

	case protocol.MagicPositionUpdate, protocol.MagicPositionPulseAck:
		// 脉冲应答携带客户端最新位置，与位置更新同样处理
		payload, err := protocol.ParsePayload[protocol.PositionUpdatePayload](body)
		if err != nil {
			logger.Log.Warnf("玩家 %s 的 %s 负载解析失败: %v", c.playerID, magic, err)
			return
		}
		s.world.UpdatePosition(c.playerID,
			world.Point{X: payload.Position.X, Y: payload.Position.Y},
			world.Vector{DX: payload.Trajectory.DX, DY: payload.Trajectory.DY})

	case protocol.MagicChatMessage:
		payload, err := protocol.ParsePayload[protocol.ChatPayload](body)
		if err != nil {
			logger.Log.Warnf("玩家 %s 的聊天负载解析失败: %v", c.playerID, err)
			return
		}
		s.world.Chat(c.playerID, payload.Message)

	case protocol.MagicPlayerAttack:
		payload, err := protocol.ParsePayload[protocol.AttackPayload](body)
		if err != nil {
			logger.Log.Warnf("玩家 %s 的攻击负载解析失败: %v", c.playerID, err)
			return
		}
		s.world.ResolveAttack(c.playerID, payload.Contacts)

	default:
		logger.Log.Warnf("玩家 %s 发来未知魔数 %s，丢弃", c.playerID, magic)
	}
}
