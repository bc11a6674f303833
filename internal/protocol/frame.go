package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MagicSize 帧头魔数宽度（字节）
const MagicSize = 4

// Magic 帧类型魔数，取 4 字节大端 FourCC
type Magic uint32

// 帧类型。客户端与服务端共用同一套魔数，
// 方向性写在各负载的注释里
const (
	MagicPositionPulse    Magic = 0x504C5345 // "PLSE" 服务端 → 房间占用者：位置/血量脉冲
	MagicPositionPulseAck Magic = 0x504C5341 // "PLSA" 客户端 → 服务端：脉冲应答（携带最新位置）
	MagicChatMessage      Magic = 0x43484154 // "CHAT" 双向：聊天
	MagicPlayerAttack     Magic = 0x4154434B // "ATCK" 双向：攻击事件
	MagicPositionUpdate   Magic = 0x504F5355 // "POSU" 双向：位置/轨迹变更
	MagicLatencyPing      Magic = 0x50494E47 // "PING" 客户端 → 服务端：RTT 探针，原样回送
)

func (m Magic) String() string {
	b := [MagicSize]byte{}
	binary.BigEndian.PutUint32(b[:], uint32(m))
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08X", uint32(m))
		}
	}
	return string(b[:])
}

// EncodeFrame 编码一帧：4 字节大端魔数 + JSON 负载
func EncodeFrame(magic Magic, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 负载失败: %w", magic, err)
	}

	frame := make([]byte, MagicSize, MagicSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(magic))
	return append(frame, body...), nil
}

// DecodeFrame 拆出帧的魔数与负载；不足一个魔数宽度的帧视为畸形帧
func DecodeFrame(frame []byte) (Magic, []byte, error) {
	if len(frame) < MagicSize {
		return 0, nil, fmt.Errorf("帧长度不足: %d 字节", len(frame))
	}
	return Magic(binary.BigEndian.Uint32(frame)), frame[MagicSize:], nil
}

// ParsePayload 解析负载到指定类型。解码失败由调用方记录日志并丢弃该帧，
// 绝不因畸形负载断开连接
func ParsePayload[T any](body []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
