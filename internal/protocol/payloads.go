package protocol

// Point 房间内实数坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector 轨迹向量，供客户端做位置外推
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// PulsePlayerState 脉冲中单个占用者的实时状态
type PulsePlayerState struct {
	PlayerID   string `json:"player_id"`
	Position   Point  `json:"position"`
	Trajectory Vector `json:"trajectory"`
	CurrentHP  int    `json:"current_hp"`
	MaxHP      int    `json:"max_hp"`
}

// PulsePayload 位置脉冲（PLSE）：房间所有占用者的状态快照
type PulsePayload struct {
	Players []PulsePlayerState `json:"players"`
}

// PositionUpdatePayload 位置变更（POSU/PLSA）。
// 客户端上行时 PlayerID 为空，服务端转发给房间内其他玩家前填充
type PositionUpdatePayload struct {
	Position   Point  `json:"position"`
	Trajectory Vector `json:"trajectory"`
	PlayerID   string `json:"player_id,omitempty"`
}

// ChatPayload 聊天消息（CHAT）
type ChatPayload struct {
	Message  string `json:"message"`
	PlayerID string `json:"player_id,omitempty"`
}

// AttackContact 一次攻击命中的单个接触点
type AttackContact struct {
	PlayerID string  `json:"player_id"`
	Strength float64 `json:"strength"`
}

// AttackPayload 攻击事件（ATCK）。服务端原样转发给房间，
// 即使某些接触点指向未知玩家
type AttackPayload struct {
	Attacker string          `json:"attacker,omitempty"`
	Contacts []AttackContact `json:"contacts"`
}
