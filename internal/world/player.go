package world

// UnplacedRoomID 玩家尚未被放进任何房间时的哨兵值
const UnplacedRoomID = -1

// Sink 玩家实时连接的发送端。写入必须尽力而为且绝不阻塞：
// 迟缓或已死的连接不能拖住脉冲循环或其他玩家的操作
type Sink interface {
	SendFrame(frame []byte)
}

// Player 在线玩家的会话状态，生命周期与连接一致。
// 持久身份与落盘状态由账户记录承载，这里只是运行时镜像
type Player struct {
	PlayerID string
	Username string
	Avatar   int

	Location   Point
	Trajectory Vector
	CurrentHP  int
	MaxHP      int
	RoomID     int

	sink Sink
}

// adjustHP 按增量调整 HP 并夹取到 [0, MaxHP]
func (p *Player) adjustHP(delta int) {
	hp := p.CurrentHP + delta
	if hp < 0 {
		hp = 0
	}
	if hp > p.MaxHP {
		hp = p.MaxHP
	}
	p.CurrentHP = hp
}

// send 尽力而为地向玩家的连接推送一帧；没有连接时静默丢弃
func (p *Player) send(frame []byte) {
	if p.sink != nil {
		p.sink.SendFrame(frame)
	}
}
