package world

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/protocol"
)

// 尽力而为持久化的单次写超时
const saveTimeout = 3 * time.Second

// 离线期间每分钟恢复最大生命值的 10%
const offlineHealFractionPerMinute = 0.1

// Saver 账户目录的保存边界。写失败只记录日志，绝不阻塞世界状态变更
type Saver interface {
	UpdatePlayerState(ctx context.Context, playerID string, roomID int, x, y float64, currentHP, maxHP int) error
}

// PlayerProfile 由账户记录映射来的玩家初始化参数。
// 不携带房间内坐标：入场落点只由出生规则决定
type PlayerProfile struct {
	PlayerID  string
	Username  string
	Avatar    int
	RoomID    int
	CurrentHP int
	MaxHP     int
	LastSaved time.Time
}

// Manager 持有房间图与在线玩家索引。整个世界只有一个互斥域：
// 脉冲循环、入站帧处理和 HTTP 请求都在同一把锁下读写共享状态，
// 因为一次移动要原子地改动两个房间的占用集合加上全局索引
type Manager struct {
	mu sync.Mutex

	seed      uint64
	roomLimit int

	rooms         map[int]*Room
	coordinates   map[Coordinate]*Room
	spawnRoom     *Room
	occupiedRooms map[int]*Room
	emptyRooms    map[int]*Room

	players map[string]*Player

	saver    Saver
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager 创建世界管理器并立即生成房间图（不做读时隐式生成）
func NewManager(seed uint64, roomLimit int, pulseInterval time.Duration, saver Saver) (*Manager, error) {
	m := &Manager{
		roomLimit: roomLimit,
		saver:     saver,
		interval:  pulseInterval,
		stop:      make(chan struct{}),
	}
	if err := m.Reset(seed); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset 按新种子整体重建世界。所有在线玩家会被清掉，需要重新初始化。
// 与脉冲循环共用同一把锁，重置期间不会有脉冲并发执行
func (m *Manager) Reset(seed uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := generate(seed, m.roomLimit)
	if err != nil {
		return err
	}

	m.seed = seed
	m.rooms = g.rooms
	m.coordinates = g.coordinates
	m.spawnRoom = g.rooms[0]
	m.players = make(map[string]*Player)
	m.occupiedRooms = make(map[int]*Room)
	m.emptyRooms = make(map[int]*Room, len(g.rooms))
	for id, room := range g.rooms {
		m.emptyRooms[id] = room
	}
	return nil
}

// Seed 当前世界种子
func (m *Manager) Seed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seed
}

// RoomCount 当前房间数（降级生成时可能小于目标值）
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// InitializePlayer 把账户对应的玩家放进世界：按离线时长回血，
// 回到上次保存的房间（请求重生或房间失效时回出生房间），出生点为房间正中
func (m *Manager) InitializePlayer(profile PlayerProfile, respawn bool) (*RoomChangeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player := &Player{
		PlayerID:  profile.PlayerID,
		Username:  profile.Username,
		Avatar:    profile.Avatar,
		CurrentHP: profile.CurrentHP,
		MaxHP:     profile.MaxHP,
		RoomID:    UnplacedRoomID,
	}

	// 离线回血：每离线一分钟恢复最大生命值的 10%
	if !profile.LastSaved.IsZero() {
		minutes := time.Since(profile.LastSaved).Minutes()
		if heal := int(minutes * offlineHealFractionPerMinute * float64(player.MaxHP)); heal > 0 {
			player.adjustHP(heal)
		}
	}

	// 同一身份重复初始化时先移除旧会话
	if old, ok := m.players[profile.PlayerID]; ok {
		m.removeFromRoom(old)
	}
	m.players[profile.PlayerID] = player

	target := m.spawnRoom
	if !respawn {
		if room, ok := m.rooms[profile.RoomID]; ok {
			target = room
		}
	}

	m.spawn(player, target, nil)
	m.persistAsync(player)

	return &RoomChangeInfo{
		CurrentRoom:        target.ID,
		SpawnLocation:      player.Location,
		OtherPlayersInRoom: target.otherPlayerIDs(player.PlayerID),
	}, nil
}

// MoveToRoom 把玩家移动到目标房间。目标 ID 未知返回 InvalidRoom，
// 目标房间与当前房间没有连通边返回 NotConnected
func (m *Manager) MoveToRoom(playerID string, targetRoomID int) (*RoomChangeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[playerID]
	if !ok {
		return nil, apperrors.ErrNotInWorld
	}
	target, ok := m.rooms[targetRoomID]
	if !ok {
		return nil, apperrors.ErrInvalidRoom
	}
	current, ok := m.rooms[player.RoomID]
	if !ok {
		return nil, apperrors.ErrNotConnected
	}

	fromDirection, ok := target.DirectionOf(current)
	if !ok {
		return nil, apperrors.ErrNotConnected
	}

	m.spawn(player, target, &fromDirection)
	m.persistAsync(player)

	return &RoomChangeInfo{
		CurrentRoom:        target.ID,
		FromDirection:      &fromDirection,
		SpawnLocation:      player.Location,
		OtherPlayersInRoom: target.otherPlayerIDs(playerID),
	}, nil
}

// PlayerDisconnected 把玩家移出房间与在线索引。断线通知可能乱序、
// 重复送达，重复调用是安全的空操作
func (m *Manager) PlayerDisconnected(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[playerID]
	if !ok {
		return
	}
	m.removeFromRoom(player)
	delete(m.players, playerID)
	m.persistAsync(player)
}

// AttachSink 给在线玩家绑定实时连接
func (m *Manager) AttachSink(playerID string, sink Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[playerID]
	if !ok {
		return apperrors.ErrNotInWorld
	}
	player.sink = sink
	return nil
}

// UpdatePosition 更新玩家位置与轨迹并尽力广播给房间内其他玩家。
// 未知玩家是空操作：断线与在途帧之间的竞态不应产生错误
func (m *Manager) UpdatePosition(playerID string, position Point, trajectory Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[playerID]
	if !ok {
		return
	}
	player.Location = position
	player.Trajectory = trajectory

	room, ok := m.rooms[player.RoomID]
	if !ok {
		return
	}
	m.broadcastToRoom(room, protocol.MagicPositionUpdate, protocol.PositionUpdatePayload{
		Position:   protocol.Point{X: position.X, Y: position.Y},
		Trajectory: protocol.Vector{DX: trajectory.DX, DY: trajectory.DY},
		PlayerID:   playerID,
	}, playerID)
}

// ResolveAttack 结算一次攻击：每个指向已知玩家的接触点按 -10*强度
// 调整其 HP（夹取到 [0, MaxHP]），然后把原始攻击事件广播给整个房间，
// 与单个接触点是否有效无关
func (m *Manager) ResolveAttack(attackerID string, contacts []protocol.AttackContact) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attacker, ok := m.players[attackerID]
	if !ok {
		return
	}
	room, ok := m.rooms[attacker.RoomID]
	if !ok {
		return
	}

	for _, contact := range contacts {
		victim, ok := m.players[contact.PlayerID]
		if !ok {
			continue
		}
		if delta := int(math.Round(-10 * contact.Strength)); delta != 0 {
			victim.adjustHP(delta)
			m.persistAsync(victim)
		}
	}

	m.broadcastToRoom(room, protocol.MagicPlayerAttack, protocol.AttackPayload{
		Attacker: attackerID,
		Contacts: contacts,
	}, "")
}

// Chat 把聊天消息广播给玩家所在房间；未知玩家是空操作
func (m *Manager) Chat(playerID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[playerID]
	if !ok {
		return
	}
	room, ok := m.rooms[player.RoomID]
	if !ok {
		return
	}
	m.broadcastToRoom(room, protocol.MagicChatMessage, protocol.ChatPayload{
		Message:  message,
		PlayerID: playerID,
	}, "")
}

// Start 启动脉冲广播循环
func (m *Manager) Start() {
	go m.pulseLoop()
}

// Stop 停止脉冲循环，可安全多次调用
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) pulseLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.pulse()
		}
	}
}

// pulse 单次脉冲：对每个有人的房间编码一帧占用者状态快照并推给
// 该房间的所有连接。没人的房间完全跳过；某个房间编码失败只影响
// 它自己这一轮
func (m *Manager) pulse() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, room := range m.occupiedRooms {
		states := make([]protocol.PulsePlayerState, 0, len(room.players))
		for _, p := range room.players {
			states = append(states, protocol.PulsePlayerState{
				PlayerID:   p.PlayerID,
				Position:   protocol.Point{X: p.Location.X, Y: p.Location.Y},
				Trajectory: protocol.Vector{DX: p.Trajectory.DX, DY: p.Trajectory.DY},
				CurrentHP:  p.CurrentHP,
				MaxHP:      p.MaxHP,
			})
		}

		frame, err := protocol.EncodeFrame(protocol.MagicPositionPulse, protocol.PulsePayload{Players: states})
		if err != nil {
			logger.Log.Errorf("⚠️ 房间 %d 脉冲编码失败，本轮跳过: %v", room.ID, err)
			continue
		}
		for _, p := range room.players {
			p.send(frame)
		}
	}
}

// spawn 把玩家放进目标房间：先移出当前房间，再加入目标房间并同步
// 占用集合；出生点由入场方向决定，轨迹清零。锁内调用
func (m *Manager) spawn(player *Player, room *Room, from *CardinalDirection) {
	m.removeFromRoom(player)

	room.addPlayer(player)
	m.syncOccupancy(room)

	player.Location = SpawnPosition(from)
	player.Trajectory = Vector{}
}

// removeFromRoom 把玩家移出其当前房间并同步占用集合；未放置时为空操作
func (m *Manager) removeFromRoom(player *Player) {
	room, ok := m.rooms[player.RoomID]
	if !ok {
		return
	}
	room.removePlayer(player.PlayerID)
	m.syncOccupancy(room)
	player.RoomID = UnplacedRoomID
}

// syncOccupancy 按房间占用状态在两个互斥集合之间原子移动
func (m *Manager) syncOccupancy(room *Room) {
	if room.Occupied() {
		delete(m.emptyRooms, room.ID)
		m.occupiedRooms[room.ID] = room
	} else {
		delete(m.occupiedRooms, room.ID)
		m.emptyRooms[room.ID] = room
	}
}

// broadcastToRoom 把一帧推给房间内除 exclude 外的所有玩家。
// 编码失败记录日志后放弃本次广播
func (m *Manager) broadcastToRoom(room *Room, magic protocol.Magic, payload any, exclude string) {
	frame, err := protocol.EncodeFrame(magic, payload)
	if err != nil {
		logger.Log.Errorf("⚠️ 房间 %d 广播 %s 编码失败: %v", room.ID, magic, err)
		return
	}
	for id, p := range room.players {
		if id == exclude {
			continue
		}
		p.send(frame)
	}
}

// persistAsync 状态变更后的尽力而为持久化：异步落盘，失败只记日志，
// 不阻塞变更路径。锁内调用，先拷贝快照再起协程
func (m *Manager) persistAsync(player *Player) {
	if m.saver == nil {
		return
	}

	playerID := player.PlayerID
	roomID := player.RoomID
	x, y := player.Location.X, player.Location.Y
	currentHP, maxHP := player.CurrentHP, player.MaxHP

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := m.saver.UpdatePlayerState(ctx, playerID, roomID, x, y, currentHP, maxHP); err != nil {
			logger.Log.Warnf("💾 持久化玩家 %s 状态失败: %v", playerID, err)
		}
	}()
}
