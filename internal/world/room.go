package world

import (
	"fmt"
	"slices"
)

// 房间内部为正方形，坐标取值 [0, RoomSize)；门位于四面墙的中点
const (
	RoomSize float64 = 1600
	RoomMid  float64 = RoomSize / 2
)

// DoorPosition 返回指定方向墙面中点的门位置
func DoorPosition(d CardinalDirection) Point {
	switch d {
	case North:
		return Point{RoomMid, RoomSize}
	case South:
		return Point{RoomMid, 0}
	case East:
		return Point{RoomSize, RoomMid}
	default:
		return Point{0, RoomMid}
	}
}

// SpawnPosition 玩家入场点：无入场方向时为房间正中，
// 否则为入场方向对侧墙的门位置（从东侧进入的玩家出现在西墙）
func SpawnPosition(from *CardinalDirection) Point {
	if from == nil {
		return Point{RoomMid, RoomMid}
	}
	return DoorPosition(from.Opposite())
}

// Room 地牢房间：按方向的邻接关系、占用者集合与惰性生成的摆设。
// 生成期之后的一切变更都发生在 Manager 的互斥域内，Room 自身不加锁
type Room struct {
	ID       int
	Name     string
	Position Coordinate

	neighbors map[CardinalDirection]*Room
	players   map[string]*Player
	occupied  bool

	doodadSeed   uint64
	doodads      []Doodad
	doodadsReady bool
}

func newRoom(id int, pos Coordinate, name string, doodadSeed uint64) *Room {
	return &Room{
		ID:         id,
		Name:       name,
		Position:   pos,
		neighbors:  make(map[CardinalDirection]*Room),
		players:    make(map[string]*Player),
		doodadSeed: doodadSeed,
	}
}

// Connect 沿 direction 把本房间连接到 other，并同时建立反向边。
// 同一方向的边只能建立一次：重复连接意味着拓扑已经损坏，操作必须中止
func (r *Room) Connect(other *Room, direction CardinalDirection) error {
	if existing := r.neighbors[direction]; existing != nil {
		return fmt.Errorf("房间 %q(%d) 在 %s 方向已连接到 %q(%d)",
			r.Name, r.ID, direction, existing.Name, existing.ID)
	}

	r.neighbors[direction] = other
	if other.neighbors[direction.Opposite()] != r {
		return other.Connect(r, direction.Opposite())
	}
	return nil
}

// Neighbor 返回指定方向的相邻房间，未连接时为 nil
func (r *Room) Neighbor(d CardinalDirection) *Room {
	return r.neighbors[d]
}

// DirectionOf 返回 other 相对本房间的连接方向
func (r *Room) DirectionOf(other *Room) (CardinalDirection, bool) {
	for _, d := range Directions {
		if r.neighbors[d] == other {
			return d, true
		}
	}
	return 0, false
}

// ConnectedDirections 已连接的方向，按固定顺序
func (r *Room) ConnectedDirections() []CardinalDirection {
	dirs := make([]CardinalDirection, 0, len(r.neighbors))
	for _, d := range Directions {
		if r.neighbors[d] != nil {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Occupied 房间内是否有玩家
func (r *Room) Occupied() bool {
	return r.occupied
}

// addPlayer 将玩家计入占用集合并惰性生成摆设；在 Manager 锁内调用
func (r *Room) addPlayer(p *Player) {
	r.players[p.PlayerID] = p
	p.RoomID = r.ID
	r.occupied = true
	r.ensureDoodads()
}

// removePlayer 将玩家移出占用集合；玩家不在房间内时为空操作
func (r *Room) removePlayer(playerID string) {
	delete(r.players, playerID)
	r.occupied = len(r.players) > 0
}

// PlayerIDs 房间内所有玩家 ID，排序后返回
func (r *Room) PlayerIDs() []string {
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// otherPlayerIDs 除 exclude 外的所有玩家 ID
func (r *Room) otherPlayerIDs(exclude string) []string {
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
