package world

import (
	"slices"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
)

// RoomChangeInfo 玩家进入房间后的落点信息
type RoomChangeInfo struct {
	CurrentRoom        int                `json:"current_room"`
	FromDirection      *CardinalDirection `json:"from_direction,omitempty"`
	SpawnLocation      Point              `json:"spawn_location"`
	OtherPlayersInRoom []string           `json:"other_players_in_room"`
}

// RoomRepresentation 房间的对外表示：名字、网格位置与各方向邻居 ID
type RoomRepresentation struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Position    Coordinate `json:"position"`
	NorthRoomID *int       `json:"north_room_id,omitempty"`
	EastRoomID  *int       `json:"east_room_id,omitempty"`
	SouthRoomID *int       `json:"south_room_id,omitempty"`
	WestRoomID  *int       `json:"west_room_id,omitempty"`
}

// RoomCollection 整个地牢的拓扑快照
type RoomCollection struct {
	Rooms           map[int]RoomRepresentation `json:"rooms"`
	RoomCoordinates []Coordinate               `json:"room_coordinates"`
	SpawnRoom       int                        `json:"spawn_room"`
	Seed            uint64                     `json:"seed"`
}

// representation 生成房间的对外表示
func (r *Room) representation() RoomRepresentation {
	rep := RoomRepresentation{
		ID:       r.ID,
		Name:     r.Name,
		Position: r.Position,
	}
	if n := r.neighbors[North]; n != nil {
		rep.NorthRoomID = &n.ID
	}
	if n := r.neighbors[East]; n != nil {
		rep.EastRoomID = &n.ID
	}
	if n := r.neighbors[South]; n != nil {
		rep.SouthRoomID = &n.ID
	}
	if n := r.neighbors[West]; n != nil {
		rep.WestRoomID = &n.ID
	}
	return rep
}

// OverworldSnapshot 地牢拓扑的完整快照，坐标按 X,Y 排序保证输出稳定
func (m *Manager) OverworldSnapshot() RoomCollection {
	m.mu.Lock()
	defer m.mu.Unlock()

	collection := RoomCollection{
		Rooms:           make(map[int]RoomRepresentation, len(m.rooms)),
		RoomCoordinates: make([]Coordinate, 0, len(m.coordinates)),
		SpawnRoom:       m.spawnRoom.ID,
		Seed:            m.seed,
	}
	for id, room := range m.rooms {
		collection.Rooms[id] = room.representation()
	}
	for coord := range m.coordinates {
		collection.RoomCoordinates = append(collection.RoomCoordinates, coord)
	}
	slices.SortFunc(collection.RoomCoordinates, func(a, b Coordinate) int {
		if a.X != b.X {
			return a.X - b.X
		}
		return a.Y - b.Y
	})
	return collection
}

// RoomContents 房间内已生成的摆设；未知房间返回 InvalidRoom
func (m *Manager) RoomContents(roomID int) ([]Doodad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, apperrors.ErrInvalidRoom
	}
	return slices.Clone(room.doodads), nil
}
