package world

import (
	"math"

	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/rng"
)

const (
	doodadMinSize = 16
	doodadMaxSize = 96
	doorClearance = 150 // 门区净空半径（另加摆设自身半径）

	// 拒绝采样的保险上限。房间远大于摆设，正常情况下远达不到
	doodadMaxAttempts = 10000

	// 旋转角采样粒度：先取整数再除回，保证与种子严格对应
	rotationGranularity = 10000
)

// Size 摆设尺寸
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Doodad 房间内的摆设/障碍物，生成后不可变
type Doodad struct {
	ID       int     `json:"id"`
	Type     string  `json:"type"`
	Position Point   `json:"position"`
	Size     Size    `json:"size"`
	Rotation float64 `json:"rotation"`
}

// Radius 用于圆形重叠判定的半径
func (d Doodad) Radius() float64 {
	return math.Max(d.Size.Width, d.Size.Height) / 2
}

// Doodads 房间内已生成的摆设（未被进入过的房间为空）
func (r *Room) Doodads() []Doodad {
	return r.doodads
}

// ensureDoodads 首次有玩家进入时生成摆设；同一房间实例只生成一次
func (r *Room) ensureDoodads() {
	if r.doodadsReady {
		return
	}
	r.doodadsReady = true

	roomRNG := rng.New(r.doodadSeed)
	target := 5 + roomRNG.NextInt(10)

	rotationRange := 2 * math.Pi * rotationGranularity

	attempts := 0
	for len(r.doodads) < target && attempts < doodadMaxAttempts {
		attempts++

		pos := Point{
			X: float64(roomRNG.NextInt(int(RoomSize))),
			Y: float64(roomRNG.NextInt(int(RoomSize))),
		}
		scalar := float64(doodadMinSize + roomRNG.NextInt(doodadMaxSize-doodadMinSize))
		rotation := float64(roomRNG.NextInt(int(rotationRange))) / rotationGranularity

		candidate := Doodad{
			ID:       len(r.doodads),
			Type:     "box",
			Position: pos,
			Size:     Size{Width: scalar, Height: scalar},
			Rotation: rotation,
		}
		if !placementValid(candidate, r.doodads) {
			continue
		}
		r.doodads = append(r.doodads, candidate)
	}

	if len(r.doodads) < target {
		logger.Log.Warnf("⚠️ 房间 %q(%d) 摆设采样达到尝试上限，只放置了 %d/%d 个",
			r.Name, r.ID, len(r.doodads), target)
	}
}

// placementValid 候选摆设与既有摆设的包围圆不重叠，且不侵入四个门区
func placementValid(d Doodad, placed []Doodad) bool {
	for _, other := range placed {
		if distance(d.Position, other.Position) < d.Radius()+other.Radius() {
			return false
		}
	}
	for _, dir := range Directions {
		if distance(DoorPosition(dir), d.Position) < d.Radius()+doorClearance {
			return false
		}
	}
	return true
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
