package world

import (
	"encoding/json"
	"fmt"
)

// CardinalDirection 罗盘方向
type CardinalDirection int

const (
	North CardinalDirection = iota
	East
	South
	West
)

// Directions 固定的方向枚举顺序。生成器在把候选方向交给随机抽取前
// 必须按这个顺序枚举，平局只由随机序列打破，保证可复现
var Directions = [4]CardinalDirection{North, East, South, West}

var directionNames = [4]string{"north", "east", "south", "west"}

func (d CardinalDirection) String() string {
	if d < North || d > West {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Opposite 返回相反方向
func (d CardinalDirection) Opposite() CardinalDirection {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

// MarshalJSON 方向在 API 中以名称编码
func (d CardinalDirection) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON 解析方向名称
func (d *CardinalDirection) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range directionNames {
		if n == name {
			*d = CardinalDirection(i)
			return nil
		}
	}
	return fmt.Errorf("未知方向: %q", name)
}

// Coordinate 世界网格上的整数坐标，北为 +Y，东为 +X
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Shift 返回沿方向移动一格后的坐标
func (c Coordinate) Shift(d CardinalDirection) Coordinate {
	switch d {
	case North:
		return Coordinate{c.X, c.Y + 1}
	case South:
		return Coordinate{c.X, c.Y - 1}
	case East:
		return Coordinate{c.X + 1, c.Y}
	default:
		return Coordinate{c.X - 1, c.Y}
	}
}

// Neighbors 返回四个相邻坐标，按固定方向顺序
func (c Coordinate) Neighbors() [4]Coordinate {
	return [4]Coordinate{
		c.Shift(North),
		c.Shift(East),
		c.Shift(South),
		c.Shift(West),
	}
}

// Point 房间内的实数坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector 轨迹向量
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}
