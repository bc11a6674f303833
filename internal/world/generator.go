package world

import (
	"fmt"
	"math"

	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/rng"
)

// 第一阶段按目标房间数的 85% 做树状生长，剩余由第二阶段注入环路
const phase1Fraction = 0.85

// 第二阶段随机抽取的重试上限系数（乘以目标房间数）。
// 病态布局下抽不到可扩展的房间时接受偏小的地牢，而不是无限自旋
const phase2RetryFactor = 40

// 第二阶段新房间尝试回连第二条边的概率（百分比）
const loopbackChance = 75

// 房间名词库，由世界随机序列抽取，同一种子下名字也可复现
var (
	roomAdjectives = []string{
		"Gloomy", "Silent", "Sunken", "Mossy", "Crimson",
		"Forgotten", "Whispering", "Shattered", "Frozen", "Ancient",
		"Hollow", "Blighted", "Gilded", "Weeping", "Crumbling",
		"Echoing", "Burnt", "Flooded", "Thorned", "Pale",
	}
	roomNouns = []string{
		"Hall", "Crypt", "Gallery", "Cellar", "Sanctum",
		"Passage", "Vault", "Chamber", "Grotto", "Armory",
		"Shrine", "Refectory", "Oubliette", "Landing", "Warren",
		"Atrium", "Causeway", "Reliquary", "Stockade", "Well",
	}
)

// generator 两阶段地牢拓扑生成。产出的房间图、坐标索引与出生房间
// 由 Manager 整体接管
type generator struct {
	seed        uint64
	rng         *rng.SeededRandom
	rooms       map[int]*Room
	coordinates map[Coordinate]*Room
	nextID      int
}

// generate 由种子构建目标数量的互相连通的房间。
// 队列或重试耗尽时记录日志并返回偏小的地牢（降级而非失败）；
// 坐标或边的冲突说明拓扑已损坏，直接返回错误
func generate(seed uint64, roomLimit int) (*generator, error) {
	g := &generator{
		seed:        seed,
		rng:         rng.New(seed),
		rooms:       make(map[int]*Room),
		coordinates: make(map[Coordinate]*Room),
	}

	spawn, err := g.createRoom(Coordinate{0, 0})
	if err != nil {
		return nil, err
	}

	if err := g.growTree(spawn, roomLimit); err != nil {
		return nil, err
	}
	if err := g.injectLoops(roomLimit); err != nil {
		return nil, err
	}

	logger.Log.Infof("🗺️ 地牢生成完成: %d/%d 个房间 (seed=%d)", len(g.rooms), roomLimit, seed)
	return g, nil
}

// growTree 第一阶段：从出生房间做 FIFO 树状生长，
// 每个新坐标只允许恰好 1 个已占用邻居，产生稀疏的树形结构
func (g *generator) growTree(spawn *Room, roomLimit int) error {
	target := int(math.Ceil(phase1Fraction * float64(roomLimit)))
	queue := []*Room{spawn}

	for len(g.rooms) < target {
		if len(queue) == 0 {
			logger.Log.Warnf("⚠️ 第一阶段队列耗尽: 生成 %d/%d 个房间后提前结束", len(g.rooms), roomLimit)
			return nil
		}
		room := queue[0]
		queue = queue[1:]

		dirs := g.eligibleDirections(room, 1)
		if len(dirs) == 0 {
			// 无处可扩展的房间直接丢弃，不再入队
			continue
		}
		dir, _ := rng.Choice(g.rng, dirs)

		next, err := g.createRoom(room.Position.Shift(dir))
		if err != nil {
			return err
		}
		if err := room.Connect(next, dir); err != nil {
			return err
		}

		if len(g.eligibleDirections(next, 1)) > 0 {
			queue = append(queue, next)
		}
		if len(g.eligibleDirections(room, 1)) > 0 {
			queue = append(queue, room)
		}
	}
	return nil
}

// injectLoops 第二阶段：随机选既有房间向外扩展，允许新坐标有 2 个
// 已占用邻居，并以一定概率给新房间接上第二条边，在图中制造环路
func (g *generator) injectLoops(roomLimit int) error {
	attempts := 0
	maxAttempts := phase2RetryFactor * roomLimit

	for len(g.rooms) < roomLimit {
		if attempts >= maxAttempts {
			logger.Log.Warnf("⚠️ 第二阶段重试耗尽: 生成 %d/%d 个房间后提前结束", len(g.rooms), roomLimit)
			return nil
		}
		attempts++

		room, ok := rng.ChoiceByKey(g.rng, g.rooms)
		if !ok {
			return nil
		}
		dirs := g.eligibleDirections(room, 2)
		if len(dirs) == 0 {
			continue
		}
		dir, _ := rng.Choice(g.rng, dirs)

		next, err := g.createRoom(room.Position.Shift(dir))
		if err != nil {
			return err
		}
		if err := room.Connect(next, dir); err != nil {
			return err
		}

		if g.rng.NextInt(100) < loopbackChance {
			if err := g.connectLoopback(next, room); err != nil {
				return err
			}
		}
	}
	return nil
}

// eligibleDirections 枚举可扩展方向：目标坐标未被占用，且其四个网格
// 邻居中已占用的数量恰好等于 neighborsAllowed。按固定方向顺序枚举
func (g *generator) eligibleDirections(room *Room, neighborsAllowed int) []CardinalDirection {
	var dirs []CardinalDirection
	for _, d := range Directions {
		target := room.Position.Shift(d)
		if _, taken := g.coordinates[target]; taken {
			continue
		}
		occupied := 0
		for _, n := range target.Neighbors() {
			if _, ok := g.coordinates[n]; ok {
				occupied++
			}
		}
		if occupied == neighborsAllowed {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// connectLoopback 尝试把新房间与除 origin 外的某个网格相邻既有房间
// 连通。没有合适的邻居时静默放弃
func (g *generator) connectLoopback(room, origin *Room) error {
	var candidates []CardinalDirection
	for _, d := range Directions {
		other, ok := g.coordinates[room.Position.Shift(d)]
		if !ok || other == origin {
			continue
		}
		if room.Neighbor(d) != nil {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return nil
	}

	d, _ := rng.Choice(g.rng, candidates)
	return room.Connect(g.coordinates[room.Position.Shift(d)], d)
}

// createRoom 在指定坐标创建房间并登记索引。坐标冲突是不变量被破坏，
// 生成必须中止
func (g *generator) createRoom(pos Coordinate) (*Room, error) {
	if existing, taken := g.coordinates[pos]; taken {
		return nil, fmt.Errorf("坐标 %v 已被房间 %q(%d) 占用", pos, existing.Name, existing.ID)
	}

	room := newRoom(g.nextID, pos, g.roomName(), g.seed+uint64(g.nextID))
	g.nextID++
	g.rooms[room.ID] = room
	g.coordinates[pos] = room
	return room, nil
}

// roomName 从词库生成房间名
func (g *generator) roomName() string {
	adjective, _ := rng.Choice(g.rng, roomAdjectives)
	noun, _ := rng.Choice(g.rng, roomNouns)
	return adjective + " " + noun
}
