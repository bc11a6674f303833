package rng

import (
	"cmp"
	"slices"
)

// 线性同余参数。地牢拓扑与摆设布局都从这条序列再生，
// 任何改动都会使既有种子生成不同的世界
const (
	multiplier uint64 = 16807
	increment  uint64 = 12345
	modulus    uint64 = 2147483647
)

// SeededRandom 线性同余随机序列：同一种子下逐位可复现
type SeededRandom struct {
	state uint64
}

// New 以 64 位种子创建随机序列
func New(seed uint64) *SeededRandom {
	return &SeededRandom{state: seed}
}

// Next 推进内部状态并返回 [0, max) 区间内的随机数；max 为 0 时返回 0
func (r *SeededRandom) Next(max uint64) uint64 {
	r.state = (multiplier*r.state + increment) % modulus
	if max == 0 {
		return 0
	}
	return r.state % max
}

// NextInt Next 的 int 版本；max <= 0 时返回 0
func (r *SeededRandom) NextInt(max int) int {
	if max <= 0 {
		return 0
	}
	return int(r.Next(uint64(max)))
}

// Choice 从切片中等概率抽取一个元素，空切片返回零值与 false
func Choice[T any](r *SeededRandom, items []T) (T, bool) {
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[r.NextInt(len(items))], true
}

// ChoiceByKey 对映射按键排序后等概率抽取一个键并返回其值。
// 先排序是为了让抽取结果与 map 的遍历顺序无关，保证可复现
func ChoiceByKey[K cmp.Ordered, V any](r *SeededRandom, m map[K]V) (V, bool) {
	if len(m) == 0 {
		var zero V
		return zero, false
	}
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return m[keys[r.NextInt(len(keys))]], true
}
