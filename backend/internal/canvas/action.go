package canvas

import "math"

// 画布坐标点。经过 Sanitize 之后 X/Y 保证落在 [0, CoordMax] 内。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ActionKind string

const (
	KindDraw  ActionKind = "draw"
	KindErase ActionKind = "erase"
	// clear 不携带点序列，语义是“丢弃此操作之前的全部绘制”
	KindClear ActionKind = "clear"
)

// Action 是协作画布的最小变更单元，由发起端生成并赋予全局唯一 ID。
// Timestamp 为发起端的毫秒时间戳，冲突消解时可能被改写（只会向后推，不会提前）。
type Action struct {
	ID          string     `json:"id"`
	Kind        ActionKind `json:"kind"`
	Points      []Point    `json:"points"`
	Color       string     `json:"color"`
	StrokeWidth float64    `json:"strokeWidth"`
	Timestamp   int64      `json:"timestamp"`
	AuthorID    string     `json:"authorId"`
}

// 数值边界（Sanitize 之后必然成立）
const (
	CoordMin       = 0.0
	CoordMax       = 10000.0
	StrokeWidthMin = 1.0
	StrokeWidthMax = 50.0
)

// 冲突判定参数：时间窗口 + 空间距离阈值
const (
	ConflictWindowMillis = 5000
	ConflictDistance     = 50.0
)

func distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clone 返回完全独立的副本（Points 深拷贝），调用方可随意改动。
func (a Action) Clone() Action {
	out := a
	if a.Points != nil {
		out.Points = make([]Point, len(a.Points))
		copy(out.Points, a.Points)
	}
	return out
}
