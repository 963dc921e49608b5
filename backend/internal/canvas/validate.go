package canvas

// 校验与清洗是两个独立步骤：
// - ValidateRaw 做结构检查，结构不对的直接拒收（不落库、不消解冲突）
// - Sanitize 做数值夹取，越界的值被夹回合法区间而不是拒收

// ValidateRaw 检查一个未经信任的解码结果（json.Unmarshal 到 map[string]any）
// 是否具备 Action 的完整结构。无副作用。
func ValidateRaw(raw map[string]any) bool {
	if raw == nil {
		return false
	}
	if s, ok := raw["id"].(string); !ok || s == "" {
		return false
	}
	kind, ok := raw["kind"].(string)
	if !ok {
		return false
	}
	switch ActionKind(kind) {
	case KindDraw, KindErase, KindClear:
	default:
		return false
	}
	// encoding/json 把数组解码为 []any，数字解码为 float64
	if _, ok := raw["points"].([]any); !ok {
		return false
	}
	if _, ok := raw["color"].(string); !ok {
		return false
	}
	if _, ok := raw["strokeWidth"].(float64); !ok {
		return false
	}
	if _, ok := raw["timestamp"].(float64); !ok {
		return false
	}
	if _, ok := raw["authorId"].(string); !ok {
		return false
	}
	return true
}

// DecodeRaw 把已通过 ValidateRaw 的 map 转成 Action。
// points 里的非对象元素按零值点处理（结构校验只要求 points 是数组）。
func DecodeRaw(raw map[string]any) Action {
	a := Action{
		ID:          raw["id"].(string),
		Kind:        ActionKind(raw["kind"].(string)),
		Color:       raw["color"].(string),
		StrokeWidth: raw["strokeWidth"].(float64),
		Timestamp:   int64(raw["timestamp"].(float64)),
		AuthorID:    raw["authorId"].(string),
	}
	rawPoints := raw["points"].([]any)
	a.Points = make([]Point, 0, len(rawPoints))
	for _, rp := range rawPoints {
		m, ok := rp.(map[string]any)
		if !ok {
			a.Points = append(a.Points, Point{})
			continue
		}
		x, _ := m["x"].(float64)
		y, _ := m["y"].(float64)
		a.Points = append(a.Points, Point{X: x, Y: y})
	}
	return a
}

// Sanitize 把坐标夹进 [0,10000]、线宽夹进 [1,50]，其余字段原样保留。
func Sanitize(a Action) Action {
	out := a.Clone()
	for i := range out.Points {
		out.Points[i].X = clamp(out.Points[i].X, CoordMin, CoordMax)
		out.Points[i].Y = clamp(out.Points[i].Y, CoordMin, CoordMax)
	}
	out.StrokeWidth = clamp(out.StrokeWidth, StrokeWidthMin, StrokeWidthMax)
	return out
}
