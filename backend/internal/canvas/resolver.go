package canvas

// 冲突消解：对新提交的 Action 决定是否与已接受的操作在时间+空间上重叠，
// 重叠时把它的时间戳推到所有冲突对象之后。
//
// 规则（对每个冲突的已有操作 e 累积一次）：
//   candidate.Timestamp = max(candidate.Timestamp, e.Timestamp+1)
//
// 这保证：
//   1. candidate 永远不会被排到与它冲突的操作之前
//   2. 以哪个冲突对象先处理无关（max 满足结合律）
//   3. 不冲突的操作保留原始时间戳，不做全局重编号

// Resolution 是消解结果。消解从不拒绝操作，只调整排序。
type Resolution struct {
	HadConflict bool
	Resolved    Action
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// conflicts 判定两个操作是否冲突：
// - 时间戳差必须小于 ConflictWindowMillis
// - 任一方是 clear 时按类型对规则直接判冲突（clear 没有点，空间规则永远打不中它）
// - 否则要求两条笔迹存在一对距离小于 ConflictDistance 的点
func conflicts(a, b Action) bool {
	if absInt64(a.Timestamp-b.Timestamp) >= ConflictWindowMillis {
		return false
	}
	if a.Kind == KindClear || b.Kind == KindClear {
		return true
	}
	return spatialOverlap(a.Points, b.Points)
}

// O(|pa|*|pb|)，文档操作数被 Compactor 限制住，可以接受
func spatialOverlap(pa, pb []Point) bool {
	for _, p := range pa {
		for _, q := range pb {
			if distance(p, q) < ConflictDistance {
				return true
			}
		}
	}
	return false
}

// Resolve 对 candidate 与 existing 中的每个操作做冲突检测，
// 返回消解后的副本。existing 不被修改。
func Resolve(candidate Action, existing []Action) Resolution {
	// 检测一律基于 candidate 的原始时间戳；消解中途被推后的时间戳
	// 不参与后续检测，否则结果会依赖 existing 的遍历顺序。
	resolved := candidate.Clone()
	had := false
	for _, e := range existing {
		if !conflicts(candidate, e) {
			continue
		}
		had = true
		if e.Timestamp+1 > resolved.Timestamp {
			resolved.Timestamp = e.Timestamp + 1
		}
	}
	return Resolution{HadConflict: had, Resolved: resolved}
}
