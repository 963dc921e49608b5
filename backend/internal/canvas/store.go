package canvas

import "time"

// Diagnostics 是可选的诊断出口，由构造方显式注入，核心不碰任何全局状态。
type Diagnostics interface {
	ConflictResolved(docID, actionID string, originalTS, resolvedTS int64)
	Compacted(docID string, before, after int)
}

type nopDiagnostics struct{}

func (nopDiagnostics) ConflictResolved(string, string, int64, int64) {}
func (nopDiagnostics) Compacted(string, int, int)                    {}

// Store 独占持有一份 Document 的操作日志和名册。
// 并发契约：同一 Store 上的修改调用必须串行（互斥边界由上层持有，
// 与 board 层每文档一把锁的做法对应）；读调用返回隔离副本。
type Store struct {
	doc  Document
	diag Diagnostics
}

func NewStore(docID, name, ownerID string, diag Diagnostics) *Store {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return &Store{
		doc: Document{
			ID:      docID,
			Name:    name,
			OwnerID: ownerID,
		},
		diag: diag,
	}
}

// AppendResult 是一次 Append 的结果。冲突是正常结果而不是失败。
type AppendResult struct {
	HadConflict bool
	Resolved    Action
}

// Append 假定 action 已通过 ValidateRaw 与 Sanitize（调用方负责前置校验）。
// 流程：冲突消解 → 插入 → 按时间戳重排 → 更新 LastModified。
func (s *Store) Append(action Action) AppendResult {
	res := Resolve(action, s.doc.Actions)
	if res.HadConflict && res.Resolved.Timestamp != action.Timestamp {
		s.diag.ConflictResolved(s.doc.ID, action.ID, action.Timestamp, res.Resolved.Timestamp)
	}
	s.doc.Actions = append(s.doc.Actions, res.Resolved.Clone())
	sortActions(s.doc.Actions)
	// 追加一条较早的无冲突操作不能让 LastModified 倒退
	if res.Resolved.Timestamp > s.doc.LastModified {
		s.doc.LastModified = res.Resolved.Timestamp
	}
	return AppendResult(res)
}

// GetState 返回当前文档的隔离副本，调用方看不到后续修改。
func (s *Store) GetState() Document {
	return s.doc.Clone()
}

// UpdateParticipants 用调用方提供的完整名册整体替换现有名册。
// 这是覆盖而不是合并：join/leave 的增量语义由上层负责算好再传进来。
func (s *Store) UpdateParticipants(roster []Participant) {
	next := make([]Participant, len(roster))
	for i, p := range roster {
		next[i] = p
		if p.Cursor != nil {
			c := *p.Cursor
			next[i].Cursor = &c
		}
	}
	s.doc.Participants = next
}

// ActionsSince 返回时间戳严格大于 ts 的全部操作（按存储顺序）。
func (s *Store) ActionsSince(ts int64) []Action {
	var out []Action
	for _, a := range s.doc.Actions {
		if a.Timestamp > ts {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Optimize 压缩操作日志：有 clear 时只保留最晚的一条 clear
// 以及时间戳严格大于它的操作，其余全部丢弃；没有 clear 则原样保留。
// 幂等：跑两次和跑一次结果相同。
func (s *Store) Optimize() {
	var latestClear *Action
	for i := range s.doc.Actions {
		a := &s.doc.Actions[i]
		if a.Kind != KindClear {
			continue
		}
		if latestClear == nil || a.Timestamp > latestClear.Timestamp {
			latestClear = a
		}
	}
	if latestClear == nil {
		return
	}
	before := len(s.doc.Actions)
	kept := make([]Action, 0, before)
	kept = append(kept, latestClear.Clone())
	for _, a := range s.doc.Actions {
		if a.Kind != KindClear && a.Timestamp > latestClear.Timestamp {
			kept = append(kept, a)
		}
	}
	sortActions(kept)
	s.doc.Actions = kept
	s.diag.Compacted(s.doc.ID, before, len(kept))
}

// Merge 把外部操作集（例如重连端的状态同步）并入本地日志：
// 先本地后外部拼接，按 ID 去重（先出现者胜，即本地已有副本优先），
// 再按时间戳排序整体替换。注意 Merge 不跑冲突消解——它是幂等的
// 集合并集，不是一次新提交；对历史数据重跑消解会产生依赖回放顺序的
// 时间戳漂移。
func (s *Store) Merge(incoming []Action) {
	seen := make(map[string]struct{}, len(s.doc.Actions)+len(incoming))
	merged := make([]Action, 0, len(s.doc.Actions)+len(incoming))
	for _, a := range s.doc.Actions {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	for _, a := range incoming {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a.Clone())
	}
	sortActions(merged)
	s.doc.Actions = merged
	s.doc.LastModified = time.Now().UnixMilli()
}

// Snapshot 是某一时刻文档的隔离深拷贝，供外部持久化使用。
type Snapshot struct {
	Document   Document `json:"document"`
	CapturedAt int64    `json:"capturedAt"`
}

func (s *Store) CreateSnapshot() Snapshot {
	return Snapshot{
		Document:   s.doc.Clone(),
		CapturedAt: time.Now().UnixMilli(),
	}
}

// RestoreFromSnapshot 用快照整体替换当前文档。替换后继续修改 Store
// 不会影响传入的快照对象（反向也成立）。
func (s *Store) RestoreFromSnapshot(snap Snapshot) {
	s.doc = snap.Document.Clone()
}
