package canvas

import "testing"

func newTestStore() *Store {
	return NewStore("doc-1", "test board", "owner-1", nil)
}

func actionIDs(actions []Action) []string {
	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}

func TestAppend_SortedByTimestamp(t *testing.T) {
	s := newTestStore()
	s.Append(draw("late", 3000, Point{X: 100, Y: 100}))
	s.Append(draw("early", 1000, Point{X: 5000, Y: 5000}))

	doc := s.GetState()
	if len(doc.Actions) != 2 {
		t.Fatalf("len = %d, want 2", len(doc.Actions))
	}
	if doc.Actions[0].ID != "early" || doc.Actions[1].ID != "late" {
		t.Fatalf("order = %v, want [early late]", actionIDs(doc.Actions))
	}
	// 追加较早的无冲突操作后 LastModified 不倒退
	if doc.LastModified != 3000 {
		t.Fatalf("lastModified = %d, want 3000", doc.LastModified)
	}
}

func TestAppend_ConflictPushesAfterExisting(t *testing.T) {
	s := newTestStore()
	s.Append(draw("a", 1000, Point{X: 10, Y: 10}))
	res := s.Append(draw("b", 900, Point{X: 12, Y: 12}))

	if !res.HadConflict {
		t.Fatalf("hadConflict = false, want true")
	}
	// 冲突消解后 b 必须严格排在 a 之后
	if res.Resolved.Timestamp <= 1000 {
		t.Fatalf("resolved timestamp = %d, want > 1000", res.Resolved.Timestamp)
	}
	doc := s.GetState()
	if doc.Actions[0].ID != "a" || doc.Actions[1].ID != "b" {
		t.Fatalf("order = %v, want [a b]", actionIDs(doc.Actions))
	}
}

func TestGetState_Isolated(t *testing.T) {
	s := newTestStore()
	s.Append(draw("a", 1000, Point{X: 10, Y: 10}))

	snap := s.GetState()
	snap.Actions[0].Points[0].X = 9999
	snap.Name = "tampered"

	doc := s.GetState()
	if doc.Actions[0].Points[0].X != 10 || doc.Name != "test board" {
		t.Fatalf("store observed mutation through returned copy: %+v", doc)
	}
}

func TestOptimize_LatestClearWins(t *testing.T) {
	s := newTestStore()
	s.Append(draw("d1", 1000, Point{X: 10, Y: 10}))
	s.Append(Action{ID: "c1", Kind: KindClear, Timestamp: 2000, AuthorID: "u"})
	s.Append(draw("d2", 3000, Point{X: 5000, Y: 5000}))

	s.Optimize()
	doc := s.GetState()
	if len(doc.Actions) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(doc.Actions), actionIDs(doc.Actions))
	}
	if doc.Actions[0].ID != "c1" || doc.Actions[1].ID != "d2" {
		t.Fatalf("order = %v, want [c1 d2]", actionIDs(doc.Actions))
	}

	// 幂等：再跑一次结果不变
	s.Optimize()
	again := s.GetState()
	if len(again.Actions) != 2 || again.Actions[0].ID != "c1" || again.Actions[1].ID != "d2" {
		t.Fatalf("second Optimize changed result: %v", actionIDs(again.Actions))
	}
}

func TestOptimize_MultipleClears(t *testing.T) {
	s := newTestStore()
	s.Append(Action{ID: "c1", Kind: KindClear, Timestamp: 1000, AuthorID: "u"})
	s.Append(draw("d1", 1500, Point{X: 10, Y: 10}))
	s.Append(Action{ID: "c2", Kind: KindClear, Timestamp: 4000, AuthorID: "u"})
	s.Append(draw("d2", 4500, Point{X: 5000, Y: 5000}))

	s.Optimize()
	doc := s.GetState()
	if len(doc.Actions) != 2 || doc.Actions[0].ID != "c2" || doc.Actions[1].ID != "d2" {
		t.Fatalf("got %v, want [c2 d2]", actionIDs(doc.Actions))
	}
}

func TestOptimize_NoClearKeepsAll(t *testing.T) {
	s := newTestStore()
	s.Append(draw("d1", 1000, Point{X: 10, Y: 10}))
	s.Append(draw("d2", 8000, Point{X: 5000, Y: 5000}))

	s.Optimize()
	if n := len(s.GetState().Actions); n != 2 {
		t.Fatalf("len = %d, want 2", n)
	}
}

func TestMerge_DeduplicatesByID(t *testing.T) {
	s := newTestStore()
	a := draw("dup", 1000, Point{X: 10, Y: 10})

	s.Merge([]Action{a, a})
	doc := s.GetState()
	if len(doc.Actions) != 1 || doc.Actions[0].ID != "dup" {
		t.Fatalf("got %v, want [dup]", actionIDs(doc.Actions))
	}
}

func TestMerge_ExistingCopyWins(t *testing.T) {
	s := newTestStore()
	s.Append(draw("a", 1000, Point{X: 10, Y: 10}))

	// 同 ID 但内容不同的外来副本：本地已有的先出现，必须胜出
	foreign := draw("a", 7000, Point{X: 9000, Y: 9000})
	foreign.Color = "#f00"
	s.Merge([]Action{foreign})

	doc := s.GetState()
	if len(doc.Actions) != 1 {
		t.Fatalf("len = %d, want 1", len(doc.Actions))
	}
	if doc.Actions[0].Timestamp != 1000 || doc.Actions[0].Color == "#f00" {
		t.Fatalf("incoming duplicate replaced local copy: %+v", doc.Actions[0])
	}
}

func TestMerge_Idempotent(t *testing.T) {
	s := newTestStore()
	ops := []Action{
		draw("a", 1000, Point{X: 10, Y: 10}),
		draw("b", 2000, Point{X: 5000, Y: 5000}),
	}
	s.Merge(ops)
	first := actionIDs(s.GetState().Actions)

	s.Merge(ops)
	second := actionIDs(s.GetState().Actions)
	if len(first) != len(second) {
		t.Fatalf("merge not idempotent: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("merge not idempotent: %v vs %v", first, second)
		}
	}
}

func TestMerge_SortsCombined(t *testing.T) {
	s := newTestStore()
	s.Append(draw("b", 2000, Point{X: 100, Y: 100}))
	s.Merge([]Action{draw("a", 500, Point{X: 9000, Y: 9000})})

	doc := s.GetState()
	if doc.Actions[0].ID != "a" || doc.Actions[1].ID != "b" {
		t.Fatalf("order = %v, want [a b]", actionIDs(doc.Actions))
	}
}

func TestActionsSince(t *testing.T) {
	s := newTestStore()
	s.Append(draw("a", 1000, Point{X: 10, Y: 10}))
	s.Append(draw("b", 2000, Point{X: 5000, Y: 5000}))
	s.Append(draw("c", 3000, Point{X: 9000, Y: 9000}))

	got := s.ActionsSince(1000)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("got %v, want [b c]", actionIDs(got))
	}
	if got := s.ActionsSince(9999); got != nil {
		t.Fatalf("got %v, want nil", actionIDs(got))
	}
}

func TestUpdateParticipants_Overwrites(t *testing.T) {
	s := newTestStore()
	s.UpdateParticipants([]Participant{
		{ID: "u-1", DisplayName: "alice", IsActive: true, LastSeenAt: 100},
		{ID: "u-2", DisplayName: "bob", IsActive: true, LastSeenAt: 100},
	})
	s.UpdateParticipants([]Participant{
		{ID: "u-1", DisplayName: "alice", IsActive: true, LastSeenAt: 200},
		{ID: "u-2", DisplayName: "bob", IsActive: false, LastSeenAt: 100},
	})

	doc := s.GetState()
	if len(doc.Participants) != 2 {
		t.Fatalf("len = %d, want 2", len(doc.Participants))
	}
	if doc.Participants[1].IsActive {
		t.Fatalf("u-2 still active after overwrite")
	}
}

func TestSnapshotRestore_Isolated(t *testing.T) {
	s := newTestStore()
	s.Append(draw("a", 1000, Point{X: 10, Y: 10}))

	snap := s.CreateSnapshot()
	if snap.CapturedAt == 0 {
		t.Fatalf("capturedAt not set")
	}

	// 快照之后继续写，恢复时必须回到快照时刻
	s.Append(draw("b", 2000, Point{X: 5000, Y: 5000}))
	s.RestoreFromSnapshot(snap)

	doc := s.GetState()
	if len(doc.Actions) != 1 || doc.Actions[0].ID != "a" {
		t.Fatalf("restored = %v, want [a]", actionIDs(doc.Actions))
	}

	// 恢复后的修改不能穿透到快照对象
	s.Append(draw("c", 3000, Point{X: 100, Y: 100}))
	if len(snap.Document.Actions) != 1 {
		t.Fatalf("snapshot mutated after restore: %v", actionIDs(snap.Document.Actions))
	}
}

type recordingDiag struct {
	conflicts int
	compacted int
}

func (r *recordingDiag) ConflictResolved(string, string, int64, int64) { r.conflicts++ }
func (r *recordingDiag) Compacted(string, int, int)                    { r.compacted++ }

func TestDiagnosticsSink(t *testing.T) {
	diag := &recordingDiag{}
	s := NewStore("doc-1", "b", "o", diag)
	s.Append(draw("a", 1000, Point{X: 10, Y: 10}))
	s.Append(draw("b", 900, Point{X: 12, Y: 12}))
	s.Append(Action{ID: "c", Kind: KindClear, Timestamp: 9000, AuthorID: "u"})
	s.Optimize()

	if diag.conflicts == 0 {
		t.Fatalf("conflict not reported to sink")
	}
	if diag.compacted != 1 {
		t.Fatalf("compaction reported %d times, want 1", diag.compacted)
	}
}
