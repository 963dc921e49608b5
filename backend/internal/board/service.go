package board

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"canvasServer/backend/internal/canvas"
)

// 协作画布引擎接口
type Service interface {
	// Submit 处理在线成员的单条新操作：校验 → 清洗 → 冲突消解 → 入库。
	Submit(ctx context.Context, docID string, raw map[string]any) (AppliedAction, error)

	// SyncState 处理重连/迟到成员的批量状态同步：按 ID 幂等并集，不重跑冲突消解。
	// 返回并入的合法操作条数。
	SyncState(ctx context.Context, docID string, raws []map[string]any) (int, error)

	BoardState(ctx context.Context, docID string) (canvas.Document, error)

	// 可选：用于握手/追平
	ActionsSince(ctx context.Context, docID string, ts int64) ([]canvas.Action, error)

	// RefreshRoster 根据在线成员刷新名册：掉线成员只翻转 IsActive，不删除。
	RefreshRoster(ctx context.Context, docID string, alive []RosterEntry) error

	SaveSnapshot(ctx context.Context, docID string) error
	LoadBoard(ctx context.Context, docID string) error

	CreateBoard(ctx context.Context, ownerID uint64, title string) (string, error)
	GetBoardID(ctx context.Context, title string) (string, error)
}

// 快照存储接口（实现在 store 中）
type SnapshotStore interface {
	SaveBoardSnapshot(ctx context.Context, docID string, capturedAt int64, payload []byte) error
	LoadLatestSnapshot(ctx context.Context, docID string) ([]byte, error)
}

type BoardStore interface {
	GetBoardID(ctx context.Context, title string) (string, error)
	CreateBoard(ctx context.Context, ownerID uint64, title string) (string, error)
}

// RosterEntry 是一名当前在线的成员（来自 presence 缓存）。
type RosterEntry struct {
	ID          string
	DisplayName string
	ColorHint   string
	Cursor      *canvas.Point
}

// AppliedAction 是一次成功提交的结果。冲突是结果的一部分，不是错误。
type AppliedAction struct {
	ActionID    string
	HadConflict bool
	Resolved    canvas.Action
	AppliedAt   time.Time
}

var (
	ErrInvalidAction = errors.New("INVALID_ACTION")
	ErrBoardNotFound = errors.New("BOARD_NOT_FOUND")
)

// 每块画布的状态：canvas.Store 要求修改串行，锁就放在这里。
// 同一文档的 Submit/SyncState/Optimize/恢复互斥，不同文档互不影响。
type docState struct {
	mu    sync.Mutex
	store *canvas.Store
}

// 内存实现：持有所有画布的状态
type InMemoryService struct {
	mu   sync.RWMutex
	docs map[string]*docState

	// 依赖注入，全部只声明接口
	snapshots  SnapshotStore
	boards     BoardStore
	dispatcher *KafkaDispatcher
}

// logDiagnostics 把核心的诊断事件落到进程日志（core 自身不碰全局状态，
// 诊断出口由这里注入）。
type logDiagnostics struct{}

func (logDiagnostics) ConflictResolved(docID, actionID string, originalTS, resolvedTS int64) {
	log.Printf("conflict resolved doc=%s action=%s ts %d -> %d", docID, actionID, originalTS, resolvedTS)
}

func (logDiagnostics) Compacted(docID string, before, after int) {
	if before != after {
		log.Printf("compacted doc=%s actions %d -> %d", docID, before, after)
	}
}

// NewInMemoryService 返回一个满足 Service 接口的实例
func NewInMemoryService(snapshots SnapshotStore, boards BoardStore, dispatcher *KafkaDispatcher) *InMemoryService {
	return &InMemoryService{
		docs:       make(map[string]*docState),
		snapshots:  snapshots,
		boards:     boards,
		dispatcher: dispatcher,
	}
}

// 获取或创建指定画布的状态
func (s *InMemoryService) getOrCreateDoc(docID string) *docState {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds != nil {
		return ds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds = s.docs[docID]; ds == nil {
		ds = &docState{store: canvas.NewStore(docID, "", "", logDiagnostics{})}
		s.docs[docID] = ds
	}
	return ds
}

func (s *InMemoryService) getDoc(docID string) *docState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[docID]
}

// 提交操作（InMemoryService 实现）
func (s *InMemoryService) Submit(ctx context.Context, docID string, raw map[string]any) (AppliedAction, error) {
	if !canvas.ValidateRaw(raw) {
		// 结构不对直接拒收，不发生任何状态变更
		return AppliedAction{}, ErrInvalidAction
	}
	action := canvas.Sanitize(canvas.DecodeRaw(raw))

	ds := s.getOrCreateDoc(docID)
	ds.mu.Lock()
	res := ds.store.Append(action)
	ds.mu.Unlock()

	applied := AppliedAction{
		ActionID:    res.Resolved.ID,
		HadConflict: res.HadConflict,
		Resolved:    res.Resolved,
		AppliedAt:   time.Now(),
	}

	// 异步发 Kafka（入队即返回，不阻塞提交链路）
	if s.dispatcher != nil {
		evt := BoardOpEvent{
			EventType:         "ACTION_APPLIED",
			DocID:             docID,
			ActionID:          applied.ActionID,
			Kind:              string(res.Resolved.Kind),
			AuthorID:          res.Resolved.AuthorID,
			HadConflict:       res.HadConflict,
			ResolvedTimestamp: res.Resolved.Timestamp,
			AppliedAt:         applied.AppliedAt,
		}
		if err := s.dispatcher.Enqueue(ctx, evt); err != nil {
			// 事件流不要求强一致，丢弃只打日志
			log.Printf("enqueue board event failed doc=%s action=%s: %v", docID, applied.ActionID, err)
		}
	}

	return applied, nil
}

// 批量状态同步（InMemoryService 实现）。
// 单条结构不合法的元素丢弃并计数，不影响其余元素。
func (s *InMemoryService) SyncState(ctx context.Context, docID string, raws []map[string]any) (int, error) {
	incoming := make([]canvas.Action, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		if !canvas.ValidateRaw(raw) {
			dropped++
			continue
		}
		incoming = append(incoming, canvas.Sanitize(canvas.DecodeRaw(raw)))
	}
	if dropped > 0 {
		log.Printf("state sync doc=%s dropped %d invalid actions", docID, dropped)
	}

	ds := s.getOrCreateDoc(docID)
	ds.mu.Lock()
	ds.store.Merge(incoming)
	ds.mu.Unlock()
	return len(incoming), nil
}

// 返回当前画布状态的隔离副本（InMemoryService 实现）
func (s *InMemoryService) BoardState(ctx context.Context, docID string) (canvas.Document, error) {
	ds := s.getDoc(docID)
	if ds == nil {
		return canvas.Document{}, ErrBoardNotFound
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.store.GetState(), nil
}

// 返回时间戳在 ts 之后的操作（InMemoryService 实现）
func (s *InMemoryService) ActionsSince(ctx context.Context, docID string, ts int64) ([]canvas.Action, error) {
	ds := s.getDoc(docID)
	if ds == nil {
		return nil, nil
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.store.ActionsSince(ts), nil
}

// RefreshRoster：以旧名册为底，在线成员刷新 LastSeenAt/Cursor，
// 不在线的翻转 IsActive=false，新面孔追加，最后整体覆盖写回。
func (s *InMemoryService) RefreshRoster(ctx context.Context, docID string, alive []RosterEntry) error {
	ds := s.getOrCreateDoc(docID)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := time.Now().UnixMilli()
	prev := ds.store.GetState().Participants

	aliveByID := make(map[string]RosterEntry, len(alive))
	for _, e := range alive {
		aliveByID[e.ID] = e
	}

	next := make([]canvas.Participant, 0, len(prev)+len(alive))
	seen := make(map[string]struct{}, len(prev))
	for _, p := range prev {
		seen[p.ID] = struct{}{}
		if e, ok := aliveByID[p.ID]; ok {
			p.IsActive = true
			p.LastSeenAt = now
			p.Cursor = e.Cursor
			if e.DisplayName != "" {
				p.DisplayName = e.DisplayName
			}
		} else {
			p.IsActive = false
		}
		next = append(next, p)
	}
	for _, e := range alive {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		next = append(next, canvas.Participant{
			ID:          e.ID,
			DisplayName: e.DisplayName,
			ColorHint:   e.ColorHint,
			Cursor:      e.Cursor,
			IsActive:    true,
			LastSeenAt:  now,
		})
	}

	ds.store.UpdateParticipants(next)
	return nil
}

func (s *InMemoryService) SaveSnapshot(ctx context.Context, docID string) error {
	if s.snapshots == nil {
		return errors.New("snapshot store not initialized")
	}
	ds := s.getDoc(docID)
	if ds == nil {
		return ErrBoardNotFound
	}
	ds.mu.Lock()
	snap := ds.store.CreateSnapshot()
	ds.mu.Unlock()

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.snapshots.SaveBoardSnapshot(ctx, docID, snap.CapturedAt, payload)
}

// LoadBoard 从最近一次快照整体恢复画布状态。
func (s *InMemoryService) LoadBoard(ctx context.Context, docID string) error {
	if s.snapshots == nil {
		return errors.New("snapshot store not initialized")
	}
	payload, err := s.snapshots.LoadLatestSnapshot(ctx, docID)
	if err != nil {
		return err
	}
	var snap canvas.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return err
	}

	ds := s.getOrCreateDoc(docID)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.store.RestoreFromSnapshot(snap)
	return nil
}

func (s *InMemoryService) CreateBoard(ctx context.Context, ownerID uint64, title string) (string, error) {
	if s.boards == nil {
		return "", errors.New("board store not initialized")
	}
	return s.boards.CreateBoard(ctx, ownerID, title)
}

func (s *InMemoryService) GetBoardID(ctx context.Context, title string) (string, error) {
	if s.boards == nil {
		return "", errors.New("board store not initialized")
	}
	return s.boards.GetBoardID(ctx, title)
}

// StartCompaction 启动后台压缩循环：每个周期对所有画布跑一遍 Optimize，
// 与 Submit 共用每文档一把锁。ctx 取消后退出。
func (s *InMemoryService) StartCompaction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.compactAll()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *InMemoryService) compactAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if ds := s.getDoc(id); ds != nil {
			ds.mu.Lock()
			ds.store.Optimize()
			ds.mu.Unlock()
		}
	}
}
