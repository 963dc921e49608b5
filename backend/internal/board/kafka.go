package board

import "time"

// BoardOpEvent 是发往 Kafka 的“已应用操作”事件，按 docId 分区。
type BoardOpEvent struct {
	EventType         string    `json:"eventType"` // 固定 "ACTION_APPLIED"
	DocID             string    `json:"docId"`
	ActionID          string    `json:"actionId"`
	Kind              string    `json:"kind"`
	AuthorID          string    `json:"authorId"`
	HadConflict       bool      `json:"hadConflict"`
	ResolvedTimestamp int64     `json:"resolvedTimestamp"` // 消解后的毫秒时间戳
	AppliedAt         time.Time `json:"appliedAt"`
}
