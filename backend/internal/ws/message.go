package ws

import (
	"time"

	"canvasServer/backend/internal/canvas"
)

type ClientMessage struct {
	Type       string `json:"type"`
	DocID      string `json:"docId"`
	BoardTitle string `json:"boardTitle,omitempty"`
	// 单条新操作（action_submit），保持原始解码结果，由服务端做结构校验
	Action map[string]any `json:"action,omitempty"`
	// 批量状态同步（state_sync），重连端上报自己的本地操作集
	Actions        []map[string]any `json:"actions,omitempty"`
	Cursor         *canvas.Point    `json:"cursor,omitempty"`
	SinceTimestamp int64            `json:"sinceTimestamp,omitempty"`
}

type PresenceMember struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName,omitempty"`
	ColorHint     string `json:"colorHint,omitempty"`
}

type ServerMessage struct {
	Type          string           `json:"type"`
	DocID         string           `json:"docId,omitempty"`
	ParticipantID string           `json:"participantId,omitempty"`
	Members       []PresenceMember `json:"members,omitempty"`
	Cursor        *canvas.Point    `json:"cursor,omitempty"`
	Board         *canvas.Document `json:"board,omitempty"`
	Actions       []canvas.Action  `json:"actions,omitempty"`
	Content       string           `json:"content,omitempty"`
}

// 提交方收到的回执：冲突是结果不是错误，消解后的时间戳一并带回
type ActionAppliedMessage struct {
	Type              string `json:"type"` // 固定 "action_applied"
	DocID             string `json:"docId"`
	ActionID          string `json:"actionId"`
	HadConflict       bool   `json:"hadConflict"`
	ResolvedTimestamp int64  `json:"resolvedTimestamp"`
}

// 广播给同画布房间内其他连接的“已应用操作”事件
// - 与 action_applied(ack) 区分：这里把变更推送给其他协作者
// - 客户端收到后在本地按消解后的时间戳插入该操作
type ActionBroadcastMessage struct {
	Type      string        `json:"type"` // 固定 "action_broadcast"
	DocID     string        `json:"docId"`
	AuthorID  string        `json:"authorId"`
	Action    canvas.Action `json:"action"`
	AppliedAt time.Time     `json:"appliedAt,omitempty"`
}
