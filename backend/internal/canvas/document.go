package canvas

import "sort"

// Participant 是文档名册里的一名成员。离开/掉线只翻转 IsActive，
// 名册从不删除成员（保留“谁来过”的完整记录）。
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ColorHint   string `json:"colorHint"`
	Cursor      *Point `json:"cursor,omitempty"`
	IsActive    bool   `json:"isActive"`
	LastSeenAt  int64  `json:"lastSeenAt"`
}

// Document 是一块画布的完整状态。
// 不变式：Actions 在任何修改调用返回后都按 Timestamp 升序；
// LastModified 不小于任何已接受操作的时间戳。
type Document struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Actions      []Action      `json:"actions"`
	LastModified int64         `json:"lastModified"`
	OwnerID      string        `json:"ownerId"`
	Participants []Participant `json:"participants"`
}

// Clone 返回完全独立的深拷贝。
func (d Document) Clone() Document {
	out := d
	out.Actions = make([]Action, len(d.Actions))
	for i, a := range d.Actions {
		out.Actions[i] = a.Clone()
	}
	out.Participants = make([]Participant, len(d.Participants))
	for i, p := range d.Participants {
		out.Participants[i] = p
		if p.Cursor != nil {
			c := *p.Cursor
			out.Participants[i].Cursor = &c
		}
	}
	return out
}

// 稳定排序：时间戳相同的操作保持既有相对顺序
func sortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Timestamp < actions[j].Timestamp
	})
}
