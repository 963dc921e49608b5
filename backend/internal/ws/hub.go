package ws

import (
	"sync"

	"canvasServer/backend/internal/cache"
	"canvasServer/backend/internal/canvas"
)

type Hub struct {
	presence cache.PresenceCache
	// 保护 rooms 的并发访问：加入/离开房间、广播时都先加锁
	mu sync.RWMutex
	// docID -> set of connections
	// 房间里存的是连接而不是 participantId：一个成员可开多个标签页/设备，
	// 广播要逐连接发。
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

// Join 将连接加入指定画布房间
func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

// Leave 将连接从指定画布房间移除
func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

func (h *Hub) BroadcastPresence(docID string, members []PresenceMember) {
	h.mu.RLock()
	conns := h.rooms[docID]
	h.mu.RUnlock()
	msg := ServerMessage{Type: "presence", DocID: docID, Members: members}
	for c := range conns {
		c.enqueue(msg)
	}
}

func (h *Hub) BroadcastCursor(docID, participantID string, cursor *canvas.Point) {
	h.mu.RLock()
	conns := h.rooms[docID]
	h.mu.RUnlock()
	msg := ServerMessage{Type: "cursor", DocID: docID, ParticipantID: participantID, Cursor: cursor}
	for c := range conns {
		c.enqueue(msg)
	}
}

// BroadcastAction 把已应用的操作推给房间内除提交者以外的所有连接
func (h *Hub) BroadcastAction(docID string, from *Conn, msg ActionBroadcastMessage) {
	h.mu.RLock()
	conns := h.rooms[docID]
	h.mu.RUnlock()
	for c := range conns {
		if c == from {
			continue
		}
		c.enqueue(msg)
	}
}
