package ws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"canvasServer/backend/internal/board"
	"canvasServer/backend/internal/canvas"

	"github.com/gorilla/websocket"
)

const presenceTTL = 600 * time.Second

type Conn struct {
	ws            *websocket.Conn
	hub           *Hub
	docID         string
	participantID string
	displayName   string
	colorHint     string
	send          chan OutboundMessage
	// 协作画布引擎服务
	svc board.Service
	// 信号量控制，限制提交链路并发
	sem *board.SemaphoreControl
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string          { return m.Type }
func (m ActionAppliedMessage) MessageType() string   { return m.Type }
func (m ActionBroadcastMessage) MessageType() string { return m.Type }

func NewConn(ws *websocket.Conn, hub *Hub, userID uint64, displayName, colorHint string, svc board.Service, sem *board.SemaphoreControl) *Conn {
	return &Conn{
		ws:            ws,
		hub:           hub,
		participantID: strconv.FormatUint(userID, 10),
		displayName:   displayName,
		colorHint:     colorHint,
		send:          make(chan OutboundMessage, 32),
		svc:           svc,
		sem:           sem,
	}
}

func (c *Conn) enqueue(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
		// 队列满了就丢弃，慢消费端不拖垮广播
	}
}

// refreshRoster 用 presence 里的在线成员刷新文档名册（整体覆盖写回，
// 掉线成员只翻转 IsActive），再把在线列表广播给房间。
func (c *Conn) refreshRoster(ctx context.Context) {
	members, err := c.hub.presence.GetAliveMembers(ctx, c.docID)
	if err != nil {
		log.Printf("get alive members error: %v", err)
		return
	}

	entries := make([]board.RosterEntry, 0, len(members))
	wireMembers := make([]PresenceMember, 0, len(members))
	for _, m := range members {
		entry := board.RosterEntry{ID: m.ParticipantID, DisplayName: m.DisplayName, ColorHint: m.ColorHint}
		if raw, err := c.hub.presence.GetCursor(ctx, c.docID, m.ParticipantID); err == nil {
			var pt canvas.Point
			if json.Unmarshal(raw, &pt) == nil {
				entry.Cursor = &pt
			}
		}
		entries = append(entries, entry)
		wireMembers = append(wireMembers, PresenceMember{
			ParticipantID: m.ParticipantID,
			DisplayName:   m.DisplayName,
			ColorHint:     m.ColorHint,
		})
	}

	if err := c.svc.RefreshRoster(ctx, c.docID, entries); err != nil {
		log.Printf("refresh roster error: %v", err)
	}
	c.hub.BroadcastPresence(c.docID, wireMembers)
}

func (c *Conn) handleActionSubmit(ctx context.Context, docID string, raw map[string]any) {
	submitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	if err := c.sem.Acquire(submitCtx); err != nil {
		c.enqueue(ServerMessage{Type: "error", Content: err.Error()})
		return
	}
	defer c.sem.Release()

	// 提交者身份以鉴权结果为准，客户端填的 authorId 直接覆盖
	if raw != nil {
		raw["authorId"] = c.participantID
	}

	applied, err := c.svc.Submit(submitCtx, docID, raw)
	if err != nil {
		c.enqueue(ServerMessage{Type: "error", Content: err.Error()})
		return
	}

	c.enqueue(ActionAppliedMessage{
		Type:              "action_applied",
		DocID:             docID,
		ActionID:          applied.ActionID,
		HadConflict:       applied.HadConflict,
		ResolvedTimestamp: applied.Resolved.Timestamp,
	})
	c.hub.BroadcastAction(docID, c, ActionBroadcastMessage{
		Type:      "action_broadcast",
		DocID:     docID,
		AuthorID:  applied.Resolved.AuthorID,
		Action:    applied.Resolved,
		AppliedAt: applied.AppliedAt,
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		var clientMessage ClientMessage
		if err := c.ws.ReadJSON(&clientMessage); err != nil {
			c.hub.Leave(c.docID, c)
			close(c.send)
			return
		}
		switch clientMessage.Type {
		case "heartbeat":
			if c.docID == "" {
				continue
			}
			if err := c.hub.presence.AddMember(ctx, c.docID, c.participantID, c.displayName, c.colorHint, presenceTTL); err != nil {
				log.Printf("add member error: %v", err)
			}
			c.refreshRoster(ctx)
			c.enqueue(ServerMessage{Type: "feedback", Content: "Heartbeat received"})

		case "createBoard":
			docID, err := c.svc.CreateBoard(ctx, parseOwner(c.participantID), clientMessage.BoardTitle)
			if err != nil {
				log.Printf("create board error: %v", err)
				c.enqueue(ServerMessage{Type: "error", Content: "CREATE_BOARD_FAILED"})
				continue
			}
			_ = c.hub.presence.AddMember(ctx, docID, c.participantID, c.displayName, c.colorHint, presenceTTL)
			c.enqueue(ServerMessage{Type: "createBoard", DocID: docID})

		case "joinBoard":
			docID := clientMessage.DocID
			if clientMessage.BoardTitle != "" {
				id, err := c.svc.GetBoardID(ctx, clientMessage.BoardTitle)
				if err != nil {
					log.Printf("get board id error: %v", err)
					c.enqueue(ServerMessage{Type: "error", Content: "GET_BOARD_FAILED"})
					continue
				}
				docID = id
			}
			if docID == "" {
				c.enqueue(ServerMessage{Type: "error", Content: "MISSING_DOC_ID"})
				continue
			}
			if c.docID != "" && c.docID != docID {
				// 先离开旧房间
				c.hub.Leave(c.docID, c)
			}
			c.docID = docID
			c.hub.Join(c.docID, c)
			if err := c.hub.presence.AddMember(ctx, c.docID, c.participantID, c.displayName, c.colorHint, presenceTTL); err != nil {
				log.Printf("add member error: %v", err)
			}
			c.refreshRoster(ctx)
			// 把当前全量状态发给新加入的连接
			if doc, err := c.svc.BoardState(ctx, c.docID); err == nil {
				c.enqueue(ServerMessage{Type: "joinBoard", DocID: c.docID, Board: &doc})
			} else {
				c.enqueue(ServerMessage{Type: "joinBoard", DocID: c.docID})
			}

		case "show_alive_members":
			members, err := c.hub.presence.GetAliveMembers(ctx, c.docID)
			if err != nil {
				log.Printf("get alive members error: %v", err)
			}
			wire := make([]PresenceMember, len(members))
			for i, m := range members {
				wire[i] = PresenceMember{ParticipantID: m.ParticipantID, DisplayName: m.DisplayName, ColorHint: m.ColorHint}
			}
			c.enqueue(ServerMessage{Type: "show_alive_members", DocID: c.docID, Members: wire})

		case "action_submit":
			// 在线成员的单条新提交：走校验 + 冲突消解
			c.handleActionSubmit(ctx, clientMessage.DocID, clientMessage.Action)

		case "state_sync":
			// 重连/迟到成员的批量同步：走幂等并集，不重跑冲突消解
			if _, err := c.svc.SyncState(ctx, clientMessage.DocID, clientMessage.Actions); err != nil {
				c.enqueue(ServerMessage{Type: "error", Content: err.Error()})
				continue
			}
			if doc, err := c.svc.BoardState(ctx, clientMessage.DocID); err == nil {
				c.enqueue(ServerMessage{Type: "state_sync", DocID: clientMessage.DocID, Board: &doc})
			}

		case "actions_since":
			actions, err := c.svc.ActionsSince(ctx, clientMessage.DocID, clientMessage.SinceTimestamp)
			if err != nil {
				c.enqueue(ServerMessage{Type: "error", Content: err.Error()})
				continue
			}
			c.enqueue(ServerMessage{Type: "actions_since", DocID: clientMessage.DocID, Actions: actions})

		case "cursor_move":
			if clientMessage.Cursor == nil || c.docID == "" {
				continue
			}
			b, err := json.Marshal(clientMessage.Cursor)
			if err != nil {
				continue
			}
			if err := c.hub.presence.SetCursor(ctx, c.docID, c.participantID, b, presenceTTL); err != nil {
				log.Printf("set cursor error: %v", err)
			}
			c.hub.BroadcastCursor(c.docID, c.participantID, clientMessage.Cursor)

		case "saveBoard":
			if err := c.svc.SaveSnapshot(ctx, clientMessage.DocID); err != nil {
				log.Printf("save board error: %v", err)
				c.enqueue(ServerMessage{Type: "error", Content: "SAVE_BOARD_FAILED"})
				continue
			}
			c.enqueue(ServerMessage{Type: "saveBoard", DocID: clientMessage.DocID})

		case "loadBoard":
			if err := c.svc.LoadBoard(ctx, clientMessage.DocID); err != nil {
				log.Printf("load board error: %v", err)
				c.enqueue(ServerMessage{Type: "error", Content: "LOAD_BOARD_FAILED"})
				continue
			}
			if doc, err := c.svc.BoardState(ctx, clientMessage.DocID); err == nil {
				c.enqueue(ServerMessage{Type: "loadBoard", DocID: clientMessage.DocID, Board: &doc})
			}

		default:
			// 忽略未知类型，回一条提示
			c.enqueue(ServerMessage{Type: "ignored", Content: "Unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	// 持续消费通道中的出站消息
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}

func parseOwner(participantID string) uint64 {
	id, _ := strconv.ParseUint(participantID, 10, 64)
	return id
}
