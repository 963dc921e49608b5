package cache

import "fmt"

// 键语义：
// - roomKey(docID):   画布在线成员（ZSet<participantId, expireAtUnix>，score=expireAt）
// - namesKey(docID):  画布内 participantId→displayName 映射（Hash）
// - colorsKey(docID): 画布内 participantId→colorHint 映射（Hash）
// - cursorKey:        单个成员的光标位置（String，JSON Point，带 TTL）

const (
	keyRoomFmt   = "presence:board:{docID:%s}"        // ZSet<participantId, expireAtUnix>
	keyNamesFmt  = "presence:board:names:{docID:%s}"  // Hash<participantId -> displayName>
	keyColorsFmt = "presence:board:colors:{docID:%s}" // Hash<participantId -> colorHint>
	keyCursorFmt = "presence:cursor:%s:%s"
)

func roomKey(docID string) string   { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID string) string  { return fmt.Sprintf(keyNamesFmt, docID) }
func colorsKey(docID string) string { return fmt.Sprintf(keyColorsFmt, docID) }

func cursorKey(docID, participantID string) string {
	return fmt.Sprintf(keyCursorFmt, docID, participantID)
}
