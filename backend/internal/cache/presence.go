package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type PresenceCache interface {
	AddMember(ctx context.Context, docID, participantID, displayName, colorHint string, ttl time.Duration) error
	GetBoards(ctx context.Context) ([]string, error)
	GetAliveMembers(ctx context.Context, docID string) ([]PresenceMember, error)
	SetCursor(ctx context.Context, docID, participantID string, jsonData []byte, ttl time.Duration) error
	GetCursor(ctx context.Context, docID, participantID string) ([]byte, error)
}

// 具体实现：基于 redis 的 PresenceCache。
// UniversalClient 同时兼容单机 Client 和 ClusterClient。
type redisPresence struct {
	rdb redis.UniversalClient
}

type PresenceMember struct {
	ParticipantID string
	DisplayName   string
	ColorHint     string
}

func NewRedisPresence(rdb redis.UniversalClient) PresenceCache {
	return &redisPresence{rdb: rdb}
}

func (p *redisPresence) AddMember(ctx context.Context, docID, participantID, displayName, colorHint string, ttl time.Duration) error {
	// 刷新 TTL 也直接调用 AddMember 即可
	tx := p.rdb.TxPipeline()
	// ZSET score 使用 expireAt（Unix 秒），用于表达“逻辑 TTL”
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, roomKey(docID), redis.Z{Score: float64(expireAt), Member: participantID})
	tx.HSet(ctx, namesKey(docID), participantID, displayName)
	if colorHint != "" {
		tx.HSet(ctx, colorsKey(docID), participantID, colorHint)
	}
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) GetBoards(ctx context.Context) ([]string, error) {
	var boards []string
	iter := p.rdb.Scan(ctx, 0, "presence:board:*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		// names/colors 键也以 presence:board: 开头，需要过滤掉
		if strings.Contains(k, ":names:") || strings.Contains(k, ":colors:") {
			continue
		}
		docID := strings.TrimPrefix(k, "presence:board:")
		if docID != "" {
			boards = append(boards, docID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

func (p *redisPresence) SetCursor(ctx context.Context, docID, participantID string, jsonData []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, cursorKey(docID, participantID), jsonData, ttl).Err()
}

func (p *redisPresence) GetCursor(ctx context.Context, docID, participantID string) ([]byte, error) {
	return p.rdb.Get(ctx, cursorKey(docID, participantID)).Bytes()
}

func (p *redisPresence) GetAliveMembers(ctx context.Context, docID string) ([]PresenceMember, error) {
	// step1: 清理过期成员
	// 约定：score=expireAt（Unix 秒），expireAt <= now 视为过期
	now := time.Now().Unix()
	luaScript := `
	-- KEYS[1] = roomKey(docID)
	-- KEYS[2] = namesKey(docID)
	-- KEYS[3] = colorsKey(docID)
	-- ARGV[1] = now (unix seconds)

	local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	if #expired > 0 then
		redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
		redis.call("HDEL", KEYS[2], unpack(expired))
		redis.call("HDEL", KEYS[3], unpack(expired))
	end
	return #expired
	`

	script := redis.NewScript(luaScript)
	_, err := script.Run(ctx, p.rdb, []string{roomKey(docID), namesKey(docID), colorsKey(docID)}, now).Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	// step2: 查询在线成员
	aliveIDs, err := p.rdb.ZRangeByScore(ctx, roomKey(docID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10), // > now
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	// step3: 批量获取名字和颜色
	names, err := p.rdb.HMGet(ctx, namesKey(docID), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	colors, err := p.rdb.HMGet(ctx, colorsKey(docID), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	members := make([]PresenceMember, 0, len(aliveIDs))
	for i, id := range aliveIDs {
		m := PresenceMember{ParticipantID: id}
		if i < len(names) && names[i] != nil {
			m.DisplayName, _ = names[i].(string)
		}
		if i < len(colors) && colors[i] != nil {
			m.ColorHint, _ = colors[i].(string)
		}
		members = append(members, m)
	}
	return members, nil
}
