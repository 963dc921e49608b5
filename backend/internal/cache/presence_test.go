package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func newTestPresence(t *testing.T) (PresenceCache, *redis.Client) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return NewRedisPresence(rdb), rdb
}

func TestPresence_AddAndListMembers(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	if err := p.AddMember(ctx, "doc-1", "u-1", "alice", "#f00", 60*time.Second); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := p.AddMember(ctx, "doc-1", "u-2", "bob", "", 60*time.Second); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}

	members, err := p.GetAliveMembers(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetAliveMembers error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len = %d, want 2", len(members))
	}
	byID := make(map[string]PresenceMember)
	for _, m := range members {
		byID[m.ParticipantID] = m
	}
	if byID["u-1"].DisplayName != "alice" || byID["u-1"].ColorHint != "#f00" {
		t.Fatalf("u-1 = %+v", byID["u-1"])
	}
}

func TestPresence_ExpiredMemberCleaned(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	// 逻辑 TTL 已过期的成员在下一次查询时被 Lua 脚本清掉
	if err := p.AddMember(ctx, "doc-1", "u-1", "alice", "", -1*time.Second); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	members, err := p.GetAliveMembers(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetAliveMembers error: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expired member still listed: %+v", members)
	}
}

func TestPresence_CursorRoundTrip(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	payload := []byte(`{"x":12.5,"y":80}`)
	if err := p.SetCursor(ctx, "doc-1", "u-1", payload, 30*time.Second); err != nil {
		t.Fatalf("SetCursor error: %v", err)
	}
	got, err := p.GetCursor(ctx, "doc-1", "u-1")
	if err != nil {
		t.Fatalf("GetCursor error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("cursor = %s, want %s", got, payload)
	}
}

func TestPresence_GetBoards(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	_ = p.AddMember(ctx, "doc-a", "u-1", "alice", "", 60*time.Second)
	_ = p.AddMember(ctx, "doc-b", "u-2", "bob", "", 60*time.Second)

	boards, err := p.GetBoards(ctx)
	if err != nil {
		t.Fatalf("GetBoards error: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("boards = %v, want 2 entries", boards)
	}
}
