package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// SnapshotStore 把画布快照落到 MySQL。payload 是 canvas.Snapshot 的 JSON，
// 核心不关心存储介质，这里只负责无损往返。
type SnapshotStore struct{ db *sql.DB }

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) SaveBoardSnapshot(ctx context.Context, docID string, capturedAt int64, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO board_snapshots (document_id, captured_at, payload)
		VALUES (?, ?, ?)`,
		docID,
		capturedAt,
		payload,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 同一 (document_id, captured_at) 重复写入视为已保存
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return err
	}
	return nil
}

func (s *SnapshotStore) LoadLatestSnapshot(ctx context.Context, docID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM board_snapshots
		WHERE document_id = ?
		ORDER BY captured_at DESC
		LIMIT 1`,
		docID,
	).Scan(&payload)
	// sql.ErrNoRows
	if err != nil {
		return nil, err
	}
	return payload, nil
}
