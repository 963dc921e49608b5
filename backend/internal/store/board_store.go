package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// BoardRow 是 boards 表的一行。操作日志不进这张表，
// 它只承载画布的元信息（ID/标题/属主）。
type BoardRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Title     string    `gorm:"size:255;uniqueIndex"`
	OwnerID   uint64    `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (BoardRow) TableName() string { return "boards" }

type BoardStore struct{ db *gorm.DB }

func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&BoardRow{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewBoardStore(db *gorm.DB) *BoardStore {
	return &BoardStore{db: db}
}

func (s *BoardStore) GetBoardID(ctx context.Context, title string) (string, error) {
	var row BoardRow
	if err := s.db.WithContext(ctx).Select("id").Where("title = ?", title).First(&row).Error; err != nil {
		// gorm.ErrRecordNotFound
		return "", err
	}
	return row.ID, nil
}

func (s *BoardStore) CreateBoard(ctx context.Context, ownerID uint64, title string) (string, error) {
	row := BoardRow{
		ID:      uuid.NewString(),
		Title:   title,
		OwnerID: ownerID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}
