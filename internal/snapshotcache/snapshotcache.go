// Package snapshotcache persists the last assembled feed per viewer so a
// feed can be served, marked stale, while the document store is unreachable.
package snapshotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/anonto42/socialicon/internal/models"
)

// CachedFeed is one stored snapshot
type CachedFeed struct {
	Key       string         `gorm:"primaryKey;size:191"`
	Posts     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// Cache stores snapshots through GORM
type Cache struct {
	db *gorm.DB
}

// Open connects to the cache database named by url, which must start with
// postgres:// or sqlite://, and migrates the snapshot table.
func Open(url string) (*Cache, error) {
	var dialector gorm.Dialector
	sqliteDB := false
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialector = postgres.Open(url)
		log.Println("Snapshot cache: connecting to PostgreSQL...")
	case strings.HasPrefix(url, "sqlite://"):
		dsn := strings.TrimPrefix(url, "sqlite://")
		dialector = sqlite.Open(dsn)
		sqliteDB = true
		log.Println("Snapshot cache: opening SQLite database at", dsn)
	default:
		return nil, fmt.Errorf("invalid snapshot cache url %q: must start with postgres:// or sqlite://", url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if sqliteDB {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CachedFeed{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Save replaces the snapshot stored under key
func (c *Cache) Save(ctx context.Context, key string, posts []models.Post) error {
	raw, err := json.Marshal(posts)
	if err != nil {
		return err
	}
	row := CachedFeed{Key: key, Posts: datatypes.JSON(raw), UpdatedAt: time.Now().UTC()}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"posts", "updated_at"}),
	}).Create(&row).Error
}

// Load returns the snapshot stored under key, or nil when there is none
func (c *Cache) Load(ctx context.Context, key string) ([]models.Post, error) {
	var row CachedFeed
	err := c.db.WithContext(ctx).Where(&CachedFeed{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var posts []models.Post
	if err := json.Unmarshal(row.Posts, &posts); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return posts, nil
}

// Close releases the database connection
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
