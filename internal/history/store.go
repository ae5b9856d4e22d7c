// Package history persists completed slideshow generations in Postgres.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reelboard/backend/internal/models"
)

// Store reads and writes SlideshowGeneration rows.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the generations table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing gorm connection and runs migrations.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.SlideshowGeneration{}); err != nil {
		return nil, fmt.Errorf("migrating generations table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts a completed generation. Rows are never updated afterward.
func (s *Store) Save(ctx context.Context, gen *models.SlideshowGeneration) error {
	if err := s.db.WithContext(ctx).Create(gen).Error; err != nil {
		return fmt.Errorf("inserting generation: %w", err)
	}
	return nil
}

// List returns generations ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]models.SlideshowGeneration, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.SlideshowGeneration
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	return rows, nil
}

// Get returns one generation by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.SlideshowGeneration, error) {
	var row models.SlideshowGeneration
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("loading generation %s: %w", id, err)
	}
	return &row, nil
}

// Count returns the total number of persisted generations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.SlideshowGeneration{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting generations: %w", err)
	}
	return n, nil
}
