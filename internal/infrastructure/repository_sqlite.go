package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// filterColumns are the JobRecord columns FindAll accepts as filter keys
var filterColumns = map[string]bool{
	"state":        true,
	"container":    true,
	"quality":      true,
	"failure_kind": true,
	"degraded":     true,
	"url":          true,
}

// MemoryDatabase keeps history for the life of the process only
const MemoryDatabase = ":memory:"

// SQLiteJobRepository implements JobRepository using SQLite
type SQLiteJobRepository struct {
	db *gorm.DB
}

// NewSQLiteJobRepository opens (creating if needed) the history database
func NewSQLiteJobRepository(dbPath string) (*SQLiteJobRepository, error) {
	if dir := filepath.Dir(dbPath); dbPath != MemoryDatabase && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == MemoryDatabase {
		// Every connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&domain.JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Create creates a new job record
func (r *SQLiteJobRepository) Create(job *domain.JobRecord) error {
	return r.db.Create(job).Error
}

// Update updates an existing job record
func (r *SQLiteJobRepository) Update(job *domain.JobRecord) error {
	return r.db.Save(job).Error
}

// Delete deletes a job record by ID
func (r *SQLiteJobRepository) Delete(id string) error {
	res := r.db.Delete(&domain.JobRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// FindByID finds a job record by ID
func (r *SQLiteJobRepository) FindByID(id string) (*domain.JobRecord, error) {
	var job domain.JobRecord
	err := r.db.First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindAll finds job records matching the filters, newest first. Unknown filter keys are rejected.
func (r *SQLiteJobRepository) FindAll(filters map[string]interface{}) ([]*domain.JobRecord, error) {
	query := r.db
	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	var jobs []*domain.JobRecord
	err := query.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// FindRecent returns the newest limit records
func (r *SQLiteJobRepository) FindRecent(limit int) ([]*domain.JobRecord, error) {
	var jobs []*domain.JobRecord
	err := r.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// MarkInterrupted fails every record left in a non-terminal state by a previous process
func (r *SQLiteJobRepository) MarkInterrupted() (int64, error) {
	now := time.Now()
	res := r.db.Model(&domain.JobRecord{}).
		Where("state IN ?", []domain.JobState{domain.StatePlanning, domain.StateDegrading, domain.StateRunning}).
		Updates(map[string]interface{}{
			"state":        domain.StateFailedUnknown,
			"failure_kind": domain.FailureUnknown,
			"detail":       "interrupted: process exited before the job finished",
			"completed_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

// GetStats returns job statistics
func (r *SQLiteJobRepository) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{}

	if err := r.db.Model(&domain.JobRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	stateCounts := []struct {
		State domain.JobState
		Count int64
	}{}

	if err := r.db.Model(&domain.JobRecord{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range stateCounts {
		switch sc.State {
		case domain.StatePlanning, domain.StateDegrading, domain.StateRunning:
			stats.Running += sc.Count
		case domain.StateSucceeded:
			stats.Succeeded = sc.Count
		case domain.StateCancelled:
			stats.Cancelled = sc.Count
		case domain.StateFailedInput, domain.StateFailedMissingTool, domain.StateFailedUnknown:
			stats.Failed += sc.Count
		}
	}

	if err := r.db.Model(&domain.JobRecord{}).Where("degraded = ?", true).Count(&stats.Degraded).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteJobRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
