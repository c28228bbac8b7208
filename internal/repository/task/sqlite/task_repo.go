package sqlite

import (
	"context"
	"errors"
	"fmt"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// taskRecord is the GORM mapping of the tasks table. Timestamps are owned by
// the service, so GORM's automatic tracking is switched off.
type taskRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"size:200;not null"`
	Description *string   `gorm:"size:1000"`
	Status      string    `gorm:"size:20;not null;default:pending;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

func toRecord(t *task.Task) *taskRecord {
	return &taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r *taskRecord) toTask() *task.Task {
	return &task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type Storage struct {
	db   *gorm.DB
	path string
}

// New opens (creating if needed) the SQLite database at path and migrates the
// tasks table. echo turns on SQL statement logging.
func New(path string, echo bool) (*Storage, error) {
	logLevel := gormlogger.Silent
	if echo {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		logger.Error("Repository: failed to open sqlite database", err, zap.String("path", path))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// one writer at a time; also keeps ":memory:" on a single shared connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		_ = sqlDB.Close()
		logger.Error("Repository: sqlite migration failed", err)
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	logger.Info("Repository: connected to SQLite", zap.String("path", path))
	return &Storage{db: db, path: path}, nil
}

func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		logger.Error("Repository: failed to get sql.DB", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Repository: failed to close sqlite", err)
		return
	}
	logger.Info("Repository: SQLite connection closed", zap.String("path", s.path))
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	record := toRecord(taskToCreate)
	record.ID = 0
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		logger.Error("Repository: failed to insert task", err)
		return fmt.Errorf("insert task: %w", err)
	}
	taskToCreate.ID = record.ID
	return nil
}

func (s *Storage) List(ctx context.Context, filter repo.ListFilter) ([]*task.Task, error) {
	query := s.db.WithContext(ctx).Order("id")
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	var records []taskRecord
	if err := query.Find(&records).Error; err != nil {
		logger.Error("Repository: failed to query tasks", err)
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(records))
	for i := range records {
		tasks = append(tasks, records[i].toTask())
	}
	return tasks, nil
}

func (s *Storage) GetByID(ctx context.Context, id int64) (*task.Task, error) {
	var record taskRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err)
		return nil, fmt.Errorf("get task: %w", err)
	}
	return record.toTask(), nil
}

// Update runs the read-modify-write in one transaction; the single pooled
// connection serialises concurrent writers.
func (s *Storage) Update(ctx context.Context, id int64, mutate func(*task.Task) error) (*task.Task, error) {
	var updated *task.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record taskRecord
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return fmt.Errorf("load task: %w", err)
		}

		current := record.toTask()
		working := current.Clone()
		if err := mutate(working); err != nil {
			return err
		}
		working.ID = id
		working.CreatedAt = current.CreatedAt

		next := toRecord(working)
		if err := tx.Model(&taskRecord{}).Where("id = ?", id).Updates(map[string]any{
			"title":       next.Title,
			"description": next.Description,
			"status":      next.Status,
			"updated_at":  next.UpdatedAt,
		}).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		updated = working
		return nil
	})
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Warn("Repository: update aborted", zap.Int64("task_id", id), zap.Error(err))
		}
		return nil, err
	}
	return updated, nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if err := result.Error; err != nil {
		logger.Error("Repository: failed to delete task", err)
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
