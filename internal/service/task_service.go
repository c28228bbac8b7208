package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	"taskManager/internal/repository"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

type RepoType string

const (
	PostgresType RepoType = "postgres"
	SQLiteType   RepoType = "sqlite"
	InMemoryType RepoType = "inmemory"
)

const resourceTask = "Task"

type TaskService struct {
	repo     TaskRepository
	RepoType RepoType
	now      func() time.Time
}

type Option func(*TaskService)

// WithClock replaces time.Now as the source of task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

func NewTaskService(repo TaskRepository, repoType RepoType, opts ...Option) TaskService {
	s := TaskService{
		repo:     repo,
		RepoType: repoType,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// timestamps are kept at microsecond precision, the finest postgres stores
func (s *TaskService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, title string, description *string) (*task.Task, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	now := s.timestamp()
	newTask := &task.Task{
		Title:       title,
		Description: description,
		Status:      task.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, newTask); err != nil {
		logger.Error("Service: failed to create task", err)
		return nil, NewStorageFailure("create", err)
	}

	logger.Info("Service: task created", zap.Int64("task_id", newTask.ID))
	return newTask, nil
}

func (s *TaskService) ListTasks(ctx context.Context, status *task.Status) ([]*task.Task, error) {
	if status != nil && !status.Valid() {
		return nil, NewBusinessError(CodeValidation,
			"Invalid status filter. Must be one of: "+task.StatusList(),
			ToDetail("field", "status_filter"),
			ToDetail("reason", fmt.Sprintf("unknown status %q", *status)),
			ToDetail("allowed", task.Statuses()),
		)
	}

	tasks, err := s.repo.List(ctx, repository.ListFilter{Status: status})
	if err != nil {
		logger.Error("Service: failed to list tasks", err)
		return nil, NewStorageFailure("list", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id int64) (*task.Task, error) {
	found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError("get", id, err)
	}
	return found, nil
}

// UpdateTask applies a partial patch. Validation runs against the patched copy
// inside the store session, so a rejected patch never reaches the store.
func (s *TaskService) UpdateTask(ctx context.Context, id int64, options ...task.TaskOption) (*task.Task, error) {
	updated, err := s.repo.Update(ctx, id, func(t *task.Task) error {
		t.Apply(options...)

		if err := validateTitle(t.Title); err != nil {
			return err
		}
		if err := validateDescription(t.Description); err != nil {
			return err
		}
		if !t.Status.Valid() {
			return NewInvalidStatus(t.Status)
		}

		now := s.timestamp()
		if now.Before(t.CreatedAt) {
			now = t.CreatedAt
		}
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.repoError("update", id, err)
	}

	logger.Info("Service: task updated",
		zap.Int64("task_id", updated.ID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.repoError("delete", id, err)
	}
	logger.Info("Service: task deleted", zap.Int64("task_id", id))
	return nil
}

func (s *TaskService) repoError(operation string, id int64, err error) error {
	var busErr *BusinessError
	if errors.As(err, &busErr) {
		return busErr
	}
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("Service: task not found",
			zap.Int64("target_id", id),
			zap.String("operation", operation))
		return NewNotFound(resourceTask, id)
	}
	logger.Error("Service: storage failure", err,
		zap.Int64("target_id", id),
		zap.String("operation", operation))
	return NewStorageFailure(operation, err)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title", "must not be blank")
	}
	if utf8.RuneCountInString(title) > task.MaxTitleLength {
		return NewValidationError("title", fmt.Sprintf("must be at most %d characters", task.MaxTitleLength))
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > task.MaxDescriptionLength {
		return NewValidationError("description", fmt.Sprintf("must be at most %d characters", task.MaxDescriptionLength))
	}
	return nil
}
