package service

import (
	"context"
	"taskManager/internal/models/task"
	"taskManager/internal/repository"
)

type TaskRepository interface {
	HealthCheck(context.Context) error
	Create(context.Context, *task.Task) error
	List(context.Context, repository.ListFilter) ([]*task.Task, error)
	GetByID(context.Context, int64) (*task.Task, error)
	Update(context.Context, int64, func(*task.Task) error) (*task.Task, error)
	Delete(context.Context, int64) error
}
