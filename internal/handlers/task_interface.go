package handlers

import (
	"context"
	"taskManager/internal/models/task"
)

type Service interface {
	HealthCheck(context.Context) error
	CreateTask(context.Context, string, *string) (*task.Task, error)
	ListTasks(context.Context, *task.Status) ([]*task.Task, error)
	GetTaskByID(context.Context, int64) (*task.Task, error)
	UpdateTask(context.Context, int64, ...task.TaskOption) (*task.Task, error)
	DeleteTask(context.Context, int64) error
}
