package dto

import (
	"taskManager/internal/models/task"
	"time"
)

// CreateTaskRequest and UpdateTaskRequest are filled by DecodeCreateTask and
// DecodeUpdateTask, not by json.Unmarshal, so they carry no json tags.
type CreateTaskRequest struct {
	Title       string
	Description *string
}

// UpdateTaskRequest is a partial patch: nil pointers were absent from the body.
// ClearDescription is set when the body carried "description": null.
type UpdateTaskRequest struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *task.Status
}

func (u UpdateTaskRequest) Options() []task.TaskOption {
	return []task.TaskOption{
		task.WithTitle(u.Title),
		task.WithDescription(u.Description, u.ClearDescription),
		task.WithStatus(u.Status),
	}
}

type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// FromTaskList never returns nil, so an empty list encodes as [].
func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}
