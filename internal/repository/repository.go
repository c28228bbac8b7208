package repository

import (
	"errors"
	"taskManager/internal/models/task"
)

var ErrNotFound = errors.New("task not found")

// ListFilter narrows List results. A nil Status lists every task.
type ListFilter struct {
	Status *task.Status
}

func (f ListFilter) Match(t *task.Task) bool {
	return f.Status == nil || t.Status == *f.Status
}
