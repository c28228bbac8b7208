package task

// TaskOption mutates a task during a partial update. Constructors return nil
// for fields the caller did not provide; Apply skips nil options.
type TaskOption func(*Task)

func WithTitle(title *string) TaskOption {
	if title == nil {
		return nil
	}
	value := *title
	return func(task *Task) {
		task.Title = value
	}
}

// WithDescription sets the description. clear drops it to null.
func WithDescription(description *string, clear bool) TaskOption {
	if clear {
		return func(task *Task) {
			task.Description = nil
		}
	}
	if description == nil {
		return nil
	}
	value := *description
	return func(task *Task) {
		task.Description = &value
	}
}

func WithStatus(status *Status) TaskOption {
	if status == nil {
		return nil
	}
	value := *status
	return func(task *Task) {
		task.Status = value
	}
}

func (t *Task) Apply(options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}
