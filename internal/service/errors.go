package service

import (
	"fmt"
	"taskManager/internal/models/task"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeStorageFailure   = "STORAGE_FAILURE"
	CodeSchemaValidation = "SCHEMA_VALIDATION_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

func NewNotFound(resource string, id int64) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("%s with ID %d not found", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("Invalid value for field '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

func NewInvalidStatus(status task.Status) *BusinessError {
	return NewBusinessError(CodeValidation,
		"Invalid status. Must be one of: "+task.StatusList(),
		ToDetail("field", "status"),
		ToDetail("reason", fmt.Sprintf("unknown status %q", status)),
		ToDetail("allowed", task.Statuses()),
	)
}

// NewStorageFailure hides the cause from the message; it stays reachable via Unwrap.
func NewStorageFailure(operation string, err error) *BusinessError {
	return &BusinessError{
		Code:    CodeStorageFailure,
		Message: "storage failure during " + operation,
		Details: map[string]any{"operation": operation},
		Err:     err,
	}
}
