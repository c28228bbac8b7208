package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"taskManager/internal/models/task"
	"unicode/utf8"
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// SchemaError lists every structural problem found in a request.
type SchemaError struct {
	Fields []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

func (e *SchemaError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *SchemaError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func NewSchemaError(field, reason string) *SchemaError {
	e := &SchemaError{}
	e.Add(field, reason)
	return e
}

func DecodeCreateTask(body io.Reader) (CreateTaskRequest, error) {
	var req CreateTaskRequest

	fields, err := decodeObject(body)
	if err != nil {
		return req, err
	}

	schemaErr := &SchemaError{}

	title, present, ok := stringField(fields, "title", schemaErr, false)
	switch {
	case !present:
		schemaErr.Add("title", "field required")
	case ok:
		checkLength(schemaErr, "title", *title, task.MaxTitleLength)
		req.Title = *title
	}

	description, _, ok := stringField(fields, "description", schemaErr, true)
	if ok && description != nil {
		checkLength(schemaErr, "description", *description, task.MaxDescriptionLength)
		req.Description = description
	}

	return req, schemaErr.orNil()
}

func DecodeUpdateTask(body io.Reader) (UpdateTaskRequest, error) {
	var req UpdateTaskRequest

	fields, err := decodeObject(body)
	if err != nil {
		return req, err
	}

	schemaErr := &SchemaError{}

	if title, present, ok := stringField(fields, "title", schemaErr, false); present && ok {
		checkLength(schemaErr, "title", *title, task.MaxTitleLength)
		req.Title = title
	}

	if description, present, ok := stringField(fields, "description", schemaErr, true); present && ok {
		if description == nil {
			req.ClearDescription = true
		} else {
			checkLength(schemaErr, "description", *description, task.MaxDescriptionLength)
			req.Description = description
		}
	}

	if status, present, ok := stringField(fields, "status", schemaErr, false); present && ok {
		s := task.Status(*status)
		req.Status = &s
	}

	return req, schemaErr.orNil()
}

func decodeObject(body io.Reader) (map[string]json.RawMessage, error) {
	if body == nil {
		return nil, NewSchemaError("body", "field required")
	}

	var fields map[string]json.RawMessage
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewSchemaError("body", "field required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewSchemaError("body", fmt.Sprintf("must not exceed %d bytes", tooLarge.Limit))
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, NewSchemaError("body", "must be a JSON object")
		}
		return nil, NewSchemaError("body", "invalid JSON: "+err.Error())
	}
	if fields == nil {
		return nil, NewSchemaError("body", "must be a JSON object")
	}
	if decoder.More() {
		return nil, NewSchemaError("body", "must contain a single JSON object")
	}
	return fields, nil
}

// stringField reads an optional string member. present reports whether the key
// exists; ok is false when a problem was recorded. A JSON null yields a nil
// value and is only accepted when nullable is set.
func stringField(fields map[string]json.RawMessage, name string, schemaErr *SchemaError, nullable bool) (value *string, present bool, ok bool) {
	raw, present := fields[name]
	if !present {
		return nil, false, true
	}

	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if nullable {
			return nil, true, true
		}
		schemaErr.Add(name, "must not be null")
		return nil, true, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		schemaErr.Add(name, "must be a string")
		return nil, true, false
	}
	return &s, true, true
}

func checkLength(schemaErr *SchemaError, field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		schemaErr.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}
