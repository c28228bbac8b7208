package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"taskManager/internal/handlers"
	"taskManager/internal/handlers/dto"
	"taskManager/internal/models/task"
	"taskManager/internal/service"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskService - service mock
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskService) CreateTask(ctx context.Context, title string, description *string) (*task.Task, error) {
	args := m.Called(ctx, title, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) ListTasks(ctx context.Context, status *task.Status) ([]*task.Task, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskService) GetTaskByID(ctx context.Context, id int64) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, id int64, options ...task.TaskOption) (*task.Task, error) {
	args := m.Called(ctx, id, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ handlers.Service = (*MockTaskService)(nil)

func newRouter(svc handlers.Service) http.Handler {
	r := chi.NewRouter()
	handlers.NewTaskHandler(svc, "inmemory").Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func sampleTask(id int64) *task.Task {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &task.Task{
		ID:        id,
		Title:     "Buy milk",
		Status:    task.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestTaskHandler_Root(t *testing.T) {
	w := do(t, newRouter(new(MockTaskService)), http.MethodGet, "/", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeMap(t, w)
	assert.Equal(t, "Task Management API", body["message"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "operational", body["status"])
}

func TestTaskHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedState  string
	}{
		{
			name: "success - healthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedState:  "ok",
		},
		{
			name: "error - unhealthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("store unavailable"))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := do(t, newRouter(mockService), http.MethodGet, "/health", "", "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decodeMap(t, w)
			assert.Equal(t, tt.expectedState, body["status"])
			assert.Equal(t, "task-manager", body["service"])
			assert.Equal(t, "inmemory", body["store"])
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_PostTask(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    string
		contentType    string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedError  string
	}{
		{
			name:        "success - create task",
			requestBody: `{"title":"Buy milk","description":"2 litres"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "Buy milk", mock.MatchedBy(func(d *string) bool {
					return d != nil && *d == "2 litres"
				})).Return(sampleTask(1), nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "success - charset parameter is accepted",
			requestBody: `{"title":"Buy milk"}`,
			contentType: "application/json; charset=utf-8",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "Buy milk", (*string)(nil)).Return(sampleTask(1), nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "error - invalid content type",
			requestBody:    `{"title":"Buy milk"}`,
			contentType:    "text/plain",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  service.CodeSchemaValidation,
		},
		{
			name:           "error - invalid JSON",
			requestBody:    `{invalid json}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  service.CodeSchemaValidation,
		},
		{
			name:           "error - missing title",
			requestBody:    `{"description":"no title"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  service.CodeSchemaValidation,
		},
		{
			name:           "error - title too long",
			requestBody:    `{"title":"` + strings.Repeat("x", 201) + `"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  service.CodeSchemaValidation,
		},
		{
			name:        "error - blank title rejected by service",
			requestBody: `{"title":"   "}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "   ", (*string)(nil)).
					Return(nil, service.NewValidationError("title", "must not be blank"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  service.CodeValidation,
		},
		{
			name:        "error - storage failure",
			requestBody: `{"title":"Buy milk"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "Buy milk", (*string)(nil)).
					Return(nil, service.NewStorageFailure("create", errors.New("disk full")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  service.CodeStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := do(t, newRouter(mockService), http.MethodPost, "/tasks", tt.requestBody, tt.contentType)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.expectedStatus == http.StatusCreated {
				var response dto.TaskResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, int64(1), response.ID)
				assert.Equal(t, "Buy milk", response.Title)
				assert.Equal(t, "pending", response.Status)
			} else {
				body := decodeMap(t, w)
				assert.Equal(t, tt.expectedError, body["error"])
				assert.NotContains(t, w.Body.String(), "disk full")
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_PostTask_SchemaErrorListsFields(t *testing.T) {
	w := do(t, newRouter(new(MockTaskService)), http.MethodPost, "/tasks", `{"title":null}`, "application/json")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeMap(t, w)
	fields, ok := body["fields"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "title", fields[0].(map[string]any)["field"])
}

func TestTaskHandler_PostTask_NullDescriptionEncodesAsNull(t *testing.T) {
	mockService := new(MockTaskService)
	mockService.On("CreateTask", mock.Anything, "Buy milk", (*string)(nil)).Return(sampleTask(1), nil)

	w := do(t, newRouter(mockService), http.MethodPost, "/tasks", `{"title":"Buy milk"}`, "")

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeMap(t, w)
	value, present := body["description"]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestTaskHandler_ListTasks(t *testing.T) {
	t.Run("success - all tasks", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("ListTasks", mock.Anything, (*task.Status)(nil)).
			Return([]*task.Task{sampleTask(1), sampleTask(2)}, nil)

		w := do(t, newRouter(mockService), http.MethodGet, "/tasks", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var response []dto.TaskResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Len(t, response, 2)
	})

	t.Run("success - empty list is an array", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("ListTasks", mock.Anything, mock.MatchedBy(func(s *task.Status) bool {
			return s != nil && *s == task.StatusPending
		})).Return([]*task.Task{}, nil)

		w := do(t, newRouter(mockService), http.MethodGet, "/tasks?status_filter=pending", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("error - invalid status filter", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("ListTasks", mock.Anything, mock.Anything).
			Return(nil, service.NewBusinessError(service.CodeValidation, "Invalid status filter"))

		w := do(t, newRouter(mockService), http.MethodGet, "/tasks?status_filter=archived", "", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, service.CodeValidation, decodeMap(t, w)["error"])
	})
}

func TestTaskHandler_GetTaskByID(t *testing.T) {
	tests := []struct {
		name           string
		taskID         string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:   "success - get task",
			taskID: "1",
			setupMock: func(m *MockTaskService) {
				m.On("GetTaskByID", mock.Anything, int64(1)).Return(sampleTask(1), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "error - task not found",
			taskID: "999",
			setupMock: func(m *MockTaskService) {
				m.On("GetTaskByID", mock.Anything, int64(999)).Return(nil, service.NewNotFound("Task", 999))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "error - non-integer id",
			taskID:         "abc",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := do(t, newRouter(mockService), http.MethodGet, "/tasks/"+tt.taskID, "", "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusNotFound {
				body := decodeMap(t, w)
				assert.Equal(t, "Task with ID 999 not found", body["message"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_UpdateTaskByID(t *testing.T) {
	tests := []struct {
		name           string
		taskID         string
		requestBody    string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:        "success - partial update",
			taskID:      "1",
			requestBody: `{"status":"completed"}`,
			setupMock: func(m *MockTaskService) {
				updated := sampleTask(1)
				updated.Status = task.StatusCompleted
				m.On("UpdateTask", mock.Anything, int64(1), mock.Anything).Return(updated, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "error - invalid status",
			taskID:      "1",
			requestBody: `{"status":"archived"}`,
			setupMock: func(m *MockTaskService) {
				m.On("UpdateTask", mock.Anything, int64(1), mock.Anything).
					Return(nil, service.NewInvalidStatus("archived"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "error - not found",
			taskID:      "404",
			requestBody: `{"title":"x"}`,
			setupMock: func(m *MockTaskService) {
				m.On("UpdateTask", mock.Anything, int64(404), mock.Anything).
					Return(nil, service.NewNotFound("Task", 404))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "error - null title",
			taskID:         "1",
			requestBody:    `{"title":null}`,
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "error - non-integer id",
			taskID:         "1.5",
			requestBody:    `{}`,
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := do(t, newRouter(mockService), http.MethodPut, "/tasks/"+tt.taskID, tt.requestBody, "application/json")

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_UpdateTaskByID_PassesPatchOptions(t *testing.T) {
	mockService := new(MockTaskService)
	var captured []task.TaskOption
	mockService.On("UpdateTask", mock.Anything, int64(3), mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]task.TaskOption)
		}).
		Return(sampleTask(3), nil)

	w := do(t, newRouter(mockService), http.MethodPut, "/tasks/3", `{"description":null,"status":"in_progress"}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	desc := "old"
	target := &task.Task{Title: "keep", Description: &desc, Status: task.StatusPending}
	target.Apply(captured...)

	assert.Equal(t, "keep", target.Title)
	assert.Nil(t, target.Description)
	assert.Equal(t, task.StatusInProgress, target.Status)
}

func TestTaskHandler_DeleteTaskByID(t *testing.T) {
	tests := []struct {
		name           string
		taskID         string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:   "success - delete task",
			taskID: "1",
			setupMock: func(m *MockTaskService) {
				m.On("DeleteTask", mock.Anything, int64(1)).Return(nil)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "error - task not found",
			taskID: "1",
			setupMock: func(m *MockTaskService) {
				m.On("DeleteTask", mock.Anything, int64(1)).Return(service.NewNotFound("Task", 1))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "error - non-integer id",
			taskID:         "one",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := do(t, newRouter(mockService), http.MethodDelete, "/tasks/"+tt.taskID, "", "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusNoContent {
				assert.Empty(t, w.Body.String())
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_UnexpectedError(t *testing.T) {
	mockService := new(MockTaskService)
	mockService.On("GetTaskByID", mock.Anything, int64(1)).Return(nil, errors.New("boom"))

	w := do(t, newRouter(mockService), http.MethodGet, "/tasks/1", "", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeMap(t, w)["error"])
}

func TestTaskHandler_OversizedBody(t *testing.T) {
	huge := `{"title":"x","description":"` + strings.Repeat("a", handlers.MaxRequestBodyBytes) + `"}`

	tests := []struct {
		method string
		target string
	}{
		{method: http.MethodPost, target: "/tasks"},
		{method: http.MethodPut, target: "/tasks/1"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			mockService := new(MockTaskService)

			w := do(t, newRouter(mockService), tt.method, tt.target, huge, "application/json")

			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			body := decodeMap(t, w)
			assert.Equal(t, service.CodeSchemaValidation, body["error"])
			fields := body["fields"].([]any)
			require.Len(t, fields, 1)
			assert.Equal(t, "body", fields[0].(map[string]any)["field"])
			mockService.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything, mock.Anything)
			mockService.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
