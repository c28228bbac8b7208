package handlers

import (
	"net/http"
	"strconv"
	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MaxRequestBodyBytes caps task request bodies; a maximal valid task is far smaller.
const MaxRequestBodyBytes = 64 << 10

const (
	APIName     = "Task Management API"
	APIVersion  = "1.0.0"
	ServiceName = "task-manager"
)

type TaskHandler struct {
	TaskService Service
	StoreName   string
}

func NewTaskHandler(taskService Service, storeName string) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
		StoreName:   storeName,
	}
}

// Register mounts the task API on r.
func (h *TaskHandler) Register(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks) // GET /tasks
		r.Post("/", h.PostTask) // POST /tasks

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTaskByID)       // GET /tasks/{id}
			r.Put("/", h.UpdateTaskByID)    // PUT /tasks/{id}
			r.Delete("/", h.DeleteTaskByID) // DELETE /tasks/{id}
		})
	})
}

func (h *TaskHandler) Root(w http.ResponseWriter, r *http.Request) {
	responseWithBody(w, http.StatusOK, dto.RootResponse{
		Message: APIName,
		Version: APIVersion,
		Status:  "operational",
	})
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: health check failed", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", ServiceName),
			toPayload("store", h.StoreName),
		)
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", ServiceName),
		toPayload("store", h.StoreName),
	)
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !checkContentType(r, "application/json") {
		handleError(w, r, dto.NewSchemaError("body", "Content-Type must be application/json"), "create_task")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	request, err := dto.DecodeCreateTask(r.Body)
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	created, err := h.TaskService.CreateTask(r.Context(), request.Title, request.Description)
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.Int64("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithBody(w, http.StatusCreated, dto.FromTask(created))
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var filter *task.Status
	if raw := r.URL.Query().Get("status_filter"); raw != "" {
		s := task.Status(raw)
		filter = &s
	}

	tasks, err := h.TaskService.ListTasks(r.Context(), filter)
	if err != nil {
		handleError(w, r, err, "list_tasks")
		return
	}

	responseWithBody(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "get_task")
	if !ok {
		return
	}

	found, err := h.TaskService.GetTaskByID(r.Context(), id)
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}

	responseWithBody(w, http.StatusOK, dto.FromTask(found))
}

func (h *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := parseID(w, r, "update_task")
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		handleError(w, r, dto.NewSchemaError("body", "Content-Type must be application/json"), "update_task")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	request, err := dto.DecodeUpdateTask(r.Body)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	updated, err := h.TaskService.UpdateTask(r.Context(), id, request.Options()...)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, dto.FromTask(updated))
}

func (h *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "delete_task")
	if !ok {
		return
	}

	if err := h.TaskService.DeleteTask(r.Context(), id); err != nil {
		handleError(w, r, err, "delete_task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request, operation string) (int64, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		handleError(w, r, dto.NewSchemaError("id", "must be an integer"), operation)
		return 0, false
	}
	return id, true
}
