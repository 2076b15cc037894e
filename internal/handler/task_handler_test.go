package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/taskdeck/internal/model"
	"github.com/hitoshi/taskdeck/internal/task"
)

type mockTaskService struct {
	createFn     func(ctx context.Context, ownerID string, input task.CreateTaskInput) (*model.Task, error)
	listFn       func(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error)
	updateFn     func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error)
	deleteFn     func(ctx context.Context, ownerID, taskID string) error
	categoriesFn func(ctx context.Context, ownerID string) ([]string, error)
}

func (m *mockTaskService) Create(ctx context.Context, ownerID string, input task.CreateTaskInput) (*model.Task, error) {
	return m.createFn(ctx, ownerID, input)
}

func (m *mockTaskService) List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	return m.listFn(ctx, ownerID, filter)
}

func (m *mockTaskService) Update(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	return m.updateFn(ctx, ownerID, taskID, patch)
}

func (m *mockTaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	return m.deleteFn(ctx, ownerID, taskID)
}

func (m *mockTaskService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	return m.categoriesFn(ctx, ownerID)
}

// compile-time interface check
var _ TaskServiceInterface = (*mockTaskService)(nil)

func sampleTask() *model.Task {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return &model.Task{
		ID:          "task-1",
		UserID:      "user-1",
		Title:       "Review PR",
		Description: "look at the diff",
		Category:    "Work",
		Priority:    "high",
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateTask_Success_Returns201(t *testing.T) {
	service := &mockTaskService{
		createFn: func(ctx context.Context, ownerID string, input task.CreateTaskInput) (*model.Task, error) {
			if ownerID != "user-1" {
				t.Errorf("ownerID = %q", ownerID)
			}
			if input.Title != "Review PR" {
				t.Errorf("title = %q", input.Title)
			}
			return sampleTask(), nil
		},
	}
	h := NewTaskHandler(service)

	body, _ := json.Marshal(map[string]string{
		"title":    "Review PR",
		"category": "Work",
		"priority": "high",
	})
	req := authedContext(httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body)))
	w := httptest.NewRecorder()
	h.CreateTask(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp taskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != "task-1" || resp.UserID != "user-1" || resp.Title != "Review PR" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateTask_ValidationError_Returns422(t *testing.T) {
	service := &mockTaskService{
		createFn: func(ctx context.Context, ownerID string, input task.CreateTaskInput) (*model.Task, error) {
			return nil, model.NewValidationError("タイトルは必須です")
		},
	}
	h := NewTaskHandler(service)

	body, _ := json.Marshal(map[string]string{"title": "   "})
	req := authedContext(httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body)))
	w := httptest.NewRecorder()
	h.CreateTask(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.Category != "validation" {
		t.Errorf("category = %q", resp.Category)
	}
}

func TestCreateTask_InvalidJSON_Returns400(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{})

	req := authedContext(httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader([]byte("{broken"))))
	w := httptest.NewRecorder()
	h.CreateTask(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateTask_WithoutSession_Returns401(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{})

	body, _ := json.Marshal(map[string]string{"title": "Review PR"})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateTask(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestListTasks_PassesQueryFilters(t *testing.T) {
	var gotFilter model.TaskFilter
	service := &mockTaskService{
		listFn: func(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
			gotFilter = filter
			return []*model.Task{sampleTask()}, nil
		},
	}
	h := NewTaskHandler(service)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/tasks?category=Work&completed=false", nil))
	w := httptest.NewRecorder()
	h.ListTasks(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotFilter.Category == nil || *gotFilter.Category != "Work" {
		t.Errorf("category filter = %v", gotFilter.Category)
	}
	if gotFilter.Completed == nil || *gotFilter.Completed != false {
		t.Errorf("completed filter = %v", gotFilter.Completed)
	}
}

func TestListTasks_InvalidCompletedParam_Returns400(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{})

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/tasks?completed=maybe", nil))
	w := httptest.NewRecorder()
	h.ListTasks(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// 該当タスクが無くてもnullではなく空配列を返す
func TestListTasks_Empty_ReturnsEmptyArray(t *testing.T) {
	service := &mockTaskService{
		listFn: func(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
			return []*model.Task{}, nil
		},
	}
	h := NewTaskHandler(service)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	w := httptest.NewRecorder()
	h.ListTasks(w, req)

	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestUpdateTask_NotFound_Returns404(t *testing.T) {
	service := &mockTaskService{
		updateFn: func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
			return nil, model.NewTaskNotFoundError(taskID)
		},
	}
	h := NewTaskHandler(service)

	body, _ := json.Marshal(map[string]bool{"completed": true})
	req := authedContext(newRequestWithURLParam(http.MethodPut, "/api/tasks/task-x", "id", "task-x", bytes.NewReader(body)))
	w := httptest.NewRecorder()
	h.UpdateTask(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != model.ErrCodeTaskNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestUpdateTask_PassesPatchFields(t *testing.T) {
	var gotPatch model.TaskPatch
	var gotTaskID string
	service := &mockTaskService{
		updateFn: func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
			gotTaskID = taskID
			gotPatch = patch
			updated := sampleTask()
			updated.Completed = true
			return updated, nil
		},
	}
	h := NewTaskHandler(service)

	body, _ := json.Marshal(map[string]any{"completed": true, "priority": "low"})
	req := authedContext(newRequestWithURLParam(http.MethodPut, "/api/tasks/task-1", "id", "task-1", bytes.NewReader(body)))
	w := httptest.NewRecorder()
	h.UpdateTask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotTaskID != "task-1" {
		t.Errorf("taskID = %q", gotTaskID)
	}
	if gotPatch.Completed == nil || !*gotPatch.Completed {
		t.Error("completed patch not passed")
	}
	if gotPatch.Priority == nil || *gotPatch.Priority != "low" {
		t.Errorf("priority patch = %v", gotPatch.Priority)
	}
	// 省略したフィールドはnilのまま
	if gotPatch.Title != nil {
		t.Errorf("title patch = %v, want nil", gotPatch.Title)
	}
}

func TestDeleteTask_Success_ReturnsMessage(t *testing.T) {
	service := &mockTaskService{
		deleteFn: func(ctx context.Context, ownerID, taskID string) error {
			return nil
		},
	}
	h := NewTaskHandler(service)

	req := authedContext(newRequestWithURLParam(http.MethodDelete, "/api/tasks/task-1", "id", "task-1", nil))
	w := httptest.NewRecorder()
	h.DeleteTask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["message"] != "Task deleted successfully" {
		t.Errorf("message = %q", resp["message"])
	}
}

func TestDeleteTask_NotFound_Returns404(t *testing.T) {
	service := &mockTaskService{
		deleteFn: func(ctx context.Context, ownerID, taskID string) error {
			return model.NewTaskNotFoundError(taskID)
		},
	}
	h := NewTaskHandler(service)

	req := authedContext(newRequestWithURLParam(http.MethodDelete, "/api/tasks/task-x", "id", "task-x", nil))
	w := httptest.NewRecorder()
	h.DeleteTask(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListCategories_ReturnsCategories(t *testing.T) {
	service := &mockTaskService{
		categoriesFn: func(ctx context.Context, ownerID string) ([]string, error) {
			return []string{"Home", "Work"}, nil
		},
	}
	h := NewTaskHandler(service)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/tasks/categories", nil))
	w := httptest.NewRecorder()
	h.ListCategories(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var categories []string
	json.NewDecoder(w.Body).Decode(&categories)
	if len(categories) != 2 || categories[0] != "Home" || categories[1] != "Work" {
		t.Errorf("categories = %v", categories)
	}
}

// サービス層の想定外エラーは500 + INTERNAL_ERRORに丸める
func TestHandleServiceError_UnknownError_Returns500(t *testing.T) {
	service := &mockTaskService{
		categoriesFn: func(ctx context.Context, ownerID string) ([]string, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h := NewTaskHandler(service)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/tasks/categories", nil))
	w := httptest.NewRecorder()
	h.ListCategories(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}
}

// newRequestWithURLParam はchiのURLパラメータを直接セットしたリクエストを作る。
func newRequestWithURLParam(method, target, key, value string, body *bytes.Reader) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
