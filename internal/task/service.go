// Package task はタスク管理のドメインロジックを提供する。
// 全ての操作は認証済みユーザーのIDでスコープされ、他ユーザーの
// タスクは存在しないものとして扱われる。
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/taskdeck/internal/model"
	"github.com/hitoshi/taskdeck/internal/repository"
	"github.com/hitoshi/taskdeck/internal/security"
)

// TaskMetrics はタスク操作に関するメトリクス記録のインターフェース。
type TaskMetrics interface {
	RecordTaskCreated()
}

// CreateTaskInput はタスク作成の入力を表す。
type CreateTaskInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	DueDate     *time.Time
	Reminder    *time.Time
}

// Service はタスク管理のサービス層。
type Service struct {
	repo      repository.TaskRepository
	sanitizer security.TextSanitizerService
	metrics   TaskMetrics
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(repo repository.TaskRepository, sanitizer security.TextSanitizerService, metrics TaskMetrics) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// Create はタスクを作成する。所有者は呼び出し側が解決した認証済み
// ユーザーのIDであり、入力で上書きすることはできない。
// タイトルが空（空白のみを含む）の場合はバリデーションエラーを返す。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateTaskInput) (*model.Task, error) {
	title := s.sanitizer.Sanitize(input.Title)
	if strings.TrimSpace(title) == "" {
		return nil, model.NewValidationError("titleは必須です")
	}

	category := s.sanitizer.Sanitize(input.Category)
	if category == "" {
		category = model.DefaultTaskCategory
	}
	priority := input.Priority
	if priority == "" {
		priority = model.DefaultTaskPriority
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      ownerID,
		Title:       title,
		Description: s.sanitizer.Sanitize(input.Description),
		Category:    category,
		Priority:    priority,
		DueDate:     input.DueDate,
		Reminder:    input.Reminder,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTaskCreated()
	}

	return task, nil
}

// List は所有者のタスク一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	tasks, err := s.repo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// Update はタスクを部分更新する。更新対象の特定は常にid AND 所有者の
// 複合条件で行われるため、他ユーザーのタスクIDを指定した場合は
// 「存在しない」と同じNotFoundになる。
func (s *Service) Update(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if patch.Title != nil {
		title := s.sanitizer.Sanitize(*patch.Title)
		if strings.TrimSpace(title) == "" {
			return nil, model.NewValidationError("titleを空にすることはできません")
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := s.sanitizer.Sanitize(*patch.Description)
		patch.Description = &desc
	}
	if patch.Category != nil {
		category := s.sanitizer.Sanitize(*patch.Category)
		patch.Category = &category
	}

	task, err := s.repo.UpdateByOwner(ctx, ownerID, taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	return task, nil
}

// Delete はタスクを削除する。0行削除は成功ではなくNotFoundとして報告する。
func (s *Service) Delete(ctx context.Context, ownerID, taskID string) error {
	deleted, err := s.repo.DeleteByOwner(ctx, ownerID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}
	return nil
}

// Categories は所有者のタスクに使われている空でないカテゴリを辞書順で返す。
func (s *Service) Categories(ctx context.Context, ownerID string) ([]string, error) {
	categories, err := s.repo.ListCategoriesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}
