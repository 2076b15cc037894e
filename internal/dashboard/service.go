// Package dashboard はタスクと予定の概況を集計する。
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/taskdeck/internal/calendar"
	"github.com/hitoshi/taskdeck/internal/model"
	"github.com/hitoshi/taskdeck/internal/repository"
)

// TaskStats はタスク数の内訳。
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// UserInfo はサマリーに含めるユーザー情報。
type UserInfo struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	CalendarConnected bool   `json:"calendar_connected"`
}

// Summary はダッシュボードの集計結果。
type Summary struct {
	TaskStats           TaskStats `json:"task_stats"`
	TodayTasksCount     int       `json:"today_tasks_count"`
	UpcomingTasksCount  int       `json:"upcoming_tasks_count"`
	UpcomingEventsCount int       `json:"upcoming_events_count"`
	UserInfo            UserInfo  `json:"user_info"`
}

// Service はダッシュボードのサービス層。
type Service struct {
	tasks repository.TaskRepository
	now   func() time.Time
}

// NewService はServiceを生成する。
func NewService(tasks repository.TaskRepository) *Service {
	return &Service{
		tasks: tasks,
		now:   time.Now,
	}
}

// Summarize は呼び出しユーザーのサマリーを集計する。
// 「今日」はUTCの暦日[00:00, 翌00:00)、「今後のタスク」は今日から
// 7日以内に期限がある未完了タスクを数える。予定件数はモック
// プロバイダーの固定件数をそのまま報告する。
func (s *Service) Summarize(ctx context.Context, user *model.UserSession) (*Summary, error) {
	total, err := s.tasks.CountByOwner(ctx, user.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	completedFlag := true
	completed, err := s.tasks.CountByOwner(ctx, user.UserID, &completedFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}

	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayEnd := todayStart.Add(24 * time.Hour)
	weekEnd := todayStart.Add(7 * 24 * time.Hour)

	todayCount, err := s.tasks.CountDueInWindow(ctx, user.UserID, todayStart, todayEnd, false)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's tasks: %w", err)
	}

	upcomingCount, err := s.tasks.CountDueInWindow(ctx, user.UserID, todayStart, weekEnd, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count upcoming tasks: %w", err)
	}

	return &Summary{
		TaskStats: TaskStats{
			Total:     total,
			Completed: completed,
			Pending:   total - completed,
		},
		TodayTasksCount:     todayCount,
		UpcomingTasksCount:  upcomingCount,
		UpcomingEventsCount: calendar.EventCount,
		UserInfo: UserInfo{
			Name:              user.Name,
			Email:             user.Email,
			CalendarConnected: true,
		},
	}, nil
}
