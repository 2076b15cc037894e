package model

import "time"

// タスクのデフォルト値。リクエストで省略された場合に適用される。
const (
	DefaultTaskCategory = "General"
	DefaultTaskPriority = "Medium"
)

// Task はユーザーが所有するタスクを表す。
// UserIDは作成時に確定し、以降変更されない。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Category    string
	Priority    string // Low, Medium, High
	DueDate     *time.Time
	Reminder    *time.Time
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskFilter はタスク一覧取得時の絞り込み条件を表す。
// nilのフィールドは条件に加えない。所有者条件はフィルタとは独立に
// リポジトリ層で常に付与されるため、ここには含まれない。
type TaskFilter struct {
	Category  *string
	Completed *bool
}

// TaskPatch はタスクの部分更新を表す。nilのフィールドは変更しない。
type TaskPatch struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *string
	DueDate     *time.Time
	Reminder    *time.Time
	Completed   *bool
}

// IsEmpty はパッチに更新対象のフィールドが1つもないかどうかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.DueDate == nil && p.Reminder == nil && p.Completed == nil
}
