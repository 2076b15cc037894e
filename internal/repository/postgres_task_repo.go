package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

// taskColumns はtasksテーブルのSELECT対象カラム。
const taskColumns = `id, user_id, title, description, category, priority,
	due_date, reminder, completed, created_at, updated_at`

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 全てのWHERE句にuser_idの等価条件を含める。タスクIDのみで行を特定する
// クエリはこのリポジトリには存在しない。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, category, priority,
		                    due_date, reminder, completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.UserID, task.Title, task.Description, task.Category,
		task.Priority, task.DueDate, task.Reminder, task.Completed,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// ListByOwner は所有者のタスク一覧を作成日時の降順で返す。
// 呼び出し側が指定するフィルタはuser_id条件にANDで連結されるだけで、
// user_id条件を置き換えることはできない。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{ownerID}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		query += fmt.Sprintf(" AND completed = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// UpdateByOwner はid AND user_idの複合条件で部分更新を行い、更新後の行を返す。
// 一致する行がない場合はnilを返す。単一のUPDATE文で所有判定と更新を
// 同時に行うため、チェックと更新の間に隙間はない。
// 空のパッチは書き込みを行わず、現在の行をそのまま返す
// （updated_atも進まない）。
func (r *PostgresTaskRepo) UpdateByOwner(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if patch.IsEmpty() {
		return r.findByOwner(ctx, ownerID, taskID)
	}

	sets := []string{}
	args := []any{}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		appendSet("title", *patch.Title)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.Category != nil {
		appendSet("category", *patch.Category)
	}
	if patch.Priority != nil {
		appendSet("priority", *patch.Priority)
	}
	if patch.DueDate != nil {
		appendSet("due_date", *patch.DueDate)
	}
	if patch.Reminder != nil {
		appendSet("reminder", *patch.Reminder)
	}
	if patch.Completed != nil {
		appendSet("completed", *patch.Completed)
	}
	appendSet("updated_at", time.Now().UTC())

	args = append(args, taskID, ownerID)
	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d RETURNING `+taskColumns,
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// findByOwner はid AND user_idの複合条件で1行取得する。一致しなければnil。
func (r *PostgresTaskRepo) findByOwner(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, ownerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// DeleteByOwner はid AND user_idの複合条件で削除する。
// 削除行数0はfalseで報告し、呼び出し側がNotFoundに変換する。
func (r *PostgresTaskRepo) DeleteByOwner(ctx context.Context, ownerID, taskID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// CountByOwner は所有者のタスク数を返す。
func (r *PostgresTaskRepo) CountByOwner(ctx context.Context, ownerID string, completed *bool) (int, error) {
	query := `SELECT count(*) FROM tasks WHERE user_id = $1`
	args := []any{ownerID}

	if completed != nil {
		args = append(args, *completed)
		query += fmt.Sprintf(" AND completed = $%d", len(args))
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// CountDueInWindow は期限が[from, to)に入るタスク数を返す。
func (r *PostgresTaskRepo) CountDueInWindow(ctx context.Context, ownerID string, from, to time.Time, pendingOnly bool) (int, error) {
	query := `SELECT count(*) FROM tasks
	          WHERE user_id = $1 AND due_date >= $2 AND due_date < $3`
	args := []any{ownerID, from, to}

	if pendingOnly {
		query += " AND completed = FALSE"
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count due tasks: %w", err)
	}
	return count, nil
}

// ListCategoriesByOwner は所有者のタスクに使われている空でないカテゴリを
// 辞書順で返す。
func (r *PostgresTaskRepo) ListCategoriesByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM tasks
		 WHERE user_id = $1 AND category <> ''
		 ORDER BY category`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return categories, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask は1行分のタスクをスキャンする。
func scanTask(row rowScanner) (*model.Task, error) {
	task := &model.Task{}
	var dueDate, reminder sql.NullTime
	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&task.Category, &task.Priority, &dueDate, &reminder,
		&task.Completed, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if reminder.Valid {
		task.Reminder = &reminder.Time
	}
	return task, nil
}
