// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

// UserRepository はユーザー・セッションデータの永続化インターフェース。
// セッショントークンはusersレコードに内包され、1ユーザーにつき常に1つ。
type UserRepository interface {
	// UpsertSession は同一emailのユーザーが存在すればトークンと有効期限を
	// 置き換え、存在しなければ新規ユーザーとして挿入する。
	// いずれの場合も確定したユーザーIDを返す。
	UpsertSession(ctx context.Context, user *model.User) (string, error)

	// FindByToken はセッショントークンの完全一致でユーザーを取得する。
	// 見つからない場合はnilを返す。有効期限の判定は呼び出し側が行う。
	FindByToken(ctx context.Context, token string) (*model.User, error)

	// DeleteByToken は一致するトークンのレコードを削除する。
	// 対象が存在しない場合もエラーにしない（冪等）。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有タスクはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// 全ての参照・更新・削除はuser_idとの複合条件で行われ、
// タスクIDのみを鍵とする操作は存在しない。
type TaskRepository interface {
	// Create はタスクを作成する。UserIDは呼び出し側で確定済みであること。
	Create(ctx context.Context, task *model.Task) error

	// ListByOwner は所有者のタスク一覧を作成日時の降順で返す。
	// filterのnilフィールドは条件に加えない。
	ListByOwner(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error)

	// UpdateByOwner はid AND user_idの複合条件で部分更新を行う。
	// 一致する行がない場合はnilを返す（存在しないのか他人の所有物なのかは
	// 区別しない）。空のパッチは書き込まずに現在の行を返す。
	UpdateByOwner(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error)

	// DeleteByOwner はid AND user_idの複合条件で削除する。
	// 削除された場合はtrue、一致する行がなかった場合はfalseを返す。
	DeleteByOwner(ctx context.Context, ownerID, taskID string) (bool, error)

	// CountByOwner は所有者のタスク数を返す。completedがnilでない場合は
	// 完了状態でも絞り込む。
	CountByOwner(ctx context.Context, ownerID string, completed *bool) (int, error)

	// CountDueInWindow は期限が[from, to)に入るタスク数を返す。
	// pendingOnlyがtrueの場合は未完了のみ数える。
	CountDueInWindow(ctx context.Context, ownerID string, from, to time.Time, pendingOnly bool) (int, error)

	// ListCategoriesByOwner は所有者のタスクに使われている空でない
	// カテゴリを辞書順で返す。
	ListCategoriesByOwner(ctx context.Context, ownerID string) ([]string, error)
}
