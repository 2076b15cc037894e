package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskdeck/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// UpsertSession は同一emailのユーザーが存在すればトークンと有効期限を
// 置き換え、存在しなければ新規挿入する。単一文のUPSERTで行うため、
// 検索と更新の間に別リクエストが割り込む余地はない。
func (r *PostgresUserRepo) UpsertSession(ctx context.Context, user *model.User) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name, picture, session_token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (email) DO UPDATE
		 SET session_token = EXCLUDED.session_token,
		     expires_at    = EXCLUDED.expires_at
		 RETURNING id`,
		user.ID, user.Email, user.Name, user.Picture,
		user.SessionToken, user.ExpiresAt, user.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert session: %w", err)
	}
	return id, nil
}

// FindByToken はセッショントークンの完全一致でユーザーを取得する。
// 見つからない場合はnilを返す。期限切れレコードもそのまま返し、
// 期限判定と遅延削除は呼び出し側（Auth Gate）が担う。
func (r *PostgresUserRepo) FindByToken(ctx context.Context, token string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, picture, session_token, expires_at, created_at
		 FROM users
		 WHERE session_token = $1`,
		token,
	).Scan(&user.ID, &user.Email, &user.Name, &user.Picture,
		&user.SessionToken, &user.ExpiresAt, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by token: %w", err)
	}

	return user, nil
}

// DeleteByToken は一致するトークンのレコードを削除する。
// 0行削除でもエラーにしない。期限切れセッションの遅延削除は
// 並行リクエストと競合しうるため、冪等であることが前提になっている。
func (r *PostgresUserRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE session_token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session by token: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。所有タスクはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
