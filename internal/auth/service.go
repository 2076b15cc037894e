// Package auth は外部本人確認エクスチェンジとの連携とセッション発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/taskdeck/internal/model"
	"github.com/hitoshi/taskdeck/internal/repository"
)

// SessionMetrics はセッション発行に関するメトリクス記録のインターフェース。
type SessionMetrics interface {
	RecordSessionCreated()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration // セッション有効期間（絶対値、発行時点から）
}

// Service はセッション発行・破棄のビジネスロジックを提供する。
type Service struct {
	exchanger IdentityExchanger
	userRepo  repository.UserRepository
	metrics   SessionMetrics
	config    ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	exchanger IdentityExchanger,
	userRepo repository.UserRepository,
	metrics SessionMetrics,
	config ServiceConfig,
) *Service {
	return &Service{
		exchanger: exchanger,
		userRepo:  userRepo,
		metrics:   metrics,
		config:    config,
	}
}

// CreateSession は交換コードを本人情報に変換し、セッションを発行する。
// 同一emailのユーザーが既に存在する場合はトークンと有効期限を置き換える
// （セッションは1ユーザーにつき常に1つ）。
// 返すトークンはプロバイダー発行の値そのものであり、クライアントには
// このトークンをCookieとして渡す。
// エクスチェンジ側の障害はこのリクエストの失敗として伝播する。
func (s *Service) CreateSession(ctx context.Context, exchangeCode string) (*model.UserSession, string, error) {
	identity, err := s.exchanger.Exchange(ctx, exchangeCode)
	if err != nil {
		slog.Error("identity exchange failed", slog.String("error", err.Error()))
		return nil, "", model.NewUpstreamFailureError("identity exchange")
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        identity.Email,
		Name:         identity.Name,
		Picture:      identity.Picture,
		SessionToken: identity.SessionToken,
		ExpiresAt:    now.Add(s.config.SessionTTL),
		CreatedAt:    now,
	}

	// 既存ユーザーの場合はUPSERTが既存IDを返すため、
	// 生成したIDはそのときは使われない。
	userID, err := s.userRepo.UpsertSession(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to upsert session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}

	slog.Info("session created",
		slog.String("user_id", userID),
		slog.String("email", identity.Email),
	)

	return &model.UserSession{
		UserID:  userID,
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Picture,
	}, identity.SessionToken, nil
}

// Logout はユーザーレコードを削除してセッションを破棄する。
// 所有タスクはCASCADE削除される。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}
