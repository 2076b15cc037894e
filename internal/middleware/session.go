// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userSessionContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	userSessionContextKey = contextKey("user_session")

	// sessionTokenContextKey は解決に使われたセッショントークンを格納するためのキー。
	sessionTokenContextKey = contextKey("session_token")
)

// SessionStore はセッショントークンの解決と失効に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type SessionStore interface {
	FindByToken(ctx context.Context, token string) (*model.User, error)
	DeleteByToken(ctx context.Context, token string) error
}

// AuthMetrics は認証失敗の記録に必要なインターフェース。
type AuthMetrics interface {
	RecordAuthFailure(reason string)
}

// NewSessionMiddleware はリクエストからセッショントークンを解決し、
// 認証済みユーザーをコンテキストに注入するミドルウェアを返す。
//
// トークンはCookieを優先し、なければAuthorization: Bearerヘッダーを読む。
// 両方提示された場合はCookieが勝つ。ストアへの問い合わせは1回だけ行い、
// 期限切れレコードはその場で削除してから401を返す（遅延失効）。
// 未提示・無効・期限切れのいずれも同じ形状の401で応答し、メッセージ
// 以外でサブケースを判別できないようにする。ストア層の障害は検索・削除の
// いずれでも500として応答する。metricsはnilでもよい。
func NewSessionMiddleware(store SessionStore, metrics AuthMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractSessionToken(r)
			if token == "" {
				recordAuthFailure(metrics, "missing_token")
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("authentication required"))
				return
			}

			user, err := store.FindByToken(r.Context(), token)
			if err != nil {
				slog.Error("failed to resolve session token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				recordAuthFailure(metrics, "invalid_token")
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("invalid session token"))
				return
			}

			if user.ExpiresAt.Before(time.Now()) {
				// 期限切れレコードをその場で片付ける。削除は冪等なので
				// 並行リクエストと競合しても害はない。削除の失敗は他の
				// ストア障害と同様、このリクエストの致命的エラーとして扱う。
				if err := store.DeleteByToken(r.Context(), token); err != nil {
					slog.Error("failed to delete expired session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				recordAuthFailure(metrics, "expired")
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("session expired"))
				return
			}

			session := &model.UserSession{
				UserID:  user.ID,
				Email:   user.Email,
				Name:    user.Name,
				Picture: user.Picture,
			}

			ctx := context.WithValue(r.Context(), userSessionContextKey, session)
			ctx = context.WithValue(ctx, sessionTokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractSessionToken はCookie優先・Bearerフォールバックの順でトークンを取り出す。
func extractSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

func recordAuthFailure(metrics AuthMetrics, reason string) {
	if metrics != nil {
		metrics.RecordAuthFailure(reason)
	}
}

// UserSessionFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserSessionFromContext(ctx context.Context) (*model.UserSession, error) {
	session, ok := ctx.Value(userSessionContextKey).(*model.UserSession)
	if !ok || session == nil {
		return nil, fmt.Errorf("user session not found in context")
	}
	return session, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	session, err := UserSessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	return session.UserID, nil
}

// SessionTokenFromContext はリクエストの認証に使われたトークンを取得する。
// 上流コラボレーターへの問い合わせで再提示する場合に使用する。
func SessionTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(sessionTokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("session token not found in context")
	}
	return token, nil
}

// ContextWithUserSession はコンテキストに認証済みユーザーとトークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserSession(ctx context.Context, session *model.UserSession, token string) context.Context {
	ctx = context.WithValue(ctx, userSessionContextKey, session)
	return context.WithValue(ctx, sessionTokenContextKey, token)
}
