// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/taskdeck/internal/middleware"
	"github.com/hitoshi/taskdeck/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// CreateSession は交換コードをセッションに変換する。
	// 発行済みトークンをCookieとしてクライアントに渡す。
	CreateSession(ctx context.Context, exchangeCode string) (*model.UserSession, string, error)
	// Logout はユーザーとそのセッションを破棄する。
	Logout(ctx context.Context, userID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はセッション管理のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// createSessionRequest はセッション作成リクエストのボディ。
type createSessionRequest struct {
	SessionID string `json:"session_id"`
}

// sessionResponse はセッション作成・ユーザー情報取得のレスポンス。
type sessionResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// CreateSession は交換コードからセッションを発行する。
// POST /api/auth/session
//
// 発行されたトークンはHTTP OnlyのクロスサイトCookieとして設定する。
// フロントエンドが別オリジンから資格情報付きで呼ぶため、SameSite=Noneにする。
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.SessionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("session_idは必須です"))
		return
	}

	session, token, err := h.service.CreateSession(r.Context(), req.SessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{
		UserID:  session.UserID,
		Email:   session.Email,
		Name:    session.Name,
		Picture: session.Picture,
	})
}

// Logout はセッションを破棄しCookieをクリアする。
// POST /api/auth/logout（認証必須）
//
// ストア層の削除に失敗した場合はトークンがまだ解決可能なため、
// 成功を装わず500で失敗を伝える。Cookieのクリアは破棄成功後のみ行う。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.UserSessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized,
			model.NewUnauthorizedError("authentication required"))
		return
	}

	if err := h.service.Logout(r.Context(), session.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Logged out successfully",
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me（認証必須）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.UserSessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized,
			model.NewUnauthorizedError("authentication required"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{
		UserID:  session.UserID,
		Email:   session.Email,
		Name:    session.Name,
		Picture: session.Picture,
	})
}
