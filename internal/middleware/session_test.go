package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

type mockSessionStore struct {
	findByTokenFn   func(ctx context.Context, token string) (*model.User, error)
	deleteByTokenFn func(ctx context.Context, token string) error

	findCalls   int
	deleteCalls int
}

func (m *mockSessionStore) FindByToken(ctx context.Context, token string) (*model.User, error) {
	m.findCalls++
	if m.findByTokenFn != nil {
		return m.findByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionStore) DeleteByToken(ctx context.Context, token string) error {
	m.deleteCalls++
	if m.deleteByTokenFn != nil {
		return m.deleteByTokenFn(ctx, token)
	}
	return nil
}

// compile-time interface check
var _ SessionStore = (*mockSessionStore)(nil)

type recordingAuthMetrics struct {
	reasons []string
}

func (m *recordingAuthMetrics) RecordAuthFailure(reason string) {
	m.reasons = append(m.reasons, reason)
}

func validUser(token string) *model.User {
	return &model.User{
		ID:           "user-1",
		Email:        "taro@example.com",
		Name:         "Taro",
		Picture:      "https://example.com/avatar.png",
		SessionToken: token,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// nextHandler はゲート通過後のコンテキスト内容を検査できるハンドラーを返す。
func nextHandler(t *testing.T, called *bool, inspect func(r *http.Request)) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if inspect != nil {
			inspect(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestSessionMiddleware_NoToken_Returns401(t *testing.T) {
	store := &mockSessionStore{}
	called := false

	handler := NewSessionMiddleware(store, nil)(nextHandler(t, &called, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("next handler should not be called")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if store.findCalls != 0 {
		t.Error("store should not be queried without a token")
	}

	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
	if body.Message != "authentication required" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestSessionMiddleware_CookieToken_InjectsUserSession(t *testing.T) {
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "tok-cookie" {
				t.Errorf("looked up token %q", token)
			}
			return validUser(token), nil
		},
	}
	called := false

	handler := NewSessionMiddleware(store, nil)(nextHandler(t, &called, func(r *http.Request) {
		session, err := UserSessionFromContext(r.Context())
		if err != nil {
			t.Errorf("UserSessionFromContext: %v", err)
			return
		}
		if session.UserID != "user-1" || session.Email != "taro@example.com" {
			t.Errorf("unexpected session: %+v", session)
		}

		token, err := SessionTokenFromContext(r.Context())
		if err != nil || token != "tok-cookie" {
			t.Errorf("SessionTokenFromContext = %q, %v", token, err)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-cookie"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("next handler should be called")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSessionMiddleware_BearerToken_Accepted(t *testing.T) {
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "tok-bearer" {
				t.Errorf("looked up token %q", token)
			}
			return validUser(token), nil
		},
	}
	called := false

	handler := NewSessionMiddleware(store, nil)(nextHandler(t, &called, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok-bearer")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("next handler should be called")
	}
}

// Cookieとヘッダーの両方が提示された場合、Cookieが優先され、
// ストアへの問い合わせはCookieのトークンで1回だけ行われる。
func TestSessionMiddleware_CookieWinsOverBearer(t *testing.T) {
	var lookedUp []string
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			lookedUp = append(lookedUp, token)
			return validUser(token), nil
		},
	}
	called := false

	handler := NewSessionMiddleware(store, nil)(nextHandler(t, &called, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-cookie"})
	req.Header.Set("Authorization", "Bearer tok-bearer")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if len(lookedUp) != 1 || lookedUp[0] != "tok-cookie" {
		t.Errorf("looked up tokens = %v, want exactly [tok-cookie]", lookedUp)
	}
	if !called {
		t.Error("next handler should be called")
	}
}

func TestSessionMiddleware_UnknownToken_Returns401(t *testing.T) {
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, nil
		},
	}
	called := false

	handler := NewSessionMiddleware(store, nil)(nextHandler(t, &called, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer no-such-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("next handler should not be called")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	body := decodeErrorBody(t, w)
	if body.Message != "invalid session token" {
		t.Errorf("message = %q", body.Message)
	}
	if store.deleteCalls != 0 {
		t.Error("delete should not be called for unknown token")
	}
}

// 期限切れセッションは401を返す前にその場で削除される（遅延失効）。
func TestSessionMiddleware_ExpiredToken_DeletesAndReturns401(t *testing.T) {
	var deletedToken string
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			user := validUser(token)
			user.ExpiresAt = time.Now().Add(-time.Minute)
			return user, nil
		},
		deleteByTokenFn: func(ctx context.Context, token string) error {
			deletedToken = token
			return nil
		},
	}
	called := false

	handler := NewSessionMiddleware(store, nil)(nextHandler(t, &called, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-expired"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("next handler should not be called")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if deletedToken != "tok-expired" {
		t.Errorf("deleted token = %q, want tok-expired", deletedToken)
	}

	body := decodeErrorBody(t, w)
	if body.Message != "session expired" {
		t.Errorf("message = %q", body.Message)
	}
}

// 遅延削除の失敗は他のストア障害と同様に500になる。認証失敗（401）と
// インフラ障害を混同しない。
func TestSessionMiddleware_ExpiredToken_DeleteFailure_Returns500(t *testing.T) {
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			user := validUser(token)
			user.ExpiresAt = time.Now().Add(-time.Minute)
			return user, nil
		},
		deleteByTokenFn: func(ctx context.Context, token string) error {
			return errors.New("db down")
		},
	}

	handler := NewSessionMiddleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	body := decodeErrorBody(t, w)
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body.Code)
	}
}

// 3つの失敗サブケースは全て同じレスポンス形状（code/category/action）を持つ。
func TestSessionMiddleware_UniformFailureShape(t *testing.T) {
	requests := []struct {
		name  string
		setup func(r *http.Request)
		store *mockSessionStore
	}{
		{
			name:  "トークン未提示",
			setup: func(r *http.Request) {},
			store: &mockSessionStore{},
		},
		{
			name: "無効トークン",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer bad")
			},
			store: &mockSessionStore{},
		},
		{
			name: "期限切れ",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer old")
			},
			store: &mockSessionStore{
				findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
					user := validUser(token)
					user.ExpiresAt = time.Now().Add(-time.Minute)
					return user, nil
				},
			},
		},
	}

	var bodies []ErrorResponseBody
	for _, tc := range requests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewSessionMiddleware(tc.store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			bodies = append(bodies, decodeErrorBody(t, w))
		})
	}

	for i, body := range bodies {
		if body.Code != model.ErrCodeUnauthorized {
			t.Errorf("case %d: code = %q", i, body.Code)
		}
		if body.Category != bodies[0].Category || body.Action != bodies[0].Action {
			t.Errorf("case %d: shape differs: %+v vs %+v", i, body, bodies[0])
		}
	}
}

func TestSessionMiddleware_StoreError_Returns500(t *testing.T) {
	store := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := NewSessionMiddleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestSessionMiddleware_RecordsAuthFailureReasons(t *testing.T) {
	expiredStore := &mockSessionStore{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			user := validUser(token)
			user.ExpiresAt = time.Now().Add(-time.Minute)
			return user, nil
		},
	}

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		store  *mockSessionStore
		reason string
	}{
		{"未提示", func(r *http.Request) {}, &mockSessionStore{}, "missing_token"},
		{"無効", func(r *http.Request) { r.Header.Set("Authorization", "Bearer x") }, &mockSessionStore{}, "invalid_token"},
		{"期限切れ", func(r *http.Request) { r.Header.Set("Authorization", "Bearer x") }, expiredStore, "expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingAuthMetrics{}
			handler := NewSessionMiddleware(tt.store, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			tt.setup(req)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if len(metrics.reasons) != 1 || metrics.reasons[0] != tt.reason {
				t.Errorf("recorded reasons = %v, want [%s]", metrics.reasons, tt.reason)
			}
		})
	}
}

func TestUserSessionFromContext_Missing_ReturnsError(t *testing.T) {
	if _, err := UserSessionFromContext(context.Background()); err == nil {
		t.Error("expected error for context without session")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without session")
	}
	if _, err := SessionTokenFromContext(context.Background()); err == nil {
		t.Error("expected error for context without token")
	}
}

func TestContextWithUserSession_RoundTrip(t *testing.T) {
	session := &model.UserSession{UserID: "user-9", Email: "x@example.com", Name: "X"}
	ctx := ContextWithUserSession(context.Background(), session, "tok-9")

	got, err := UserSessionFromContext(ctx)
	if err != nil {
		t.Fatalf("UserSessionFromContext: %v", err)
	}
	if got.UserID != "user-9" {
		t.Errorf("UserID = %q", got.UserID)
	}

	token, err := SessionTokenFromContext(ctx)
	if err != nil || token != "tok-9" {
		t.Errorf("token = %q, %v", token, err)
	}
}
