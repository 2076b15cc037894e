package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/taskdeck/internal/middleware"
	"github.com/hitoshi/taskdeck/internal/model"
)

// CalendarServiceInterface はカレンダーハンドラーが必要とするサービスインターフェース。
type CalendarServiceInterface interface {
	// Events はユーザー向けの予定一覧を返す。
	// startParam/endParamはRFC 3339文字列で、不正値はデフォルト範囲に置き換える。
	Events(ctx context.Context, user *model.UserSession, startParam, endParam string) []*model.CalendarEvent
	// AuthStatus は上流カレンダー連携の認可状態を返す。
	AuthStatus(ctx context.Context, sessionToken string) *model.CalendarAuthStatus
}

// CalendarHandler はカレンダー関連のHTTPハンドラー。
type CalendarHandler struct {
	service CalendarServiceInterface
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// calendarEventResponse は予定のAPIレスポンス。
type calendarEventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location"`
	CalendarID  string    `json:"calendar_id"`
}

// calendarAuthStatusResponse は認可状態のAPIレスポンス。
type calendarAuthStatusResponse struct {
	Authorized bool   `json:"authorized"`
	AuthURL    string `json:"auth_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ListEvents は予定一覧を取得する。
// GET /api/calendar/events?start_date=&end_date=
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.UserSessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized,
			model.NewUnauthorizedError("authentication required"))
		return
	}

	events := h.service.Events(r.Context(), session,
		r.URL.Query().Get("start_date"),
		r.URL.Query().Get("end_date"),
	)

	responses := make([]calendarEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, calendarEventResponse{
			ID:          event.ID,
			Title:       event.Title,
			Description: event.Description,
			StartTime:   event.StartTime,
			EndTime:     event.EndTime,
			AllDay:      event.AllDay,
			Location:    event.Location,
			CalendarID:  event.CalendarID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// AuthStatus はカレンダー連携の認可状態を取得する。
// GET /api/calendar/auth-status
func (h *CalendarHandler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.SessionTokenFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized,
			model.NewUnauthorizedError("authentication required"))
		return
	}

	status := h.service.AuthStatus(r.Context(), token)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(calendarAuthStatusResponse{
		Authorized: status.Authorized,
		AuthURL:    status.AuthURL,
		Message:    status.Message,
	})
}
