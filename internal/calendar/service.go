// Package calendar はカレンダー連携を提供する。
// 実カレンダーの読み出しはまだなく、イベントはモックプロバイダーが
// 認証済みユーザー向けに生成する。上流の認可状態のみHTTPで確認する。
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

// EventCount はモックプロバイダーが生成するイベント数。
// ダッシュボードの予定件数はこの値をそのまま報告する。
const EventCount = 8

// AccessProber は上流カレンダーへのアクセス可否を確認するインターフェース。
type AccessProber interface {
	// Probe はセッショントークンで上流の認可状態を問い合わせる。
	// 認可済みならtrueを返す。通信エラーはエラーとして返すが、
	// 呼び出し側はこれをリクエスト失敗にせず未認可として扱う。
	Probe(ctx context.Context, sessionToken string) (bool, error)
}

// HTTPProberConfig はHTTPProberの設定。
type HTTPProberConfig struct {
	// BaseURL は上流カレンダーアクセス確認エンドポイント。
	// 空の場合、Probeは常にfalseを返す。
	BaseURL string
	Timeout time.Duration
}

// HTTPProber はHTTP経由で上流の認可状態を確認するAccessProberの実装。
type HTTPProber struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProber はHTTPProberを生成する。
func NewHTTPProber(cfg HTTPProberConfig) *HTTPProber {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProber{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Probe は上流にセッショントークンを提示し、200応答なら認可済みとみなす。
func (p *HTTPProber) Probe(ctx context.Context, sessionToken string) (bool, error) {
	if p.baseURL == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("X-Session-Token", sessionToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("calendar access probe failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// compile-time interface check
var _ AccessProber = (*HTTPProber)(nil)

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	// AuthURL は未認可ユーザーに提示する認可開始URL。
	AuthURL string
}

// Service はカレンダーのサービス層。
type Service struct {
	prober AccessProber
	cfg    ServiceConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(prober AccessProber, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		prober: prober,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Events は呼び出しユーザー向けのイベント一覧を返す。
// start/endはRFC 3339文字列。パースできない値は黙ってデフォルト
// （昨日から30日後まで）に置き換える。範囲判定はイベント開始時刻で行う。
func (s *Service) Events(ctx context.Context, user *model.UserSession, startParam, endParam string) []*model.CalendarEvent {
	now := s.now().UTC()
	windowStart := now.Add(-24 * time.Hour)
	windowEnd := now.Add(30 * 24 * time.Hour)

	if startParam != "" {
		if parsed, err := time.Parse(time.RFC3339, startParam); err == nil {
			windowStart = parsed
		} else {
			s.logger.Debug("ignoring unparsable start_date", slog.String("value", startParam))
		}
	}
	if endParam != "" {
		if parsed, err := time.Parse(time.RFC3339, endParam); err == nil {
			windowEnd = parsed
		} else {
			s.logger.Debug("ignoring unparsable end_date", slog.String("value", endParam))
		}
	}

	var filtered []*model.CalendarEvent
	for _, event := range mockEvents(user.Name, now) {
		if !event.StartTime.Before(windowStart) && !event.StartTime.After(windowEnd) {
			filtered = append(filtered, event)
		}
	}
	if filtered == nil {
		filtered = []*model.CalendarEvent{}
	}
	return filtered
}

// AuthStatus は上流カレンダー連携の認可状態を返す。
// 上流への問い合わせが失敗してもリクエストは失敗させず、
// 未認可として認可開始URLを案内する。
func (s *Service) AuthStatus(ctx context.Context, sessionToken string) *model.CalendarAuthStatus {
	authorized, err := s.prober.Probe(ctx, sessionToken)
	if err != nil {
		s.logger.Warn("calendar access probe failed, reporting unauthorized",
			slog.String("error", err.Error()))
		return &model.CalendarAuthStatus{
			Authorized: false,
			AuthURL:    s.cfg.AuthURL,
			Message:    "Calendar access could not be verified. Please re-authorize.",
		}
	}

	if !authorized {
		return &model.CalendarAuthStatus{
			Authorized: false,
			AuthURL:    s.cfg.AuthURL,
		}
	}

	return &model.CalendarAuthStatus{Authorized: true}
}

// mockEvents はユーザー名でパーソナライズした固定の予定一覧を生成する。
// 時刻は全て現在時刻からの相対で、直近2時間後から15日後まで分散させている。
func mockEvents(userName string, now time.Time) []*model.CalendarEvent {
	return []*model.CalendarEvent{
		{
			ID:          "event_1",
			Title:       fmt.Sprintf("Welcome Meeting - %s", userName),
			Description: "Onboarding session and goal setting",
			StartTime:   now.Add(2 * time.Hour),
			EndTime:     now.Add(3 * time.Hour),
			Location:    "Conference Room A",
			CalendarID:  "primary",
		},
		{
			ID:          "event_2",
			Title:       "Project Planning Session",
			Description: "Quarterly planning and resource allocation",
			StartTime:   now.Add(24*time.Hour + 10*time.Hour),
			EndTime:     now.Add(24*time.Hour + 12*time.Hour),
			Location:    "Meeting Room B",
			CalendarID:  "primary",
		},
		{
			ID:          "event_3",
			Title:       "All Hands Meeting",
			Description: "Company-wide updates and announcements",
			StartTime:   now.Add(3 * 24 * time.Hour),
			EndTime:     now.Add(3*24*time.Hour + time.Hour),
			AllDay:      true,
			Location:    "Main Auditorium",
			CalendarID:  "primary",
		},
		{
			ID:          "event_4",
			Title:       "Client Presentation",
			Description: "Present project proposal and deliverables",
			StartTime:   now.Add(5*24*time.Hour + 14*time.Hour),
			EndTime:     now.Add(5*24*time.Hour + 15*time.Hour + 30*time.Minute),
			Location:    "Client Office - Downtown",
			CalendarID:  "primary",
		},
		{
			ID:          "event_5",
			Title:       "Team Building Workshop",
			Description: "Interactive team building and collaboration exercises",
			StartTime:   now.Add(8*24*time.Hour + 9*time.Hour),
			EndTime:     now.Add(8*24*time.Hour + 17*time.Hour),
			Location:    "Offsite Location",
			CalendarID:  "primary",
		},
		{
			ID:          "event_6",
			Title:       "Performance Review",
			Description: fmt.Sprintf("Quarterly review session with %s", userName),
			StartTime:   now.Add(10*24*time.Hour + 15*time.Hour),
			EndTime:     now.Add(10*24*time.Hour + 16*time.Hour),
			Location:    "Manager's Office",
			CalendarID:  "primary",
		},
		{
			ID:          "event_7",
			Title:       "Training Workshop",
			Description: "Professional development and skill enhancement",
			StartTime:   now.Add(12*24*time.Hour + 13*time.Hour),
			EndTime:     now.Add(12*24*time.Hour + 17*time.Hour),
			Location:    "Training Center",
			CalendarID:  "primary",
		},
		{
			ID:          "event_8",
			Title:       "Monthly Standup",
			Description: "Progress updates and roadmap discussion",
			StartTime:   now.Add(15*24*time.Hour + 10*time.Hour),
			EndTime:     now.Add(15*24*time.Hour + 11*time.Hour),
			Location:    "Virtual Meeting",
			CalendarID:  "primary",
		},
	}
}
