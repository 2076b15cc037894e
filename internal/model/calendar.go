package model

import "time"

// CalendarEvent はカレンダー上の予定を表す。
// 現状の実装ではモックプロバイダーが生成するが、
// 実カレンダー連携に差し替えても型は変わらない。
type CalendarEvent struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Location    string
	CalendarID  string
}

// CalendarAuthStatus はカレンダー連携の認可状態を表す。
// 未認可の場合はAuthURLに認可開始用URLが入る。
type CalendarAuthStatus struct {
	Authorized bool
	AuthURL    string
	Message    string
}
