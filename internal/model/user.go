// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部IdPが発行したセッショントークンを1ユーザーにつき1つだけ保持し、
// 再認証時はトークンと有効期限を置き換える（複数セッションは持たない）。
type User struct {
	ID           string
	Email        string
	Name         string
	Picture      string
	SessionToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// UserSession は認証済みリクエストに紐付く本人情報を表す。
// セッショントークンの解決に成功した場合にのみ生成され、
// 以降のリソース操作はこのUserIDでスコープされる。
type UserSession struct {
	UserID  string
	Email   string
	Name    string
	Picture string
}
