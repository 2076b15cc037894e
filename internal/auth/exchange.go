package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sessionDataPath は外部本人確認エクスチェンジのセッションデータ取得パス。
const sessionDataPath = "/auth/v1/env/oauth/session-data"

// ExchangedIdentity は外部本人確認エクスチェンジから取得した本人情報を表す。
// SessionTokenはプロバイダー発行の値であり、こちらで再発行はしない。
type ExchangedIdentity struct {
	Email        string
	Name         string
	Picture      string
	SessionToken string
}

// IdentityExchanger はワンタイムの交換コードを検証済み本人情報に
// 変換するコラボレーターのインターフェース。
type IdentityExchanger interface {
	// Exchange は交換コードを本人情報に変換する。コードが無効な場合、
	// またはエクスチェンジ側の障害時はエラーを返す。
	Exchange(ctx context.Context, code string) (*ExchangedIdentity, error)
}

// HTTPExchangerConfig はHTTPExchangerの設定。
type HTTPExchangerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPExchanger は外部本人確認エクスチェンジへのHTTPクライアント実装。
type HTTPExchanger struct {
	config HTTPExchangerConfig
	client *http.Client
}

// NewHTTPExchanger はHTTPExchangerを生成する。
func NewHTTPExchanger(config HTTPExchangerConfig) *HTTPExchanger {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPExchanger{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// exchangeResponse はセッションデータエンドポイントのレスポンス。
type exchangeResponse struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Picture      string `json:"picture"`
	SessionToken string `json:"session_token"`
}

// Exchange は交換コードをX-Session-IDヘッダーで提示し、本人情報を取得する。
func (e *HTTPExchanger) Exchange(ctx context.Context, code string) (*ExchangedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+sessionDataPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange request: %w", err)
	}
	req.Header.Set("X-Session-ID", code)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var data exchangeResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse exchange response: %w", err)
	}

	if data.Email == "" {
		return nil, fmt.Errorf("empty email in exchange response")
	}
	if data.SessionToken == "" {
		return nil, fmt.Errorf("empty session token in exchange response")
	}

	return &ExchangedIdentity{
		Email:        data.Email,
		Name:         data.Name,
		Picture:      data.Picture,
		SessionToken: data.SessionToken,
	}, nil
}

// compile-time interface check
var _ IdentityExchanger = (*HTTPExchanger)(nil)
