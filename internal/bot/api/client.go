// Package api は習慣トラッカーバックエンドのHTTPクライアントを提供する。
// BOTのハンドラーから呼び出され、統一エラーフォーマットをAPIErrorに復元する。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/habitman/internal/model"
)

// Habit はAPIレスポンスの習慣表現。
type Habit struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	IsActive        bool       `json:"is_active"`
	CompletionCount int        `json:"completion_count"`
	LastCompleted   *time.Time `json:"last_completed"`
}

// Stats はAPIレスポンスの統計表現。
type Stats struct {
	TotalActiveHabits    int    `json:"total_active_habits"`
	CompletedToday       int    `json:"completed_today"`
	CompletedThisWeek    int    `json:"completed_this_week"`
	TotalCompletions     int    `json:"total_completions"`
	CurrentStreakDays    int    `json:"current_streak_days"`
	BestHabitTitle       string `json:"best_habit_title,omitempty"`
	BestHabitCompletions int    `json:"best_habit_completions"`
}

// RegisterResult はユーザー登録のAPIレスポンス。
// AuthTokenは初回登録時のみ設定される。
type RegisterResult struct {
	ID         string `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	IsActive   bool   `json:"is_active"`
	AuthToken  string `json:"auth_token,omitempty"`
}

// Profile は登録時に送信するTelegramプロフィール。
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// Client は習慣トラッカーAPIのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// Register はTelegramユーザーを登録する。
func (c *Client) Register(ctx context.Context, telegramID int64, profile Profile) (*RegisterResult, error) {
	payload := map[string]any{
		"telegram_id": telegramID,
		"username":    profile.Username,
		"first_name":  profile.FirstName,
		"last_name":   profile.LastName,
	}

	var result RegisterResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IssueToken はTelegram IDと認証トークンからアクセストークンを取得する。
func (c *Client) IssueToken(ctx context.Context, telegramID int64, authToken string) (string, error) {
	payload := map[string]any{
		"telegram_id": telegramID,
		"auth_token":  authToken,
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/telegram", "", payload, &result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

// ListActiveHabits はアクティブな習慣の一覧を取得する。
func (c *Client) ListActiveHabits(ctx context.Context, accessToken string) ([]Habit, error) {
	var habits []Habit
	if err := c.do(ctx, http.MethodGet, "/api/habits/active", accessToken, nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// CreateHabit は習慣を作成する。
func (c *Client) CreateHabit(ctx context.Context, accessToken, title, description string) (*Habit, error) {
	payload := map[string]any{
		"title":       title,
		"description": description,
	}

	var habit Habit
	if err := c.do(ctx, http.MethodPost, "/api/habits", accessToken, payload, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// CompleteHabit は習慣の当日完了を記録する。
func (c *Client) CompleteHabit(ctx context.Context, accessToken, habitID string) (*Habit, error) {
	var habit Habit
	if err := c.do(ctx, http.MethodPost, "/api/habits/"+habitID+"/complete", accessToken, nil, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// DeleteHabit は習慣を削除する。
func (c *Client) DeleteHabit(ctx context.Context, accessToken, habitID string) error {
	return c.do(ctx, http.MethodDelete, "/api/habits/"+habitID, accessToken, nil, nil)
}

// GetStats は習慣統計を取得する。
func (c *Client) GetStats(ctx context.Context, accessToken string) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/api/habits/stats", accessToken, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// do はHTTPリクエストを実行し、レスポンスをoutにデコードする。
// エラーレスポンスは統一フォーマットからAPIErrorに復元する。
func (c *Client) do(ctx context.Context, method, path, accessToken string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp, method, path)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// decodeError は統一エラーフォーマットのレスポンスをAPIErrorに復元する。
// フォーマット外のレスポンスはステータスコードのみのエラーとして返す。
func (c *Client) decodeError(resp *http.Response, method, path string) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("APIがステータス %d を返しました", resp.StatusCode)
	}

	var apiErr model.APIError
	var decoded struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil || decoded.Code == "" {
		c.logger.Error("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("APIがステータス %d を返しました", resp.StatusCode)
	}

	apiErr = model.APIError{
		Code:     decoded.Code,
		Message:  decoded.Message,
		Category: decoded.Category,
		Action:   decoded.Action,
	}
	return &apiErr
}
