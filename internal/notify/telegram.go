// Package notify はTelegram Bot APIを使った通知送信機能を提供する。
// リマインダージョブから呼び出され、ユーザーのチャットへHTMLメッセージを送る。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// defaultBaseURL はTelegram Bot APIのベースURL。
const defaultBaseURL = "https://api.telegram.org"

// TelegramClient はTelegram Bot APIのsendMessageクライアント。
type TelegramClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	botToken   string
	baseURL    string // テスト用にベースURLを差し替え可能
}

// NewTelegramClient はTelegramClient の新しいインスタンスを生成する。
func NewTelegramClient(httpClient *http.Client, botToken string, logger *slog.Logger) *TelegramClient {
	return &TelegramClient{
		httpClient: httpClient,
		logger:     logger,
		botToken:   botToken,
		baseURL:    defaultBaseURL,
	}
}

// sendMessageRequest はsendMessage APIのリクエストボディ。
type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// sendMessageResponse はsendMessage APIのレスポンスのうち必要な部分。
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage は指定チャットにHTMLパースモードでメッセージを送信する。
// Bot APIがok=falseを返した場合もエラーとして扱う。
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Telegram APIの呼び出しに失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Telegram APIがエラーステータスを返しました",
			slog.Int64("chat_id", chatID),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("Telegram APIがステータス %d を返しました", resp.StatusCode)
	}

	var result sendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if !result.OK {
		c.logger.Error("Telegram APIがエラー応答を返しました",
			slog.Int64("chat_id", chatID),
			slog.String("description", result.Description),
		)
		return fmt.Errorf("Telegram APIがエラーを返しました: %s", result.Description)
	}

	return nil
}
