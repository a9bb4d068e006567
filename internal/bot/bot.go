package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hitoshi/habitman/internal/bot/api"
	"github.com/hitoshi/habitman/internal/model"
)

// メインメニューのボタンラベル
const (
	buttonMyHabits   = "My Habits"
	buttonAddHabit   = "Add Habit"
	buttonStatistics = "Statistics"
)

// HabitAPI はBOTが必要とするバックエンドAPIインターフェース。
// api.Clientの部分集合として定義する。
type HabitAPI interface {
	Register(ctx context.Context, telegramID int64, profile api.Profile) (*api.RegisterResult, error)
	ListActiveHabits(ctx context.Context, accessToken string) ([]api.Habit, error)
	CreateHabit(ctx context.Context, accessToken, title, description string) (*api.Habit, error)
	CompleteHabit(ctx context.Context, accessToken, habitID string) (*api.Habit, error)
	DeleteHabit(ctx context.Context, accessToken, habitID string) error
	GetStats(ctx context.Context, accessToken string) (*api.Stats, error)
}

// Sender はTelegramへの送信インターフェース。
// tgbotapi.BotAPIの部分集合として定義する。
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot は習慣トラッカーのTelegramフロントエンド。
type Bot struct {
	tg     Sender
	api    HabitAPI
	tokens *TokenManager
	logger *slog.Logger
	forms  *formRegistry
}

// NewBot はBotを生成する。
func NewBot(tg Sender, habitAPI HabitAPI, tokens *TokenManager, logger *slog.Logger) *Bot {
	return &Bot{
		tg:     tg,
		api:    habitAPI,
		tokens: tokens,
		logger: logger,
		forms:  newFormRegistry(),
	}
}

// Run は更新チャネルからの受信ループを実行する。
// コンテキストのキャンセルまたはチャネルのクローズで終了する。
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	b.logger.Info("BOTの受信ループを開始しました")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("BOTの受信ループを停止しました")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("更新チャネルがクローズされました")
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate は1件の更新をディスパッチする。
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// handleMessage はテキストメッセージを処理する。
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "cancel":
			b.forms.clear(userID)
			b.reply(msg.Chat.ID, "Canceled.", mainMenuKeyboard())
		default:
			b.reply(msg.Chat.ID, "Unknown command. Use the menu below.", mainMenuKeyboard())
		}
		return
	}

	// 進行中のフォームがあれば入力として処理する
	if b.forms.active(userID) {
		b.handleFormInput(ctx, msg)
		return
	}

	switch msg.Text {
	case buttonMyHabits:
		b.handleMyHabits(ctx, msg)
	case buttonAddHabit:
		b.handleAddHabit(msg)
	case buttonStatistics:
		b.handleStatistics(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Use the menu below to manage your habits.", mainMenuKeyboard())
	}
}

// handleStart は/startコマンドを処理する。
// ユーザーをバックエンドに登録し、初回は認証トークンを保存する。
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From

	result, err := b.api.Register(ctx, from.ID, api.Profile{
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		b.logger.Error("ユーザー登録に失敗しました",
			slog.Int64("telegram_id", from.ID),
			slog.String("error", err.Error()),
		)
		b.reply(msg.Chat.ID, "Registration failed. Please try again later.", nil)
		return
	}

	if result.AuthToken != "" {
		if err := b.tokens.SaveAuthToken(ctx, from.ID, result.AuthToken); err != nil {
			b.logger.Error("認証トークンの保存に失敗しました",
				slog.Int64("telegram_id", from.ID),
				slog.String("error", err.Error()),
			)
			b.reply(msg.Chat.ID, "Registration failed. Please try again later.", nil)
			return
		}

		b.reply(msg.Chat.ID,
			"<b>Habit Tracker</b>\n\nSuccessfully authorized! ✅\nNow you can track your habits.",
			mainMenuKeyboard())
		return
	}

	// 既存ユーザー: 保存済みトークンがあればそのまま使える
	known, err := b.tokens.HasAuthToken(ctx, from.ID)
	if err != nil || !known {
		b.reply(msg.Chat.ID,
			"Your account exists but this bot has no credentials for it.\nPlease contact the administrator.",
			nil)
		return
	}

	b.reply(msg.Chat.ID, "Welcome back! Use the menu below.", mainMenuKeyboard())
}

// handleMyHabits はアクティブ習慣の一覧を送信する。
// 習慣ごとに完了・削除のインラインボタンを付ける。
func (b *Bot) handleMyHabits(ctx context.Context, msg *tgbotapi.Message) {
	token, err := b.tokens.AccessToken(ctx, msg.From.ID)
	if err != nil {
		b.replyAuthRequired(msg.Chat.ID)
		return
	}

	habits, err := b.api.ListActiveHabits(ctx, token)
	if err != nil {
		b.replyAPIError(msg.Chat.ID, msg.From.ID, err, "Error loading habits.")
		return
	}

	if len(habits) == 0 {
		b.reply(msg.Chat.ID,
			"You have no active habits yet.\nPress <b>Add Habit</b> to create one!",
			mainMenuKeyboard())
		return
	}

	for _, h := range habits {
		text := renderHabit(h, time.Now())
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyMarkup = habitButtons(h, time.Now())
		if _, err := b.tg.Send(reply); err != nil {
			b.logger.Error("メッセージ送信に失敗しました", slog.String("error", err.Error()))
		}
	}
}

// handleAddHabit は習慣作成フォームを開始する。
func (b *Bot) handleAddHabit(msg *tgbotapi.Message) {
	b.forms.start(msg.From.ID)
	b.reply(msg.Chat.ID,
		"Add new habit\n\nSend me the <b>title</b> of your habit (e.g. 'Run 5 km', 'Read 20 pages')",
		tgbotapi.NewRemoveKeyboard(false))
}

// handleStatistics は統計情報を送信する。
func (b *Bot) handleStatistics(ctx context.Context, msg *tgbotapi.Message) {
	token, err := b.tokens.AccessToken(ctx, msg.From.ID)
	if err != nil {
		b.replyAuthRequired(msg.Chat.ID)
		return
	}

	stats, err := b.api.GetStats(ctx, token)
	if err != nil {
		b.replyAPIError(msg.Chat.ID, msg.From.ID, err, "Error loading statistics.")
		return
	}

	b.reply(msg.Chat.ID, renderStats(stats), mainMenuKeyboard())
}

// handleCallback はインラインボタンのコールバックを処理する。
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	action, habitID, found := strings.Cut(cb.Data, ":")
	if !found {
		b.answerCallback(cb.ID, "", false)
		return
	}

	token, err := b.tokens.AccessToken(ctx, cb.From.ID)
	if err != nil {
		b.answerCallback(cb.ID, "Please authorize first with /start", true)
		return
	}

	switch action {
	case "complete":
		b.handleCompleteCallback(ctx, cb, token, habitID)
	case "delete":
		b.handleDeleteCallback(ctx, cb, token, habitID)
	default:
		b.answerCallback(cb.ID, "", false)
	}
}

// handleCompleteCallback は完了ボタンの押下を処理する。
func (b *Bot) handleCompleteCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, token, habitID string) {
	completed, err := b.api.CompleteHabit(ctx, token, habitID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeAlreadyCompleted {
			b.answerCallback(cb.ID, "Already completed today!", true)
			return
		}
		b.logger.Error("習慣の完了記録に失敗しました",
			slog.String("habit_id", habitID),
			slog.String("error", err.Error()),
		)
		b.answerCallback(cb.ID, "Error completing habit.", true)
		return
	}

	b.answerCallback(cb.ID, "Completed! ✅", false)

	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
			renderHabit(*completed, time.Now()))
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.tg.Request(edit); err != nil {
			b.logger.Error("メッセージ編集に失敗しました", slog.String("error", err.Error()))
		}
	}
}

// handleDeleteCallback は削除ボタンの押下を処理する。
func (b *Bot) handleDeleteCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, token, habitID string) {
	if err := b.api.DeleteHabit(ctx, token, habitID); err != nil {
		b.logger.Error("習慣の削除に失敗しました",
			slog.String("habit_id", habitID),
			slog.String("error", err.Error()),
		)
		b.answerCallback(cb.ID, "Error deleting habit.", true)
		return
	}

	b.answerCallback(cb.ID, "Habit deleted.", false)

	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, "Habit deleted.")
		if _, err := b.tg.Request(edit); err != nil {
			b.logger.Error("メッセージ編集に失敗しました", slog.String("error", err.Error()))
		}
	}
}

// reply はHTMLパースモードでメッセージを送信する。
func (b *Bot) reply(chatID int64, text string, keyboard any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error("メッセージ送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// replyAuthRequired は未認証ユーザーへの案内を送信する。
func (b *Bot) replyAuthRequired(chatID int64) {
	b.reply(chatID, "Please authorize first with /start", nil)
}

// replyAPIError はAPIエラーをユーザー向けメッセージに変換して送信する。
// 401応答の場合はアクセストークンのキャッシュを破棄する。
func (b *Bot) replyAPIError(chatID, telegramID int64, err error, fallback string) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidToken {
		b.tokens.Invalidate(telegramID)
		b.reply(chatID, "Session expired. Please try again.", nil)
		return
	}

	b.logger.Error("APIの呼び出しに失敗しました",
		slog.Int64("telegram_id", telegramID),
		slog.String("error", err.Error()),
	)
	b.reply(chatID, fallback, nil)
}

// answerCallback はコールバッククエリに応答する。
func (b *Bot) answerCallback(id, text string, alert bool) {
	answer := tgbotapi.NewCallback(id, text)
	answer.ShowAlert = alert
	if _, err := b.tg.Request(answer); err != nil {
		b.logger.Error("コールバック応答に失敗しました", slog.String("error", err.Error()))
	}
}

// mainMenuKeyboard はメインメニューのリプライキーボードを返す。
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonMyHabits),
			tgbotapi.NewKeyboardButton(buttonAddHabit),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonStatistics),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// habitButtons は習慣メッセージのインラインキーボードを返す。
func habitButtons(h api.Habit, now time.Time) tgbotapi.InlineKeyboardMarkup {
	completeText := "Complete"
	if completedOn(h, now) {
		completeText = "Completed ✅"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(completeText, "complete:"+h.ID),
			tgbotapi.NewInlineKeyboardButtonData("Delete", "delete:"+h.ID),
		),
	)
}

// renderHabit は習慣1件の表示テキストを組み立てる。
func renderHabit(h api.Habit, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", h.Title)
	if h.Description != "" {
		b.WriteString(h.Description)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nCompletions: <b>%d</b>", h.CompletionCount)
	if completedOn(h, now) {
		b.WriteString("\nCompleted today ✅")
	}
	return b.String()
}

// renderStats は統計の表示テキストを組み立てる。
func renderStats(s *api.Stats) string {
	lines := []string{
		"<b>Your Habit Statistics</b>",
		"",
		fmt.Sprintf("Active habits: <b>%d</b>", s.TotalActiveHabits),
		fmt.Sprintf("Completed today: <b>%d</b>", s.CompletedToday),
		fmt.Sprintf("This week: <b>%d</b>", s.CompletedThisWeek),
		fmt.Sprintf("All time: <b>%d</b>", s.TotalCompletions),
		"",
	}

	dayWord := "days"
	if s.CurrentStreakDays == 1 {
		dayWord = "day"
	}
	lines = append(lines, fmt.Sprintf("Current streak: <b>%d %s</b>", s.CurrentStreakDays, dayWord))

	if s.BestHabitTitle != "" {
		lines = append(lines, "",
			fmt.Sprintf("Best habit: <b>%s</b> (%d times)", s.BestHabitTitle, s.BestHabitCompletions))
	}

	return strings.Join(lines, "\n")
}

// completedOn は習慣が指定日（UTC）に完了済みかを返す。
func completedOn(h api.Habit, now time.Time) bool {
	return h.LastCompleted != nil && model.SameUTCDate(*h.LastCompleted, now)
}
