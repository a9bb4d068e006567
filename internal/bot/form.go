package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// タイトル・説明の入力制限
const (
	titleMinLength       = 2
	titleMaxLength       = 100
	descriptionMaxLength = 500
)

const buttonSkip = "Skip"

// formStep は習慣作成フォームの進行状態。
type formStep int

const (
	stepTitle formStep = iota
	stepDescription
)

// formState は1ユーザー分のフォーム入力の途中状態。
type formState struct {
	step  formStep
	title string
}

// formRegistry はユーザーごとのフォーム状態を保持する。
type formRegistry struct {
	mu     sync.Mutex
	states map[int64]*formState
}

func newFormRegistry() *formRegistry {
	return &formRegistry{states: make(map[int64]*formState)}
}

// start はフォームをタイトル入力待ちの状態で開始する。
func (r *formRegistry) start(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[userID] = &formState{step: stepTitle}
}

// active はユーザーのフォームが進行中かどうかを返す。
func (r *formRegistry) active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.states[userID]
	return ok
}

// get はユーザーのフォーム状態を返す。
func (r *formRegistry) get(userID int64) (*formState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[userID]
	return state, ok
}

// clear はユーザーのフォーム状態を破棄する。
func (r *formRegistry) clear(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, userID)
}

// handleFormInput は進行中のフォームへの入力を処理する。
func (b *Bot) handleFormInput(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	state, ok := b.forms.get(userID)
	if !ok {
		return
	}

	switch state.step {
	case stepTitle:
		b.handleTitleInput(msg, state)
	case stepDescription:
		b.handleDescriptionInput(ctx, msg, state)
	}
}

// handleTitleInput はタイトル入力を検証し、説明入力へ進める。
func (b *Bot) handleTitleInput(msg *tgbotapi.Message, state *formState) {
	title := strings.TrimSpace(msg.Text)

	switch {
	case utf8.RuneCountInString(title) < titleMinLength:
		b.reply(msg.Chat.ID, "Title too short. Please send at least 2 characters.", nil)
		return
	case utf8.RuneCountInString(title) > titleMaxLength:
		b.reply(msg.Chat.ID, "Title too long. Please keep it under 100 characters.", nil)
		return
	}

	state.title = title
	state.step = stepDescription

	b.reply(msg.Chat.ID,
		"Now send me a <b>description</b> of the habit, or press Skip.",
		skipKeyboard())
}

// handleDescriptionInput は説明入力を検証し、習慣を作成する。
func (b *Bot) handleDescriptionInput(ctx context.Context, msg *tgbotapi.Message, state *formState) {
	description := strings.TrimSpace(msg.Text)
	if description == buttonSkip {
		description = ""
	}

	if utf8.RuneCountInString(description) > descriptionMaxLength {
		b.reply(msg.Chat.ID, "Description too long. Please keep it under 500 characters.", nil)
		return
	}

	token, err := b.tokens.AccessToken(ctx, msg.From.ID)
	if err != nil {
		b.forms.clear(msg.From.ID)
		b.replyAuthRequired(msg.Chat.ID)
		return
	}

	habit, err := b.api.CreateHabit(ctx, token, state.title, description)
	if err != nil {
		b.forms.clear(msg.From.ID)
		b.logger.Error("習慣の作成に失敗しました",
			slog.Int64("telegram_id", msg.From.ID),
			slog.String("error", err.Error()),
		)
		b.reply(msg.Chat.ID, "Error creating habit. Please try again.", mainMenuKeyboard())
		return
	}

	b.forms.clear(msg.From.ID)
	b.reply(msg.Chat.ID,
		"Habit <b>"+habit.Title+"</b> created! ✅\nI will remind you about it every morning.",
		mainMenuKeyboard())
}

// skipKeyboard は説明入力をスキップするためのキーボードを返す。
func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonSkip),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
