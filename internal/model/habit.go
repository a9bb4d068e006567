// Package model はドメインモデルを定義する。
package model

import "time"

// タイトル・説明の長さ制約。
const (
	TitleMinLength       = 2
	TitleMaxLength       = 100
	DescriptionMaxLength = 500
)

// Habit はユーザーが継続を目指す習慣を表す。
// completion_countが設定された継続日数に達すると、日次転送ジョブにより
// 非アクティブ（卒業）になる。
type Habit struct {
	ID              string
	UserID          string
	Title           string
	Description     string // 空文字列は未設定を表す
	IsActive        bool
	CompletionCount int
	LastCompleted   *time.Time // 直近の完了日時。未完了またはリセット後はnil
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CompletedOn は指定日時のUTC日付に完了済みかどうかを返す。
func (h *Habit) CompletedOn(t time.Time) bool {
	return h.LastCompleted != nil && SameUTCDate(*h.LastCompleted, t)
}

// HabitUpdate は習慣の部分更新を表す。
// nilのフィールドは変更しない。完了カウンタと完了日時は更新対象外。
type HabitUpdate struct {
	Title       *string
	Description *string
	IsActive    *bool
}
