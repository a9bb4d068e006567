// Package model はドメインモデルを定義する。
package model

import "time"

// User はTelegramユーザーを表す。
// telegram_idはTelegram側で発行される数値IDで、システム全体で一意。
type User struct {
	ID         string
	TelegramID int64
	Username   string // 任意項目。空文字列は未設定を表す
	FirstName  string
	LastName   string
	IsActive   bool
	AuthToken  string // 認証時に照合する秘密値。登録時に1度だけ払い出す
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserProfile はTelegramから取得した表示属性を表す。
// GetOrCreateで差分があるフィールドのみ更新される。
type UserProfile struct {
	Username  string
	FirstName string
	LastName  string
}

// ProfileChanged は表示属性に差分があるかどうかを返す。
func (u *User) ProfileChanged(p UserProfile) bool {
	return u.Username != p.Username || u.FirstName != p.FirstName || u.LastName != p.LastName
}
