// Package model はドメインモデルを定義する。
package model

import "time"

// 「今日」の判定は全コンポーネントでUTC日付に統一する。
// ライフサイクル処理とリマインダー処理で別々に日付比較を行うと
// タイムゾーンの扱いが分岐しやすいため、ここに集約する。

// UTCDate は日時をUTCの日付（0時0分0秒）に切り詰めて返す。
func UTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDate は2つの日時がUTCで同じ暦日かどうかを返す。
func SameUTCDate(a, b time.Time) bool {
	return UTCDate(a).Equal(UTCDate(b))
}

// BeforeUTCDate はaのUTC日付がbのUTC日付より厳密に前かどうかを返す。
func BeforeUTCDate(a, b time.Time) bool {
	return UTCDate(a).Before(UTCDate(b))
}
