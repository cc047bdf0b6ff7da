// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// NameとPhoneNumberはプロフィール入力が完了するまで空の場合がある。
type User struct {
	ID          string
	Email       string
	Name        string
	PhoneNumber string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileComplete はプロフィール入力が完了しているかを返す。
// 名前と電話番号の両方が設定されている場合に完了とみなす。
func (u *User) ProfileComplete() bool {
	return u.Name != "" && u.PhoneNumber != ""
}

// Session はユーザーのログインセッションを表す。
// セッションの発行は外部の認証フローが行い、本システムは参照と削除のみを行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
