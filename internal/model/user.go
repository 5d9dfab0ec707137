package model

import "time"

// User はサインインしたユーザーを表す。
// 個人リスト（お気に入り・行ってみたい・行った）はすべてこのIDに紐付く。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPアカウントとUserの紐付け。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はCookieで識別されるログインセッション。
// 有効なセッションが存在することが「現在のアイデンティティがある」ことを意味する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかを判定する。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
