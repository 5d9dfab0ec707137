// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, membership, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired      = "AUTH_REQUIRED"
	ErrCodeGatewayFailed     = "GATEWAY_FAILED"
	ErrCodeItemNotFound      = "ITEM_NOT_FOUND"
	ErrCodeEntryNotFound     = "ENTRY_NOT_FOUND"
	ErrCodeInvalidRating     = "INVALID_RATING"
	ErrCodeNoteTooLong       = "NOTE_TOO_LONG"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidScope      = "INVALID_SCOPE"
	ErrCodeNoCandidates      = "NO_CANDIDATES"
	ErrCodeInvalidSubmission = "INVALID_SUBMISSION"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// ErrAuthRequired はログインしていない状態で個人リストを変更しようとした場合のエラー。
// ゲートウェイへの呼び出しより前に返される。
var ErrAuthRequired = &APIError{
	Code:     ErrCodeAuthRequired,
	Message:  "この操作にはログインが必要です。",
	Category: "auth",
	Action:   "ログインしてから再度お試しください。",
}

// GatewayError は永続化ゲートウェイへの読み書きが失敗したことを表す。
// ローカルの状態は最後に確定した値のまま残る。
type GatewayError struct {
	Op   string   // load, insert, delete, update
	List ListKind // 対象リスト（loadでは空の場合がある）
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *GatewayError) Error() string {
	if e.List == "" {
		return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s on %s failed: %v", e.Op, e.List, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError はerrがGatewayErrorを含むかを判定する。
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// NewGatewayFailedError はゲートウェイ障害をユーザー向けに表すエラーを生成する。
func NewGatewayFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayFailed,
		Message:  "リストの保存先との通信に失敗しました。変更は反映されていません。",
		Category: "membership",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewItemNotFoundError は料理（カタログ項目）未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された料理が見つかりません: %s", itemID),
		Category: "catalog",
		Action:   "料理IDを確認してください。",
	}
}

// NewEntryNotFoundError はリストに対象の項目が存在しない場合のエラーを生成する。
func NewEntryNotFoundError(list ListKind, itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("%sに登録されていません: %s", list.Label(), itemID),
		Category: "membership",
		Action:   "先にリストへ追加してください。",
	}
}

// NewInvalidRatingError は評価値が範囲外の場合のエラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効な評価です: %d", rating),
		Category: "validation",
		Action:   fmt.Sprintf("評価は%dから%dの整数で指定してください。", MinRating, MaxRating),
	}
}

// NewNoteTooLongError はメモが上限文字数を超えた場合のエラーを生成する。
func NewNoteTooLongError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeNoteTooLong,
		Message:  fmt.Sprintf("メモが長すぎます（上限%d文字）。", limit),
		Category: "validation",
		Action:   "メモを短くしてください。",
	}
}

// NewInvalidRequestError はリクエストボディやパラメータが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidScopeError はランダム選択の範囲指定が不正な場合のエラーを生成する。
func NewInvalidScopeError(scope string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScope,
		Message:  fmt.Sprintf("無効な範囲です: %s", scope),
		Category: "validation",
		Action:   "範囲には all、favorites、wishlist のいずれかを指定してください。",
	}
}

// NewNoCandidatesError はランダム選択の候補が存在しない場合のエラーを生成する。
func NewNoCandidatesError() *APIError {
	return &APIError{
		Code:     ErrCodeNoCandidates,
		Message:  "条件に合う料理がありません。",
		Category: "catalog",
		Action:   "範囲を広げるか、リストに料理を追加してください。",
	}
}

// NewInvalidSubmissionError は料理投稿の入力が不正な場合のエラーを生成する。
func NewInvalidSubmissionError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSubmission,
		Message:  fmt.Sprintf("投稿内容が不正です: %s", detail),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
