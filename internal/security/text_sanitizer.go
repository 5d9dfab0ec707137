// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力するメモや投稿文からHTMLを取り除き、
// 保存前に長さの上限を検証する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/foodmark/internal/model"
)

// DefaultNoteMaxLength はメモの最大文字数（ルーン数）のデフォルト値。
const DefaultNoteMaxLength = 1000

// TextSanitizer はプレーンテキスト入力の整形を行う。
// bluemondayのStrictPolicyで全てのタグを除去するため、保存される文字列にマークアップは残らない。
type TextSanitizer struct {
	policy        *bluemonday.Policy
	noteMaxLength int
}

// NewTextSanitizer はTextSanitizerを生成する。noteMaxLengthが0以下の場合は上限なし。
func NewTextSanitizer(noteMaxLength int) *TextSanitizer {
	return &TextSanitizer{
		policy:        bluemonday.StrictPolicy(),
		noteMaxLength: noteMaxLength,
	}
}

// StripTags はタグを除去し、前後の空白を取り除いたテキストを返す。
// StrictPolicyがエスケープした実体参照は元の文字に戻す（JSONで返すため）。
func (s *TextSanitizer) StripTags(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// CleanNote はメモからタグを除去し、上限を超える場合はNOTE_TOO_LONGを返す。
// 長さは整形後の文字数で判定する。
func (s *TextSanitizer) CleanNote(note string) (string, error) {
	cleaned := s.StripTags(note)
	if s.noteMaxLength > 0 && utf8.RuneCountInString(cleaned) > s.noteMaxLength {
		return "", model.NewNoteTooLongError(s.noteMaxLength)
	}
	return cleaned, nil
}
