package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/foodmark/internal/model"
)

func TestStripTags(t *testing.T) {
	s := NewTextSanitizer(0)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字", "", ""},
		{"プレーンテキストはそのまま", "スープが美味しい", "スープが美味しい"},
		{"前後の空白を除去", "  朝7時から  ", "朝7時から"},
		{"太字タグを除去", "<b>おすすめ</b>の一品", "おすすめの一品"},
		{"scriptは中身ごと除去", `美味しい<script>alert("x")</script>`, "美味しい"},
		{"イベント属性付きタグを除去", `<img src=x onerror="alert(1)">写真`, "写真"},
		{"アンパサンドは元の文字に戻す", "麺 & スープ", "麺 & スープ"},
		{"リンクはテキストのみ残す", `<a href="https://example.com">地図</a>`, "地図"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.StripTags(tt.input); got != tt.want {
				t.Errorf("StripTags(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripTags_Idempotent(t *testing.T) {
	s := NewTextSanitizer(0)
	inputs := []string{
		"<p>段落</p>",
		"行1<br>行2",
		"普通のメモ",
	}
	for _, in := range inputs {
		first := s.StripTags(in)
		if second := s.StripTags(first); first != second {
			t.Errorf("StripTags is not idempotent for %q: %q -> %q", in, first, second)
		}
	}
}

func TestCleanNote_Length(t *testing.T) {
	s := NewTextSanitizer(10)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"上限ちょうどは許可", strings.Repeat("あ", 10), strings.Repeat("あ", 10), false},
		{"上限超過は拒否", strings.Repeat("あ", 11), "", true},
		{"タグ除去後の長さで判定", "<b>" + strings.Repeat("a", 10) + "</b>", strings.Repeat("a", 10), false},
		{"空のメモは許可", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CleanNote(tt.input)
			if tt.wantErr {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNoteTooLong {
					t.Fatalf("CleanNote() error = %v, want NOTE_TOO_LONG", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanNote() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CleanNote() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanNote_Unlimited(t *testing.T) {
	s := NewTextSanitizer(0)
	long := strings.Repeat("メモ", 5000)
	got, err := s.CleanNote(long)
	if err != nil {
		t.Fatalf("CleanNote() error = %v", err)
	}
	if got != long {
		t.Error("上限なしの設定で内容が変わった")
	}
}
