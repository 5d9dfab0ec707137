// Package openhours は店舗の営業時間文字列を解釈し、営業中かどうかを判定する。
//
// 受け付ける形式は "<開始> (AM|PM)(–|-)<終了> (AM|PM)" で、分は省略できる
// （例: "7:30 AM–10 PM"、"10 PM-2 AM"）。それ以外の形式は解釈できないものとして扱う。
//
// タイムゾーンの正規化は行わない。判定に使う時刻は呼び出し側が渡したtime.Timeの
// ロケーションの壁時計で評価し、店舗の営業時間も同じ壁時計で書かれているとみなす。
package openhours

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// minutesPerDay は1日の分数。
const minutesPerDay = 24 * 60

// timeTokenPattern は空白除去後の時刻トークン（H[:MM]AM|PM）にマッチする。
var timeTokenPattern = regexp.MustCompile(`(?i)^(\d{1,2})(?::?(\d{2}))?(AM|PM)$`)

// Window は正規化された営業時間帯 [StartMinutes, EndMinutes) を表す。
// 値は0時からの経過分（0〜1439）。
type Window struct {
	StartMinutes  int
	EndMinutes    int
	SpansMidnight bool // EndMinutes < StartMinutes の場合true（深夜0時をまたぐ）
}

// Contains は0時からの経過分minuteが営業時間帯に含まれるかを判定する。
// 終了時刻ちょうどは含まない。開始と終了が同じ場合はどの時刻も含まない。
func (w Window) Contains(minute int) bool {
	if w.SpansMidnight {
		return minute >= w.StartMinutes || minute < w.EndMinutes
	}
	return minute >= w.StartMinutes && minute < w.EndMinutes
}

// String は "HH:MM-HH:MM" 形式の24時間表記を返す。
func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		w.StartMinutes/60, w.StartMinutes%60,
		w.EndMinutes/60, w.EndMinutes%60,
	)
}

// ParseOpeningHours は営業時間文字列をWindowに変換する。
// 開始と終了の2つに分割できない、時刻トークンにマッチしない、数値が範囲外のいずれかの場合は
// okにfalseを返す。エラーやpanicにはならない。
func ParseOpeningHours(text string) (w Window, ok bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	// 区切り文字はちょうど1つでなければならない（"7AM--9PM" は3分割扱い）
	if strings.Count(compact, "-")+strings.Count(compact, "–") != 1 {
		return Window{}, false
	}
	i := strings.IndexFunc(compact, isRangeSeparator)
	_, size := utf8.DecodeRuneInString(compact[i:])

	start, ok := parseTimeToken(compact[:i])
	if !ok {
		return Window{}, false
	}
	end, ok := parseTimeToken(compact[i+size:])
	if !ok {
		return Window{}, false
	}

	return Window{
		StartMinutes:  start,
		EndMinutes:    end,
		SpansMidnight: end < start,
	}, true
}

// isRangeSeparator は開始と終了の区切り文字（ハイフンまたはエンダッシュ）かを判定する。
func isRangeSeparator(r rune) bool {
	return r == '-' || r == '–'
}

// parseTimeToken は "7:30PM" のようなトークンを0時からの経過分に変換する。
func parseTimeToken(token string) (int, bool) {
	m := timeTokenPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}

	hours, err := strconv.Atoi(m[1])
	if err != nil || hours < 1 || hours > 12 {
		return 0, false
	}

	minutes := 0
	if m[2] != "" {
		minutes, err = strconv.Atoi(m[2])
		if err != nil || minutes > 59 {
			return 0, false
		}
	}

	// 12時間表記→24時間表記: 12 AM は0時、12 PM は12時
	switch strings.ToUpper(m[3]) {
	case "AM":
		if hours == 12 {
			hours = 0
		}
	case "PM":
		if hours != 12 {
			hours += 12
		}
	}

	return hours*60 + minutes, true
}

// MinuteOfDay はtのロケーションにおける0時からの経過分を返す。
func MinuteOfDay(t time.Time) int {
	return (t.Hour()*60 + t.Minute()) % minutesPerDay
}

// IsOpen は営業時間文字列とnowから営業中かどうかを判定する。
// 文字列が空または解釈できない場合はknownにfalseを返す。
// その場合openの値には意味がなく、呼び出し側は「閉店」ではなく「不明」として扱うこと。
func IsOpen(text string, now time.Time) (open bool, known bool) {
	if strings.TrimSpace(text) == "" {
		return false, false
	}
	w, ok := ParseOpeningHours(text)
	if !ok {
		return false, false
	}
	return w.Contains(MinuteOfDay(now)), true
}
