package openhours

import "time"

// Status は表示用の営業状態。
type Status string

const (
	// StatusUnknown は営業時間が未設定または解釈できない状態。
	// 「閉店」とは区別し、UIでは中立の表示にする。
	StatusUnknown Status = "unknown"
	// StatusOpen は営業中。
	StatusOpen Status = "open"
	// StatusClosed は営業時間外。
	StatusClosed Status = "closed"
)

// Evaluate は営業時間文字列とnowから表示用の営業状態を返す。
func Evaluate(text string, now time.Time) Status {
	open, known := IsOpen(text, now)
	switch {
	case !known:
		return StatusUnknown
	case open:
		return StatusOpen
	default:
		return StatusClosed
	}
}

// Known は営業状態が判定できたかを返す。
func (s Status) Known() bool {
	return s == StatusOpen || s == StatusClosed
}
