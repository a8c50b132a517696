package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout — формат дат в параметрах HTTP API
const DateLayout = "2006-01-02"

// DateWindow — диапазон дат подтверждения заказа, обе границы включительно
type DateWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Today возвращает начало текущих суток в часовом поясе now
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// Yesterday возвращает начало предыдущих суток
func Yesterday(now time.Time) time.Time {
	return Today(now).AddDate(0, 0, -1)
}

// DailyWindow — окно ежедневной синхронизации: со вчера по сегодня
func DailyWindow(now time.Time) DateWindow {
	return DateWindow{From: Yesterday(now), To: Today(now)}
}

// ErrInvalidWindow — границы окна не разобраны или from позже to
var ErrInvalidWindow = errors.New("invalid date window")

// ParseWindow разбирает границы в формате DateLayout в часовом поясе now
// пустая граница берётся из DailyWindow(now)
func ParseWindow(fromStr, toStr string, now time.Time) (DateWindow, error) {
	window := DailyWindow(now)

	if fromStr != "" {
		from, err := time.ParseInLocation(DateLayout, fromStr, now.Location())
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: from date %q, expected YYYY-MM-DD", ErrInvalidWindow, fromStr)
		}
		window.From = from
	}
	if toStr != "" {
		to, err := time.ParseInLocation(DateLayout, toStr, now.Location())
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: to date %q, expected YYYY-MM-DD", ErrInvalidWindow, toStr)
		}
		window.To = to
	}

	if window.From.After(window.To) {
		return DateWindow{}, fmt.Errorf("%w: from date must not be after to date", ErrInvalidWindow)
	}
	return window, nil
}
