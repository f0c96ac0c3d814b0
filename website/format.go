package website

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/hako/durafmt"
	"github.com/rickb777/date"
)

func locale(s string) monday.Locale {
	if s == "" {
		return monday.LocaleEnUS
	}
	return monday.Locale(s)
}

// formatDate returns a long, localized, date such as "Wednesday, 8 April"
func formatDate(t time.Time, loc string) string {
	return monday.Format(t, "Monday, 2 January", locale(loc))
}

// formatDateTime returns a short, localized, date and time
func formatDateTime(t time.Time, loc string) string {
	return monday.Format(t, "Mon 2 Jan 15:04", locale(loc))
}

// formatDueIn returns how long until t, such as "2 days 3 hours", or "overdue"
func formatDueIn(t time.Time) string {
	d := time.Until(t)
	if d < 0 {
		return "overdue"
	}
	if d < time.Minute {
		return "now"
	}
	s := durafmt.Parse(d.Truncate(time.Minute)).LimitFirstN(2).String()
	return strings.TrimSpace(s)
}

// daysUntil returns the number of calendar days between now and t, in the
// time zone of t
func daysUntil(t time.Time) int {
	return int(date.NewAt(t).Sub(date.NewAt(time.Now().In(t.Location()))))
}

func weekdayName(weekday time.Weekday) string {
	return weekday.String()
}

func deref(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func durationMinutes(d time.Duration) int {
	return int(d / time.Minute)
}
