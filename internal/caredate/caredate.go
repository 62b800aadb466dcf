// Package caredate parses and formats the timestamps stored on care records.
//
// New records carry a zh-TW locale timestamp such as "2024/9/26 下午3:04:05".
// Older data and imports may carry ISO-8601 strings instead, so every
// reader accepts both.
package caredate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the layout of the calendar day keys used for grouping.
const DayLayout = "2006-01-02"

var ErrUnparseable = errors.New("unparseable record date")

var (
	// 2024/9/26 下午3:04:05, 2024/9/26 15:04:05, 2024-09-26 15:04
	localePattern = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})(?:\s+(上午|下午)?\s*(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

	isoLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

// ParseTimestamp parses a stored record date to a point in time. Strings
// without a zone are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseable
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.Contains(s, "T") {
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	m := localePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	var hour, minute, second int
	if m[5] != "" {
		hour, _ = strconv.Atoi(m[5])
		minute, _ = strconv.Atoi(m[6])
		if m[7] != "" {
			second, _ = strconv.Atoi(m[7])
		}
	}

	switch m[4] {
	case "上午":
		if hour == 12 {
			hour = 0
		}
	case "下午":
		if hour < 12 {
			hour += 12
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	if t.Day() != day {
		// time.Date normalizes 2024/2/31 into March
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	return t, nil
}

// ParseDay returns local midnight of the calendar day a record date falls
// on. ISO strings are converted to loc first; locale strings use the part
// before the first space.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)

	var t time.Time
	var err error
	if strings.Contains(s, "T") {
		t, err = ParseTimestamp(s, loc)
		if err != nil {
			return time.Time{}, err
		}
		t = t.In(loc)
	} else {
		datePart, _, _ := strings.Cut(s, " ")
		t, err = ParseTimestamp(datePart, loc)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// DayKey formats the calendar day of t.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// DatePart returns the text before the first space of a stored date. This
// is the grouping key the statistics views expose.
func DatePart(s string) string {
	datePart, _, _ := strings.Cut(s, " ")
	return datePart
}

// FormatLocale formats t the way new records are stamped.
func FormatLocale(t time.Time) string {
	period := "上午"
	hour := t.Hour()
	if hour >= 12 {
		period = "下午"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d/%d/%d %s%d:%02d:%02d",
		t.Year(), int(t.Month()), t.Day(), period, hour, t.Minute(), t.Second())
}

// MonthDay formats t as the chart axis label, e.g. "09/26".
func MonthDay(t time.Time) string {
	return t.Format("01/02")
}
