// Package export renders care records as a spreadsheet or as a printable
// HTML report. Absent values are shown as "-".
package export

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

// Placeholder stands in for a value that was not recorded.
const Placeholder = "-"

var ErrNoRecords = errors.New("沒有資料可以匯出")

// FileName builds "<prefix>_<YYYY-MM-DD>.<ext>" from the UTC date of now.
func FileName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.UTC().Format("2006-01-02"), ext)
}

func text(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func intText(v record.IntValue) string {
	if !v.Has() {
		return Placeholder
	}
	return strconv.FormatInt(v.Int(), 10)
}

func water(r record.Record) string {
	if !r.Water.Has() {
		return Placeholder
	}
	return strconv.FormatInt(r.Water.Int(), 10) + "ml"
}

func bloodPressure(r record.Record) string {
	if !r.Systolic.Has() || !r.Diastolic.Has() {
		return Placeholder
	}
	return fmt.Sprintf("%d/%d", r.Systolic.Int(), r.Diastolic.Int())
}

func temperature(r record.Record) string {
	if !r.Temperature.Has() {
		return Placeholder
	}
	return strconv.FormatFloat(r.Temperature.Value, 'f', -1, 64) + "°C"
}

// row is a record flattened to display strings.
type row struct {
	Date, Name, Age, Room      string
	Breakfast, Lunch, Dinner   string
	Water, Systolic, Diastolic string
	BloodPressure, Pulse, Temp string
	Sleep, Note                string
	HasNote                    bool
}

func flatten(r record.Record) row {
	return row{
		Date:          r.Date,
		Name:          r.Name,
		Age:           string(r.Age),
		Room:          r.Room,
		Breakfast:     text(string(r.Breakfast)),
		Lunch:         text(string(r.Lunch)),
		Dinner:        text(string(r.Dinner)),
		Water:         water(r),
		Systolic:      intText(r.Systolic),
		Diastolic:     intText(r.Diastolic),
		BloodPressure: bloodPressure(r),
		Pulse:         intText(r.Pulse),
		Temp:          temperature(r),
		Sleep:         text(string(r.Sleep)),
		Note:          text(r.Note),
		HasNote:       r.Note != "",
	}
}
