// Package chart turns care records into the series the trend charts plot.
//
// Every function here is pure: it reads its input and the supplied clock
// and keeps no state, so callers may build charts concurrently.
package chart

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/carelog/internal/caredate"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

// DefaultDays is the window used when a caller passes a non-positive one.
const DefaultDays = 30

var ErrUnknownKind = errors.New("unknown chart kind")

type Kind string

const (
	BloodPressure Kind = "bloodPressure"
	Temperature   Kind = "temperature"
	WaterIntake   Kind = "waterIntake"
	SleepQuality  Kind = "sleepQuality"
	MealStatus    Kind = "mealStatus"
)

// Kinds lists the supported charts in menu order.
func Kinds() []Kind {
	return []Kind{BloodPressure, Temperature, WaterIntake, SleepQuality, MealStatus}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Axis carries the y-axis hints a renderer needs.
type Axis struct {
	Title       string   `json:"title"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	BeginAtZero bool     `json:"beginAtZero,omitempty"`
	TickLabels  []string `json:"tickLabels,omitempty"`
}

type Series struct {
	Kind     Kind      `json:"kind"`
	Type     string    `json:"type"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
	Axis     Axis      `json:"axis"`
}

// Build computes the series of the given kind over the records dated
// within the last days days of now. Records whose date cannot be parsed
// are skipped. Days without a value for the charted metric are omitted,
// so labels need not be contiguous.
func Build(kind Kind, records []record.Record, days int, now time.Time) (*Series, error) {
	if days <= 0 {
		days = DefaultDays
	}
	w := window{
		start: now.AddDate(0, 0, -days),
		end:   now,
		loc:   now.Location(),
	}

	switch kind {
	case BloodPressure:
		return bloodPressure(w.filter(records)), nil
	case Temperature:
		return temperature(w.filter(records), w.loc), nil
	case WaterIntake:
		return waterIntake(w.filter(records)), nil
	case SleepQuality:
		return sleepQuality(w.filter(records)), nil
	case MealStatus:
		return meals(w.filter(records)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

type window struct {
	start, end time.Time
	loc        *time.Location
}

type dated struct {
	rec record.Record
	day time.Time
}

func (w window) filter(records []record.Record) []dated {
	out := make([]dated, 0, len(records))
	for _, rec := range records {
		at, err := w.instant(rec.Date)
		if err != nil {
			continue
		}
		if at.Before(w.start) || at.After(w.end) {
			continue
		}
		day, err := caredate.ParseDay(rec.Date, w.loc)
		if err != nil {
			continue
		}
		out = append(out, dated{rec: rec, day: day})
	}
	return out
}

// instant is the point in time compared against the window: the full
// timestamp for ISO strings, local midnight otherwise.
func (w window) instant(date string) (time.Time, error) {
	if strings.Contains(date, "T") {
		return caredate.ParseTimestamp(date, w.loc)
	}
	return caredate.ParseDay(date, w.loc)
}

type dayGroup struct {
	day     time.Time
	records []record.Record
}

func groupByDay(items []dated) []dayGroup {
	byKey := map[string]*dayGroup{}
	for _, it := range items {
		key := caredate.DayKey(it.day)
		g, ok := byKey[key]
		if !ok {
			g = &dayGroup{day: it.day}
			byKey[key] = g
		}
		g.records = append(g.records, it.rec)
	}

	groups := make([]dayGroup, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].day.Before(groups[j].day) })
	return groups
}

func bloodPressure(items []dated) *Series {
	s := newSeries(BloodPressure, "line", Axis{Title: "血壓 (mmHg)", Min: float(60), Max: float(200)}, "收縮壓", "舒張壓")
	for _, g := range groupByDay(items) {
		var sys, dia float64
		n := 0
		for _, rec := range g.records {
			if !rec.Systolic.Has() || !rec.Diastolic.Has() {
				continue
			}
			sys += float64(rec.Systolic.Int())
			dia += float64(rec.Diastolic.Int())
			n++
		}
		if n == 0 {
			continue
		}
		s.add(g.day, round(sys/float64(n), 0), round(dia/float64(n), 0))
	}
	return s
}

func temperature(items []dated, loc *time.Location) *Series {
	type point struct {
		at    time.Time
		day   time.Time
		value float64
	}
	points := make([]point, 0, len(items))
	for _, it := range items {
		if !it.rec.Temperature.Has() {
			continue
		}
		at, err := caredate.ParseTimestamp(it.rec.Date, loc)
		if err != nil {
			at = it.day
		}
		points = append(points, point{at: at, day: it.day, value: it.rec.Temperature.Value})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	s := newSeries(Temperature, "line", Axis{Title: "體溫 (°C)", Min: float(35), Max: float(40)}, "體溫 (°C)")
	for _, p := range points {
		s.add(p.day, p.value)
	}
	return s
}

func waterIntake(items []dated) *Series {
	s := newSeries(WaterIntake, "bar", Axis{Title: "喝水量 (ml)", BeginAtZero: true}, "喝水量 (ml)")
	for _, g := range groupByDay(items) {
		var total int64
		n := 0
		for _, rec := range g.records {
			if rec.Water.Has() {
				total += rec.Water.Int()
				n++
			}
		}
		if n == 0 {
			continue
		}
		s.add(g.day, float64(total))
	}
	return s
}

func sleepQuality(items []dated) *Series {
	axis := Axis{
		Title:      "睡眠品質分數",
		Min:        float(0),
		Max:        float(3),
		TickLabels: []string{"", "差", "中", "好"},
	}
	s := newSeries(SleepQuality, "line", axis, "睡眠品質分數")
	for _, g := range groupByDay(items) {
		var sum float64
		n := 0
		for _, rec := range g.records {
			if score, ok := rec.Sleep.Score(); ok {
				sum += score
				n++
			}
		}
		if n == 0 {
			continue
		}
		s.add(g.day, round(sum/float64(n), 1))
	}
	return s
}

func meals(items []dated) *Series {
	statuses := []record.MealStatus{record.MealFinished, record.MealHalf, record.MealNone}
	var counts [3][3]float64 // [status][meal]
	for _, it := range items {
		for m, meal := range []record.MealStatus{it.rec.Breakfast, it.rec.Lunch, it.rec.Dinner} {
			switch meal {
			case "":
			case record.MealFinished:
				counts[0][m]++
			case record.MealHalf:
				counts[1][m]++
			default:
				counts[2][m]++
			}
		}
	}

	s := &Series{
		Kind:   MealStatus,
		Type:   "bar",
		Labels: []string{"早餐", "午餐", "晚餐"},
		Axis:   Axis{BeginAtZero: true},
	}
	for i, status := range statuses {
		s.Datasets = append(s.Datasets, Dataset{Label: string(status), Data: counts[i][:]})
	}
	return s
}

func newSeries(kind Kind, typ string, axis Axis, labels ...string) *Series {
	s := &Series{Kind: kind, Type: typ, Labels: []string{}, Axis: axis}
	for _, l := range labels {
		s.Datasets = append(s.Datasets, Dataset{Label: l, Data: []float64{}})
	}
	return s
}

func (s *Series) add(day time.Time, values ...float64) {
	s.Labels = append(s.Labels, caredate.MonthDay(day))
	for i, v := range values {
		s.Datasets[i].Data = append(s.Datasets[i].Data, v)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}

func float(v float64) *float64 { return &v }
