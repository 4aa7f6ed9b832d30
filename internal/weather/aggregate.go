package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// HourlySlots is the number of leading samples kept in the hourly view
	// (eight three-hour slots, roughly the next 24 hours).
	HourlySlots = 8
	// MaxDays caps the daily view.
	MaxDays = 7

	timeLabelLayout = "03:04 PM"
	dayLabelLayout  = "Mon"
	dateLabelLayout = "Jan 2"
	dayKeyLayout    = "2006-01-02"
)

// ErrInvalidSample is returned by ValidateSamples for data the upstream feed
// should never have produced.
var ErrInvalidSample = errors.New("invalid forecast sample")

var validate = validator.New()

// ValidateSamples checks a feed before it reaches the Aggregator: every
// sample must pass its field constraints and timestamps must not decrease.
func ValidateSamples(samples []RawSample) error {
	var prev int64
	for i, s := range samples {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("%w: sample %d: %v", ErrInvalidSample, i, err)
		}
		if s.Timestamp < prev {
			return fmt.Errorf("%w: sample %d: timestamp %d precedes %d", ErrInvalidSample, i, s.Timestamp, prev)
		}
		prev = s.Timestamp
	}
	return nil
}

// Aggregator turns a forecast series into hourly, daily and today views.
// Zone decides calendar days and wall-clock labels; nil means UTC.
// An Aggregator holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	Zone *time.Location
}

func (a Aggregator) zone() *time.Location {
	if a.Zone == nil {
		return time.UTC
	}
	return a.Zone
}

func (a Aggregator) localTime(ts int64) time.Time {
	return time.Unix(ts, 0).In(a.zone())
}

// HourlyView maps the first HourlySlots samples 1:1, preserving input order.
func (a Aggregator) HourlyView(samples []RawSample) []HourlyEntry {
	n := min(len(samples), HourlySlots)
	out := make([]HourlyEntry, 0, n)
	for _, s := range samples[:n] {
		out = append(out, HourlyEntry{
			Time:              a.localTime(s.Timestamp).Format(timeLabelLayout),
			Timestamp:         s.Timestamp,
			Temperature:       s.Temperature,
			FeelsLike:         s.FeelsLike,
			Humidity:          s.Humidity,
			Condition:         s.Condition,
			Icon:              s.Icon,
			PrecipProbability: s.Pop(),
			WindSpeed:         s.WindSpeed,
			Pressure:          s.Pressure,
		})
	}
	return out
}

// dayBucket accumulates the samples of one local calendar date.
type dayBucket struct {
	first       time.Time
	high, low   float64
	humiditySum int
	pop         float64
	conditions  []Condition
	icons       []string
}

func (b *dayBucket) add(s RawSample) {
	if len(b.conditions) == 0 {
		b.high, b.low, b.pop = s.Temperature, s.Temperature, s.Pop()
	} else {
		b.high = max(b.high, s.Temperature)
		b.low = min(b.low, s.Temperature)
		b.pop = max(b.pop, s.Pop())
	}
	b.humiditySum += s.Humidity
	b.conditions = append(b.conditions, s.Condition)
	b.icons = append(b.icons, s.Icon)
}

func (b *dayBucket) entry() DailyEntry {
	return DailyEntry{
		Day:               b.first.Format(dayLabelLayout),
		Date:              b.first.Format(dateLabelLayout),
		High:              b.high,
		Low:               b.low,
		Humidity:          float64(b.humiditySum) / float64(len(b.conditions)),
		Condition:         mostFrequent(b.conditions),
		Icon:              mostFrequent(b.icons),
		PrecipProbability: b.pop,
	}
}

// DailyView groups samples by local calendar date and reduces each group.
// Days appear in the order they are first seen and at most MaxDays are kept.
func (a Aggregator) DailyView(samples []RawSample) []DailyEntry {
	index := make(map[string]*dayBucket)
	var order []*dayBucket

	for _, s := range samples {
		t := a.localTime(s.Timestamp)
		key := t.Format(dayKeyLayout)

		b, ok := index[key]
		if !ok {
			// Later samples of already-open days still count, so capping
			// here selects the same days as truncating after grouping.
			if len(order) == MaxDays {
				continue
			}
			b = &dayBucket{first: t}
			index[key] = b
			order = append(order, b)
		}
		b.add(s)
	}

	out := make([]DailyEntry, 0, len(order))
	for _, b := range order {
		out = append(out, b.entry())
	}
	return out
}

// TodayRange returns the temperature extremes of the samples falling on
// referenceDate's calendar day. With no such samples it returns
// currentMin/currentMax unchanged.
func (a Aggregator) TodayRange(samples []RawSample, referenceDate time.Time, currentMin, currentMax float64) TodayTemperatureRange {
	today := referenceDate.In(a.zone()).Format(dayKeyLayout)

	found := false
	var r TodayTemperatureRange
	for _, s := range samples {
		if a.localTime(s.Timestamp).Format(dayKeyLayout) != today {
			continue
		}
		if !found {
			r = TodayTemperatureRange{Min: s.Temperature, Max: s.Temperature}
			found = true
			continue
		}
		r.Min = min(r.Min, s.Temperature)
		r.Max = max(r.Max, s.Temperature)
	}

	if !found {
		return TodayTemperatureRange{Min: currentMin, Max: currentMax}
	}
	return r
}

// Build composes all three views for a feed. ID, Location and GeneratedAt
// are left for the caller.
func (a Aggregator) Build(feed Feed, referenceDate time.Time) Report {
	return Report{
		Provider: feed.Provider,
		Hourly:   a.HourlyView(feed.Samples),
		Daily:    a.DailyView(feed.Samples),
		Today:    a.TodayRange(feed.Samples, referenceDate, feed.CurrentMin, feed.CurrentMax),
	}
}

// mostFrequent returns the value with the highest count. Among values tied
// for the highest count, the one occurring last in values wins.
func mostFrequent[T comparable](values []T) T {
	counts := make(map[T]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	var best T
	bestCount := 0
	for _, v := range values {
		if c := counts[v]; c >= bestCount {
			best, bestCount = v, c
		}
	}
	return best
}
