package weather

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func pop(v float64) *float64 { return &v }

// series builds n consecutive three-hour samples starting at start.
func series(start time.Time, n int) []RawSample {
	out := make([]RawSample, n)
	for i := range out {
		out[i] = RawSample{
			Timestamp:   start.Add(time.Duration(i) * 3 * time.Hour).Unix(),
			Temperature: float64(10 + i),
			FeelsLike:   float64(9 + i),
			Humidity:    50,
			Condition:   ConditionClouds,
			Icon:        "04d",
			WindSpeed:   3,
			Pressure:    1012,
		}
	}
	return out
}

func TestHourlyViewLengthAndOrder(t *testing.T) {
	agg := Aggregator{}
	for _, n := range []int{0, 1, 5, 8, 12, 40} {
		samples := series(baseTime, n)
		hourly := agg.HourlyView(samples)

		want := min(n, HourlySlots)
		if len(hourly) != want {
			t.Fatalf("n=%d: expected %d entries, got %d", n, want, len(hourly))
		}
		for i, h := range hourly {
			if h.Timestamp != samples[i].Timestamp {
				t.Fatalf("n=%d: entry %d out of order: got ts %d, want %d", n, i, h.Timestamp, samples[i].Timestamp)
			}
		}
	}
}

func TestHourlyViewDoesNotResort(t *testing.T) {
	samples := series(baseTime, 3)
	samples[0], samples[2] = samples[2], samples[0]

	hourly := Aggregator{}.HourlyView(samples)
	if hourly[0].Timestamp != samples[0].Timestamp || hourly[2].Timestamp != samples[2].Timestamp {
		t.Fatalf("expected input order to be preserved, got %+v", hourly)
	}
}

func TestHourlyViewFields(t *testing.T) {
	s := RawSample{
		Timestamp:         baseTime.Add(15 * time.Hour).Unix(),
		Temperature:       21.5,
		FeelsLike:         20.1,
		Humidity:          64,
		Condition:         ConditionRain,
		Icon:              "10d",
		PrecipProbability: pop(0.35),
		WindSpeed:         4.2,
		Pressure:          1008,
	}

	got := Aggregator{}.HourlyView([]RawSample{s})[0]
	want := HourlyEntry{
		Time:              "03:00 PM",
		Timestamp:         s.Timestamp,
		Temperature:       21.5,
		FeelsLike:         20.1,
		Humidity:          64,
		Condition:         ConditionRain,
		Icon:              "10d",
		PrecipProbability: 0.35,
		WindSpeed:         4.2,
		Pressure:          1008,
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestHourlyViewUsesZoneForLabel(t *testing.T) {
	samples := []RawSample{{Timestamp: baseTime.Add(9 * time.Hour).Unix()}}

	tests := []struct {
		zone *time.Location
		want string
	}{
		{nil, "09:00 AM"},
		{time.FixedZone("UTC+5", 5*3600), "02:00 PM"},
		{time.FixedZone("UTC-10", -10*3600), "11:00 PM"},
	}
	for _, tt := range tests {
		got := Aggregator{Zone: tt.zone}.HourlyView(samples)[0].Time
		if got != tt.want {
			t.Fatalf("zone %v: expected %q, got %q", tt.zone, tt.want, got)
		}
	}
}

func TestHourlyViewMissingPrecipitationDefaultsToZero(t *testing.T) {
	samples := series(baseTime, 2)
	samples[1].PrecipProbability = pop(0.4)

	hourly := Aggregator{}.HourlyView(samples)
	if hourly[0].PrecipProbability != 0 {
		t.Fatalf("expected missing pop to be 0, got %v", hourly[0].PrecipProbability)
	}
	if hourly[1].PrecipProbability != 0.4 {
		t.Fatalf("expected pop 0.4, got %v", hourly[1].PrecipProbability)
	}
}

func TestDailyViewSingleDayScenario(t *testing.T) {
	samples := series(baseTime, 8)
	temps := []float64{10, 12, 15, 18, 20, 19, 16, 13}
	humidity := []int{80, 70, 60, 50, 40, 50, 60, 70}
	for i := range samples {
		samples[i].Temperature = temps[i]
		samples[i].Humidity = humidity[i]
	}

	daily := Aggregator{}.DailyView(samples)
	if len(daily) != 1 {
		t.Fatalf("expected 1 daily entry, got %d", len(daily))
	}
	d := daily[0]
	if d.High != 20 || d.Low != 10 {
		t.Fatalf("expected high=20 low=10, got high=%v low=%v", d.High, d.Low)
	}
	if d.Humidity != 60 {
		t.Fatalf("expected mean humidity 60, got %v", d.Humidity)
	}
	if d.Day != "Fri" || d.Date != "Oct 16" {
		t.Fatalf("expected Fri / Oct 16, got %s / %s", d.Day, d.Date)
	}
}

func TestDailyViewTieBreakPrefersLastOccurrence(t *testing.T) {
	tests := []struct {
		name       string
		conditions []Condition
		icons      []string
		wantCond   Condition
		wantIcon   string
	}{
		{
			name:       "alternating tie",
			conditions: []Condition{ConditionRain, ConditionClouds, ConditionRain, ConditionClouds},
			icons:      []string{"10d", "04d", "10d", "04d"},
			wantCond:   ConditionClouds,
			wantIcon:   "04d",
		},
		{
			name:       "tie resolved by last element",
			conditions: []Condition{ConditionClouds, ConditionClouds, ConditionRain, ConditionRain, ConditionClear},
			icons:      []string{"04n", "10n", "04n", "10n", "01d"},
			wantCond:   ConditionRain,
			wantIcon:   "10n",
		},
		{
			name:       "clear majority",
			conditions: []Condition{ConditionClear, ConditionRain, ConditionRain, ConditionClear, ConditionRain},
			icons:      []string{"01d", "10d", "10d", "01d", "01n"},
			wantCond:   ConditionRain,
			wantIcon:   "01d",
		},
		{
			name:       "all distinct",
			conditions: []Condition{ConditionClear, ConditionMist, ConditionSnow},
			icons:      []string{"01d", "50d", "13d"},
			wantCond:   ConditionSnow,
			wantIcon:   "13d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := series(baseTime, len(tt.conditions))
			for i := range samples {
				samples[i].Condition = tt.conditions[i]
				samples[i].Icon = tt.icons[i]
			}

			d := Aggregator{}.DailyView(samples)[0]
			if d.Condition != tt.wantCond {
				t.Fatalf("expected condition %s, got %s", tt.wantCond, d.Condition)
			}
			if d.Icon != tt.wantIcon {
				t.Fatalf("expected icon %s, got %s", tt.wantIcon, d.Icon)
			}
		})
	}
}

func TestDailyViewTruncatesToFirstSevenDays(t *testing.T) {
	// 10 days at 3-hour granularity.
	samples := series(baseTime, 80)

	daily := Aggregator{}.DailyView(samples)
	if len(daily) != MaxDays {
		t.Fatalf("expected %d daily entries, got %d", MaxDays, len(daily))
	}
	for i, d := range daily {
		want := baseTime.AddDate(0, 0, i).Format("Jan 2")
		if d.Date != want {
			t.Fatalf("entry %d: expected date %s, got %s", i, want, d.Date)
		}
	}
}

func TestDailyViewKeepsFirstSeenOrderForUnorderedDays(t *testing.T) {
	day := func(d, h int, temp float64) RawSample {
		return RawSample{
			Timestamp:   baseTime.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour).Unix(),
			Temperature: temp,
			Condition:   ConditionClear,
		}
	}

	// Eight distinct days, the first one revisited after the eighth was seen.
	samples := []RawSample{
		day(3, 0, 5), day(0, 0, 5), day(1, 0, 5), day(2, 0, 5),
		day(6, 0, 5), day(5, 0, 5), day(4, 0, 5), day(7, 0, 5),
		day(3, 12, 30),
	}

	daily := Aggregator{}.DailyView(samples)
	if len(daily) != MaxDays {
		t.Fatalf("expected %d entries, got %d", MaxDays, len(daily))
	}

	wantOrder := []int{3, 0, 1, 2, 6, 5, 4}
	for i, d := range daily {
		want := baseTime.AddDate(0, 0, wantOrder[i]).Format("Jan 2")
		if d.Date != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, d.Date)
		}
	}
	if daily[0].High != 30 {
		t.Fatalf("expected late sample to count towards its day, got high=%v", daily[0].High)
	}
}

func TestDailyViewBucketsByLocalCalendarDate(t *testing.T) {
	// 21:00 and 23:00 UTC on Oct 16 fall on Oct 17 at UTC+3.
	samples := []RawSample{
		{Timestamp: baseTime.Add(18 * time.Hour).Unix(), Temperature: 1},
		{Timestamp: baseTime.Add(21 * time.Hour).Unix(), Temperature: 2},
		{Timestamp: baseTime.Add(23 * time.Hour).Unix(), Temperature: 3},
	}

	utc := Aggregator{}.DailyView(samples)
	if len(utc) != 1 {
		t.Fatalf("expected 1 UTC day, got %d", len(utc))
	}

	local := Aggregator{Zone: time.FixedZone("UTC+3", 3*3600)}.DailyView(samples)
	if len(local) != 2 {
		t.Fatalf("expected 2 local days, got %d", len(local))
	}
	if local[0].Date != "Oct 16" || local[1].Date != "Oct 17" || local[1].Day != "Sat" {
		t.Fatalf("unexpected local buckets: %+v", local)
	}
	if local[1].Low != 2 || local[1].High != 3 {
		t.Fatalf("expected Oct 17 low=2 high=3, got low=%v high=%v", local[1].Low, local[1].High)
	}
}

func TestDailyViewPrecipitationMax(t *testing.T) {
	samples := series(baseTime, 4)
	samples[1].PrecipProbability = pop(0.2)
	samples[2].PrecipProbability = pop(0.65)

	d := Aggregator{}.DailyView(samples)[0]
	if d.PrecipProbability != 0.65 {
		t.Fatalf("expected max pop 0.65, got %v", d.PrecipProbability)
	}

	// Only missing values: contributes 0.
	d = Aggregator{}.DailyView(series(baseTime, 4))[0]
	if d.PrecipProbability != 0 {
		t.Fatalf("expected pop 0 for missing values, got %v", d.PrecipProbability)
	}
}

func TestDailyViewSingleSampleBucket(t *testing.T) {
	s := RawSample{
		Timestamp:         baseTime.Add(6 * time.Hour).Unix(),
		Temperature:       -3.5,
		Humidity:          91,
		Condition:         ConditionSnow,
		Icon:              "13n",
		PrecipProbability: pop(0.8),
	}

	d := Aggregator{}.DailyView([]RawSample{s})[0]
	if d.High != -3.5 || d.Low != -3.5 {
		t.Fatalf("expected high == low == -3.5, got %v/%v", d.High, d.Low)
	}
	if d.Humidity != 91 {
		t.Fatalf("expected humidity 91, got %v", d.Humidity)
	}
	if d.Condition != ConditionSnow || d.Icon != "13n" {
		t.Fatalf("expected Snow/13n, got %s/%s", d.Condition, d.Icon)
	}
	if d.PrecipProbability != 0.8 {
		t.Fatalf("expected pop 0.8, got %v", d.PrecipProbability)
	}
}

func TestDailyViewLowNeverExceedsHigh(t *testing.T) {
	samples := series(baseTime, 40)
	for i := range samples {
		// Zig-zag temperatures with negative values.
		samples[i].Temperature = float64((i*37)%23) - 11.5
	}

	for _, zone := range []*time.Location{nil, time.FixedZone("UTC-7", -7*3600), time.FixedZone("UTC+13", 13*3600)} {
		for _, d := range (Aggregator{Zone: zone}).DailyView(samples) {
			if d.Low > d.High {
				t.Fatalf("zone %v: low %v exceeds high %v on %s", zone, d.Low, d.High, d.Date)
			}
		}
	}
}

func TestDailyViewIsDeterministic(t *testing.T) {
	samples := series(baseTime, 40)
	for i := range samples {
		if i%3 == 0 {
			samples[i].Condition = ConditionRain
			samples[i].Icon = "10d"
		}
	}

	agg := Aggregator{Zone: time.FixedZone("UTC+2", 2*3600)}
	first := agg.DailyView(samples)
	for i := 0; i < 5; i++ {
		if again := agg.DailyView(samples); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestDailyViewEmpty(t *testing.T) {
	if got := (Aggregator{}).DailyView(nil); len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestTodayRange(t *testing.T) {
	samples := series(baseTime.Add(9*time.Hour), 8) // Oct 16 09:00 .. Oct 17 06:00
	for i := range samples {
		samples[i].Temperature = []float64{14, 17, 19, 16, 12, 9, 8, 10}[i]
	}
	ref := baseTime.Add(11 * time.Hour)

	got := Aggregator{}.TodayRange(samples, ref, -100, 100)
	if got != (TodayTemperatureRange{Min: 12, Max: 19}) {
		t.Fatalf("expected {12 19}, got %+v", got)
	}
}

func TestTodayRangeFallsBackToCurrentValues(t *testing.T) {
	samples := series(baseTime.AddDate(0, 0, 1), 8) // feed starts tomorrow
	ref := baseTime.Add(20 * time.Hour)

	got := Aggregator{}.TodayRange(samples, ref, 7.25, 18.5)
	if got != (TodayTemperatureRange{Min: 7.25, Max: 18.5}) {
		t.Fatalf("expected fallback {7.25 18.5}, got %+v", got)
	}

	if got := (Aggregator{}).TodayRange(nil, ref, 1, 2); got != (TodayTemperatureRange{Min: 1, Max: 2}) {
		t.Fatalf("expected fallback for empty feed, got %+v", got)
	}
}

func TestTodayRangeUsesZoneForReferenceDate(t *testing.T) {
	samples := []RawSample{
		{Timestamp: baseTime.Add(21 * time.Hour).Unix(), Temperature: 4}, // Oct 17 00:00 at UTC+3
		{Timestamp: baseTime.Add(27 * time.Hour).Unix(), Temperature: 9}, // Oct 17 06:00 at UTC+3
	}
	// Oct 16 22:00 UTC is already Oct 17 at UTC+3.
	ref := baseTime.Add(22 * time.Hour)

	got := Aggregator{Zone: time.FixedZone("UTC+3", 3*3600)}.TodayRange(samples, ref, 0, 0)
	if got != (TodayTemperatureRange{Min: 4, Max: 9}) {
		t.Fatalf("expected {4 9}, got %+v", got)
	}

	got = Aggregator{}.TodayRange(samples, ref, 0, 0)
	if got != (TodayTemperatureRange{Min: 4, Max: 4}) {
		t.Fatalf("expected {4 4} in UTC, got %+v", got)
	}
}

func TestBuild(t *testing.T) {
	feed := Feed{
		Provider:   "test",
		Samples:    series(baseTime, 16),
		CurrentMin: 1,
		CurrentMax: 2,
	}

	r := Aggregator{}.Build(feed, baseTime)
	if r.Provider != "test" {
		t.Fatalf("expected provider test, got %q", r.Provider)
	}
	if len(r.Hourly) != 8 || len(r.Daily) != 2 {
		t.Fatalf("expected 8 hourly / 2 daily, got %d / %d", len(r.Hourly), len(r.Daily))
	}
	if r.Today != (TodayTemperatureRange{Min: 10, Max: 17}) {
		t.Fatalf("expected today {10 17}, got %+v", r.Today)
	}
}

func TestValidateSamples(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]RawSample)
		wantErr bool
	}{
		{"valid", func([]RawSample) {}, false},
		{"missing pop is fine", func(s []RawSample) { s[1].PrecipProbability = nil }, false},
		{"zero timestamp", func(s []RawSample) { s[0].Timestamp = 0 }, true},
		{"humidity above range", func(s []RawSample) { s[1].Humidity = 101 }, true},
		{"negative humidity", func(s []RawSample) { s[2].Humidity = -1 }, true},
		{"pop above one", func(s []RawSample) { s[2].PrecipProbability = pop(1.5) }, true},
		{"negative wind", func(s []RawSample) { s[0].WindSpeed = -2 }, true},
		{"decreasing timestamps", func(s []RawSample) { s[2].Timestamp = s[0].Timestamp - 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := series(baseTime, 3)
			samples[0].PrecipProbability = pop(0.1)
			tt.mutate(samples)

			err := ValidateSamples(samples)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSample) {
					t.Fatalf("expected ErrInvalidSample, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMostFrequentEmpty(t *testing.T) {
	if got := mostFrequent[string](nil); got != "" {
		t.Fatalf("expected zero value, got %q", got)
	}
}
