package weather

import (
	"time"
)

// Condition is the short categorical label a provider attaches to a sample
// (e.g. "Rain", "Clouds"). Providers normalize to the labels below; callers
// of the aggregate endpoint may pass any string and it is carried through.
type Condition string

const (
	ConditionUnknown      Condition = "Unknown"
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionRain         Condition = "Rain"
	ConditionSnow         Condition = "Snow"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionMist         Condition = "Mist"
)

// Location represents a logical place for which we track forecasts.
// City/Country must be provided; Lat/Lon are optional hints for
// coordinate-based providers.
type Location struct {
	City    string   `json:"city" yaml:"city"`
	Country string   `json:"country" yaml:"country"`
	Lat     *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// RawSample is one three-hour forecast slot as delivered by a provider.
type RawSample struct {
	Timestamp   int64     `json:"timestamp" validate:"gt=0"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    int       `json:"humidity" validate:"gte=0,lte=100"`
	Condition   Condition `json:"condition"`
	Icon        string    `json:"icon"`

	// PrecipProbability is nil when the provider omitted it.
	PrecipProbability *float64 `json:"precipProbability,omitempty" validate:"omitempty,gte=0,lte=1"`

	WindSpeed float64 `json:"windSpeed" validate:"gte=0"`
	Pressure  float64 `json:"pressure"`
}

// Pop returns the precipitation probability, treating an absent value as 0.
func (s RawSample) Pop() float64 {
	if s.PrecipProbability == nil {
		return 0
	}
	return *s.PrecipProbability
}

// HourlyEntry is a single slot of the short-range view.
type HourlyEntry struct {
	Time              string    `json:"time"`
	Timestamp         int64     `json:"timestamp"`
	Temperature       float64   `json:"temperature"`
	FeelsLike         float64   `json:"feelsLike"`
	Humidity          int       `json:"humidity"`
	Condition         Condition `json:"condition"`
	Icon              string    `json:"icon"`
	PrecipProbability float64   `json:"precipProbability"`
	WindSpeed         float64   `json:"windSpeed"`
	Pressure          float64   `json:"pressure"`
}

// DailyEntry summarizes all samples sharing one local calendar date.
type DailyEntry struct {
	Day               string    `json:"day"`
	Date              string    `json:"date"`
	High              float64   `json:"high"`
	Low               float64   `json:"low"`
	Humidity          float64   `json:"humidity"`
	Condition         Condition `json:"condition"`
	Icon              string    `json:"icon"`
	PrecipProbability float64   `json:"precipProbability"`
}

// TodayTemperatureRange is the min/max temperature expected for the reference day.
type TodayTemperatureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Feed is a provider's forecast series for one location, together with the
// current-conditions extremes used when the series has nothing for today.
type Feed struct {
	Provider   string
	Samples    []RawSample
	CurrentMin float64
	CurrentMax float64

	// Zone is the forecast location's wall-clock zone. Nil means UTC.
	Zone *time.Location
}

// Report is the aggregated forecast view for a location at a point in time.
type Report struct {
	ID          string                `json:"id"`
	Location    Location              `json:"location"`
	Provider    string                `json:"provider,omitempty"`
	GeneratedAt time.Time             `json:"generatedAt"` // always UTC
	Hourly      []HourlyEntry         `json:"hourly"`
	Daily       []DailyEntry          `json:"daily"`
	Today       TodayTemperatureRange `json:"today"`
}
