package weather

import (
	"context"
	"time"
)

// FeedProvider abstracts a forecast data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type FeedProvider interface {
	Name() string
	FetchFeed(ctx context.Context, loc Location) (Feed, error)
}

// Store is the contract the report stores (memory, redis) must satisfy.
type Store interface {
	SaveReport(ctx context.Context, report Report) error
	Latest(ctx context.Context, loc Location) (Report, error)
	Range(ctx context.Context, loc Location, from, to time.Time) ([]Report, error)
}

// Publisher pushes freshly built reports to downstream consumers.
type Publisher interface {
	PublishReport(ctx context.Context, report Report) error
}

// Recorder receives service-level measurements.
type Recorder interface {
	FeedFetched(provider string, err error)
	Refreshed(report Report, err error)
}
