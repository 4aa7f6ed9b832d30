package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoFeed is returned when no provider delivered a usable feed.
var ErrNoFeed = errors.New("no forecast feed available")

// Service orchestrates fetching feeds from providers, aggregating them into
// reports and persisting the result.
type Service struct {
	store     Store
	providers []FeedProvider
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithPublisher publishes every refreshed report.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder records fetch and refresh outcomes.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the clock used as the reference date of refreshes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service. Providers are listed in priority order.
func NewService(store Store, providers []FeedProvider, opts ...Option) *Service {
	s := &Service{
		store:     store,
		providers: providers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches feeds from all providers concurrently for the given location,
// aggregates the highest-priority successful feed and stores the report.
// When every provider fails the last good report is left untouched.
func (s *Service) Refresh(ctx context.Context, loc Location) (Report, error) {
	log.Printf("DEBUG: Refresh called for %s with %d providers", loc.Key(), len(s.providers))
	if len(s.providers) == 0 {
		log.Printf("ERROR: No providers available to fetch forecast for %s", loc.Key())
		return Report{}, fmt.Errorf("no forecast providers configured")
	}

	var (
		wg    sync.WaitGroup
		feeds = make([]*Feed, len(s.providers))
	)

	for i, p := range s.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			feed, err := p.FetchFeed(ctx, loc)
			if err == nil {
				err = ValidateSamples(feed.Samples)
			}
			s.recordFetch(p.Name(), err)
			if err != nil {
				// Log and continue; a lower-priority provider may still succeed.
				log.Printf("provider %s feed failed for %s: %v", p.Name(), loc.Key(), err)
				return
			}
			if feed.Provider == "" {
				feed.Provider = p.Name()
			}
			feeds[i] = &feed
		}()
	}

	wg.Wait()

	var chosen *Feed
	for _, f := range feeds {
		if f != nil {
			chosen = f
			break
		}
	}
	if chosen == nil {
		log.Printf("no successful provider feeds for %s; keeping last good report if any", loc.Key())
		s.recordRefresh(Report{}, ErrNoFeed)
		return Report{}, ErrNoFeed
	}

	report := s.build(*chosen, loc, s.now())

	if err := s.store.SaveReport(ctx, report); err != nil {
		s.recordRefresh(report, err)
		return Report{}, fmt.Errorf("saving report for %s: %w", loc.Key(), err)
	}
	s.recordRefresh(report, nil)

	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, report); err != nil {
			log.Printf("publish failed for %s: %v", loc.Key(), err)
		}
	}

	log.Printf("INFO: refreshed %s from %s (%d hourly, %d daily)", loc.Key(), report.Provider, len(report.Hourly), len(report.Daily))
	return report, nil
}

// Aggregate runs the engine over a caller-supplied feed without touching the store.
func (s *Service) Aggregate(loc Location, feed Feed, referenceDate time.Time) (Report, error) {
	if err := ValidateSamples(feed.Samples); err != nil {
		return Report{}, err
	}
	return s.build(feed, loc, referenceDate), nil
}

func (s *Service) build(feed Feed, loc Location, referenceDate time.Time) Report {
	report := Aggregator{Zone: feed.Zone}.Build(feed, referenceDate)
	report.ID = uuid.NewString()
	report.Location = loc
	report.GeneratedAt = s.now().UTC()
	return report
}

func (s *Service) recordFetch(provider string, err error) {
	if s.recorder != nil {
		s.recorder.FeedFetched(provider, err)
	}
}

func (s *Service) recordRefresh(report Report, err error) {
	if s.recorder != nil {
		s.recorder.Refreshed(report, err)
	}
}

// Latest delegates to the underlying store.
func (s *Service) Latest(ctx context.Context, loc Location) (Report, error) {
	return s.store.Latest(ctx, loc)
}

// History delegates to the underlying store.
func (s *Service) History(ctx context.Context, loc Location, from, to time.Time) ([]Report, error) {
	return s.store.Range(ctx, loc, from, to)
}
