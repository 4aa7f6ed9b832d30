package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
)

// RedisStore keeps each location's report history in a sorted set scored by
// GeneratedAt (unix milliseconds). Retention matches MemoryStore: count
// retention keeps the newest maxHistory reports, age retention drops reports
// older than maxAge but never the newest one.
type RedisStore struct {
	rdb        *redis.Client
	maxHistory int
	maxAge     time.Duration

	now func() time.Time
}

func NewRedisStore(rdb *redis.Client, maxHistory int, maxAge time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, maxHistory: maxHistory, maxAge: maxAge, now: time.Now}
}

func reportsKey(loc weather.Location) string { return "forecast:reports:" + loc.Key() }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

func (s *RedisStore) SaveReport(ctx context.Context, report weather.Report) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	key := reportsKey(report.Location)
	newest := score(report.GeneratedAt)
	if s.maxAge > 0 {
		top, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, 0).Result()
		if err != nil {
			return err
		}
		if len(top) == 1 && top[0].Score > newest {
			newest = top[0].Score
		}
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score(report.GeneratedAt), Member: b})
	if s.maxHistory > 0 {
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-s.maxHistory-1))
	}
	if s.maxAge > 0 {
		// Cap the cutoff at the newest score so the newest report always survives.
		cutoff := min(score(s.now().Add(-s.maxAge)), newest)
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatFloat(cutoff, 'f', 0, 64))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Latest(ctx context.Context, loc weather.Location) (weather.Report, error) {
	items, err := s.rdb.ZRevRange(ctx, reportsKey(loc), 0, 0).Result()
	if err != nil {
		return weather.Report{}, err
	}
	if len(items) == 0 {
		return weather.Report{}, ErrNotFound
	}

	var r weather.Report
	if err := json.Unmarshal([]byte(items[0]), &r); err != nil {
		return weather.Report{}, fmt.Errorf("decoding report: %w", err)
	}
	return r, nil
}

func (s *RedisStore) Range(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Report, error) {
	items, err := s.rdb.ZRangeByScore(ctx, reportsKey(loc), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	reports := make([]weather.Report, 0, len(items))
	for _, item := range items {
		var r weather.Report
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		reports = append(reports, r)
	}

	// Scores are truncated to milliseconds; filter on the exact timestamps.
	result := inRange(reports, from, to)
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
