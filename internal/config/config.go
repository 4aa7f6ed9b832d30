package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-forecast-aggregation/internal/common"
	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// Units is passed through to providers ("metric" or "imperial").
	Units string

	// FetchInterval controls how often we refresh each location.
	FetchInterval time.Duration
	HTTPTimeout   time.Duration

	// Locations to track.
	Locations []weather.Location

	// Report store backend and retention.
	StoreBackend    string        // "memory" or "redis"
	StoreMaxHistory int           // max number of reports per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of reports (0 = unlimited)

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MQTT publishing is disabled when MQTTBrokerURL is empty.
	MQTTBrokerURL   string
	MQTTTopicPrefix string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Units = getenvDefault("FORECAST_UNITS", "metric")
	if cfg.Units != "metric" && cfg.Units != "imperial" {
		return nil, fmt.Errorf("invalid FORECAST_UNITS %q: must be metric or imperial", cfg.Units)
	}

	var err error
	// Refresh interval: default 15 minutes.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.StoreBackend = getenvDefault("STORE_BACKEND", "memory")
	if cfg.StoreBackend != "memory" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be memory or redis", cfg.StoreBackend)
	}
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)

	cfg.MQTTBrokerURL = os.Getenv("MQTT_BROKER_URL")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "forecast")

	cfg.Port = getenvDefault("PORT", "8080")

	locs, err := loadPrimaryLocations()
	if err != nil {
		return nil, err
	}
	if path := os.Getenv("LOCATIONS_FILE"); path != "" {
		fileLocs, err := LoadLocationsFile(path)
		if err != nil {
			return nil, err
		}
		locs = mergeLocations(locs, fileLocs)
	}
	cfg.Locations = locs

	return cfg, nil
}

func loadPrimaryLocations() ([]weather.Location, error) {
	cities := common.SplitList(os.Getenv("WEATHER_LOCATION_CITY"))
	countries := common.SplitList(os.Getenv("WEATHER_LOCATION_COUNTRY"))
	if len(cities) != len(countries) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}
	var locs []weather.Location
	for i := range cities {
		locs = append(locs, weather.Location{
			City:    cities[i],
			Country: countries[i],
		})
	}

	return locs, nil
}

// locationsFile is the layout of LOCATIONS_FILE.
type locationsFile struct {
	Locations []weather.Location `yaml:"locations"`
}

// LoadLocationsFile reads a YAML list of locations:
//
//	locations:
//	  - city: Paris
//	    country: FR
//	  - city: Reykjavik
//	    country: IS
//	    lat: 64.15
//	    lon: -21.94
func LoadLocationsFile(path string) ([]weather.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locations file: %w", err)
	}

	var f locationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing locations file %s: %w", path, err)
	}
	for i, l := range f.Locations {
		if strings.TrimSpace(l.City) == "" || strings.TrimSpace(l.Country) == "" {
			return nil, fmt.Errorf("locations file %s: entry %d needs city and country", path, i)
		}
		if (l.Lat == nil) != (l.Lon == nil) {
			return nil, fmt.Errorf("locations file %s: entry %d needs both lat and lon", path, i)
		}
	}
	return f.Locations, nil
}

// mergeLocations appends extra to base, skipping keys already present.
func mergeLocations(base, extra []weather.Location) []weather.Location {
	seen := make(map[string]bool, len(base))
	for _, l := range base {
		seen[l.Key()] = true
	}
	for _, l := range extra {
		if !seen[l.Key()] {
			seen[l.Key()] = true
			base = append(base, l)
		}
	}
	return base
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
