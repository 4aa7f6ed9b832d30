package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/i474232898/weather-forecast-aggregation/internal/api/http"
	"github.com/i474232898/weather-forecast-aggregation/internal/config"
	"github.com/i474232898/weather-forecast-aggregation/internal/metrics"
	"github.com/i474232898/weather-forecast-aggregation/internal/publish"
	"github.com/i474232898/weather-forecast-aggregation/internal/scheduler"
	"github.com/i474232898/weather-forecast-aggregation/internal/store"
	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
	"github.com/i474232898/weather-forecast-aggregation/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	reportStore, closeStore := newStore(cfg)
	defer closeStore()

	// Providers in priority order, each with backoff + circuit breaker.
	var provs []weather.FeedProvider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.Units))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.Units))
	}
	// Open-Meteo needs no key; locations without coordinates are geocoded when a key is set.
	provs = append(provs, providers.NewOpenMeteoProvider(httpClient, cfg.Units, providers.GoogleGeocoder(cfg.GeocoderAPIKey)))

	m := metrics.New()
	opts := []weather.Option{weather.WithRecorder(m)}

	if cfg.MQTTBrokerURL != "" {
		mc, err := publish.Connect(cfg.MQTTBrokerURL, "forecast-aggregation-"+uuid.NewString())
		if err != nil {
			log.Fatalf("failed to connect to mqtt broker: %v", err)
		}
		defer mc.Disconnect(250)
		opts = append(opts, weather.WithPublisher(publish.NewMQTTPublisher(mc, cfg.MQTTTopicPrefix)))
	}

	// Core service orchestrating providers and store.
	service := weather.NewService(reportStore, provs, opts...)

	// Scheduler that periodically refreshes forecasts.
	sched := scheduler.New(cfg.Locations, cfg.FetchInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-forecast-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "weather-forecast-aggregation",
			"providers": len(provs),
			"locations": len(cfg.Locations),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// newStore builds the configured report store and its cleanup func.
func newStore(cfg *config.AppConfig) (weather.Store, func()) {
	if cfg.StoreBackend != "redis" {
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to reach redis at %s: %v", cfg.RedisAddr, err)
	}
	log.Printf("INFO: using redis report store at %s", cfg.RedisAddr)

	return store.NewRedisStore(rdb, cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}
}
