package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/weather-forecast-aggregation/internal/common"
	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
	"github.com/sony/gobreaker"
)

// weatherAPIDays is the forecast horizon of the WeatherAPI.com free plan.
const weatherAPIDays = 3

// WeatherAPIProvider implements weather.FeedProvider for WeatherAPI.com.
// Hourly rows are reduced to three-hour slots.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	units   string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey, units string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIHour struct {
	TimeEpoch    int64    `json:"time_epoch"`
	TempC        float64  `json:"temp_c"`
	TempF        float64  `json:"temp_f"`
	FeelsLikeC   float64  `json:"feelslike_c"`
	FeelsLikeF   float64  `json:"feelslike_f"`
	Humidity     int      `json:"humidity"`
	WindKph      float64  `json:"wind_kph"`
	WindMph      float64  `json:"wind_mph"`
	PressureMb   float64  `json:"pressure_mb"`
	ChanceOfRain *float64 `json:"chance_of_rain"`
	ChanceOfSnow *float64 `json:"chance_of_snow"`
	IsDay        int      `json:"is_day"`
	Condition    struct {
		Text string `json:"text"`
	} `json:"condition"`
}

type weatherAPIPayload struct {
	Location struct {
		TzID string `json:"tz_id"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Day struct {
				MaxTempC float64 `json:"maxtemp_c"`
				MinTempC float64 `json:"mintemp_c"`
				MaxTempF float64 `json:"maxtemp_f"`
				MinTempF float64 `json:"mintemp_f"`
			} `json:"day"`
			Hour []weatherAPIHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) FetchFeed(ctx context.Context, loc weather.Location) (weather.Feed, error) {
	if p.apiKey == "" {
		return weather.Feed{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("days", fmt.Sprint(weatherAPIDays))
	values.Set("aqi", "no")
	values.Set("alerts", "no")
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	if loc.Lat != nil && loc.Lon != nil {
		values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}

	var payload weatherAPIPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, values), &payload); err != nil {
		return weather.Feed{}, fmt.Errorf("weatherapi forecast: %w", err)
	}
	if len(payload.Forecast.ForecastDay) == 0 {
		return weather.Feed{}, errEmptyFeed
	}

	zone := zoneFor(payload.Location.TzID, 0)

	imperial := p.units == "imperial"
	var samples []weather.RawSample
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			if !onSlot(h.TimeEpoch, zone) {
				continue
			}
			samples = append(samples, p.toSample(h, imperial))
		}
	}
	if len(samples) == 0 {
		return weather.Feed{}, errEmptyFeed
	}

	today := payload.Forecast.ForecastDay[0].Day
	feed := weather.Feed{
		Provider:   p.name,
		Samples:    samples,
		CurrentMin: today.MinTempC,
		CurrentMax: today.MaxTempC,
		Zone:       zone,
	}
	if imperial {
		feed.CurrentMin, feed.CurrentMax = today.MinTempF, today.MaxTempF
	}
	return feed, nil
}

func (p *WeatherAPIProvider) toSample(h weatherAPIHour, imperial bool) weather.RawSample {
	cond := mapWeatherAPICondition(h.Condition.Text)
	s := weather.RawSample{
		Timestamp:         h.TimeEpoch,
		Temperature:       h.TempC,
		FeelsLike:         h.FeelsLikeC,
		Humidity:          h.Humidity,
		Condition:         cond,
		Icon:              iconCode(cond, h.IsDay == 1),
		PrecipProbability: percentToProbability(maxPercent(h.ChanceOfRain, h.ChanceOfSnow)),
		// Convert wind from kph to m/s (approx).
		WindSpeed: h.WindKph / 3.6,
		Pressure:  h.PressureMb,
	}
	if imperial {
		s.Temperature, s.FeelsLike, s.WindSpeed = h.TempF, h.FeelsLikeF, h.WindMph
	}
	return s
}

func maxPercent(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	m := math.Max(*a, *b)
	return &m
}

func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return weather.ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return weather.ConditionThunderstorm
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAny(t, "drizzle"):
		return weather.ConditionDrizzle
	case common.HasAny(t, "rain", "shower"):
		return weather.ConditionRain
	case common.HasAny(t, "mist", "fog"):
		return weather.ConditionMist
	case common.HasAny(t, "cloud", "overcast"):
		return weather.ConditionClouds
	case common.HasAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
