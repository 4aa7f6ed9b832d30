package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
	"github.com/sony/gobreaker"
)

// OpenWeatherProvider implements weather.FeedProvider for the OpenWeatherMap
// 5 day / 3 hour forecast.
type OpenWeatherProvider struct {
	name        string
	apiKey      string
	units       string
	forecastURL string
	currentURL  string
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, units string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:        "openweathermap",
		apiKey:      apiKey,
		units:       units,
		forecastURL: "https://api.openweathermap.org/data/2.5/forecast",
		currentURL:  "https://api.openweathermap.org/data/2.5/weather",
		httpCfg:     defaultHTTPConfig(client),
		circuit:     newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmForecastPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
			Pressure  float64 `json:"pressure"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
			Icon string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop *float64 `json:"pop"`
	} `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

type owmCurrentPayload struct {
	Main struct {
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
}

func (p *OpenWeatherProvider) FetchFeed(ctx context.Context, loc weather.Location) (weather.Feed, error) {
	if p.apiKey == "" {
		return weather.Feed{}, fmt.Errorf("openweather api key is not configured")
	}

	values := p.query(loc)

	var forecast owmForecastPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.forecastURL, values), &forecast); err != nil {
		return weather.Feed{}, fmt.Errorf("openweather forecast: %w", err)
	}
	if len(forecast.List) == 0 {
		return weather.Feed{}, errEmptyFeed
	}

	var current owmCurrentPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.currentURL, values), &current); err != nil {
		return weather.Feed{}, fmt.Errorf("openweather current: %w", err)
	}

	samples := make([]weather.RawSample, 0, len(forecast.List))
	for _, item := range forecast.List {
		cond, icon := weather.ConditionUnknown, ""
		if len(item.Weather) > 0 {
			cond, icon = weather.Condition(item.Weather[0].Main), item.Weather[0].Icon
		}
		samples = append(samples, weather.RawSample{
			Timestamp:         item.Dt,
			Temperature:       item.Main.Temp,
			FeelsLike:         item.Main.FeelsLike,
			Humidity:          item.Main.Humidity,
			Condition:         cond,
			Icon:              icon,
			PrecipProbability: item.Pop,
			WindSpeed:         item.Wind.Speed,
			Pressure:          item.Main.Pressure,
		})
	}

	return weather.Feed{
		Provider:   p.name,
		Samples:    samples,
		CurrentMin: current.Main.TempMin,
		CurrentMax: current.Main.TempMax,
		Zone:       time.FixedZone(forecast.City.Name, forecast.City.Timezone),
	}, nil
}

func (p *OpenWeatherProvider) query(loc weather.Location) url.Values {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	if p.units != "" {
		values.Set("units", p.units)
	}

	if loc.Lat != nil && loc.Lon != nil {
		values.Set("lat", fmt.Sprintf("%f", *loc.Lat))
		values.Set("lon", fmt.Sprintf("%f", *loc.Lon))
		return values
	}

	q := loc.City
	if loc.Country != "" {
		q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
	}
	values.Set("q", q)
	return values
}
