package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
)

const openMeteoDays = 5

var errNoCoordinates = errors.New("openmeteo requires latitude and longitude")

// GeocodeFunc resolves a location to coordinates.
type GeocodeFunc func(loc weather.Location) (lat, lon float64, err error)

// GoogleGeocoder returns a GeocodeFunc backed by the Google Maps geocoding API.
// An empty key yields nil, meaning locations must carry coordinates.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	if apiKey == "" {
		return nil
	}
	geocoder.ApiKey = apiKey
	return func(loc weather.Location) (float64, float64, error) {
		l, err := geocoder.Geocoding(geocoder.Address{City: loc.City, Country: loc.Country})
		if err != nil {
			return 0, 0, fmt.Errorf("geocoding %s: %w", loc.Key(), err)
		}
		return l.Latitude, l.Longitude, nil
	}
}

// OpenMeteoProvider implements weather.FeedProvider for Open-Meteo.
// It needs no API key; hourly rows are reduced to three-hour slots.
type OpenMeteoProvider struct {
	name    string
	units   string
	baseURL string
	geocode GeocodeFunc
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, units string, geocode GeocodeFunc) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		units:   units,
		baseURL: "https://api.open-meteo.com/v1/forecast",
		geocode: geocode,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Timezone         string `json:"timezone"`
	Hourly           struct {
		Time                     []int64    `json:"time"`
		Temperature              []float64  `json:"temperature_2m"`
		ApparentTemperature      []float64  `json:"apparent_temperature"`
		RelativeHumidity         []int      `json:"relative_humidity_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		WeatherCode              []int      `json:"weather_code"`
		WindSpeed                []float64  `json:"wind_speed_10m"`
		SurfacePressure          []float64  `json:"surface_pressure"`
		IsDay                    []int      `json:"is_day"`
	} `json:"hourly"`
	Daily struct {
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) FetchFeed(ctx context.Context, loc weather.Location) (weather.Feed, error) {
	lat, lon, err := p.coordinates(loc)
	if err != nil {
		return weather.Feed{}, err
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("hourly", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation_probability,weather_code,wind_speed_10m,surface_pressure,is_day")
	values.Set("daily", "temperature_2m_max,temperature_2m_min")
	values.Set("timeformat", "unixtime")
	values.Set("timezone", "auto")
	values.Set("forecast_days", fmt.Sprint(openMeteoDays))
	values.Set("wind_speed_unit", "ms")
	if p.units == "imperial" {
		values.Set("temperature_unit", "fahrenheit")
		values.Set("wind_speed_unit", "mph")
	}

	var payload openMeteoPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, values), &payload); err != nil {
		return weather.Feed{}, fmt.Errorf("openmeteo forecast: %w", err)
	}

	zone := zoneFor(payload.Timezone, payload.UTCOffsetSeconds)
	samples, err := payload.samples(zone)
	if err != nil {
		return weather.Feed{}, err
	}
	if len(samples) == 0 {
		return weather.Feed{}, errEmptyFeed
	}

	feed := weather.Feed{
		Provider: p.name,
		Samples:  samples,
		Zone:     zone,
	}
	if len(payload.Daily.TemperatureMin) > 0 && len(payload.Daily.TemperatureMax) > 0 {
		feed.CurrentMin = payload.Daily.TemperatureMin[0]
		feed.CurrentMax = payload.Daily.TemperatureMax[0]
	} else {
		feed.CurrentMin, feed.CurrentMax = payload.firstDayRange(zone)
	}
	return feed, nil
}

// firstDayRange is the temperature range over every hourly row sharing the
// first row's local date. Used when the daily block is missing.
func (om openMeteoPayload) firstDayRange(zone *time.Location) (lo, hi float64) {
	h := om.Hourly
	first := time.Unix(h.Time[0], 0).In(zone).Format(time.DateOnly)
	lo, hi = h.Temperature[0], h.Temperature[0]
	for i, ts := range h.Time {
		if time.Unix(ts, 0).In(zone).Format(time.DateOnly) != first {
			continue
		}
		lo = min(lo, h.Temperature[i])
		hi = max(hi, h.Temperature[i])
	}
	return lo, hi
}

func (p *OpenMeteoProvider) coordinates(loc weather.Location) (float64, float64, error) {
	if loc.Lat != nil && loc.Lon != nil {
		return *loc.Lat, *loc.Lon, nil
	}
	if p.geocode == nil {
		return 0, 0, errNoCoordinates
	}
	return p.geocode(loc)
}

func (om openMeteoPayload) samples(zone *time.Location) ([]weather.RawSample, error) {
	h := om.Hourly
	n := len(h.Time)
	for _, l := range []int{
		len(h.Temperature), len(h.ApparentTemperature), len(h.RelativeHumidity),
		len(h.PrecipitationProbability), len(h.WeatherCode), len(h.WindSpeed),
		len(h.SurfacePressure), len(h.IsDay),
	} {
		if l != n {
			return nil, fmt.Errorf("openmeteo: hourly series lengths differ (%d vs %d)", l, n)
		}
	}

	samples := make([]weather.RawSample, 0, n/3+1)
	for i, ts := range h.Time {
		if !onSlot(ts, zone) {
			continue
		}
		cond := mapOpenMeteoCondition(h.WeatherCode[i])
		samples = append(samples, weather.RawSample{
			Timestamp:         ts,
			Temperature:       h.Temperature[i],
			FeelsLike:         h.ApparentTemperature[i],
			Humidity:          h.RelativeHumidity[i],
			Condition:         cond,
			Icon:              iconCode(cond, h.IsDay[i] == 1),
			PrecipProbability: percentToProbability(h.PrecipitationProbability[i]),
			WindSpeed:         h.WindSpeed[i],
			Pressure:          h.SurfacePressure[i],
		})
	}
	return samples, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// WMO weather interpretation codes.
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionClouds
	case code == 45 || code == 48:
		return weather.ConditionMist
	case code >= 51 && code <= 57:
		return weather.ConditionDrizzle
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionThunderstorm
	default:
		return weather.ConditionUnknown
	}
}

// iconCode renders an OpenWeatherMap style icon code ("10d", "01n") so that
// every provider shares the same day/night suffix convention.
func iconCode(cond weather.Condition, day bool) string {
	var code string
	switch cond {
	case weather.ConditionClear:
		code = "01"
	case weather.ConditionDrizzle:
		code = "09"
	case weather.ConditionRain:
		code = "10"
	case weather.ConditionThunderstorm:
		code = "11"
	case weather.ConditionSnow:
		code = "13"
	case weather.ConditionMist:
		code = "50"
	default:
		code = "03"
	}
	if day {
		return code + "d"
	}
	return code + "n"
}
