package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

// OpenWeatherSource collects the 5 day / 3 hour forecast from OpenWeatherMap.
type OpenWeatherSource struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	coords  Coordinates
}

func NewOpenWeatherSource(client *http.Client, apiKey string, coords Coordinates) *OpenWeatherSource {
	return &OpenWeatherSource{
		name:    "openweather",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/forecast",
		client:  client,
		coords:  coords,
	}
}

func (s *OpenWeatherSource) Name() string {
	return s.name
}

func (s *OpenWeatherSource) Host() string {
	return hostOf(s.baseURL)
}

func (s *OpenWeatherSource) Fetch(ctx context.Context, start, end time.Time) (collector.RawPayload, error) {
	if s.apiKey == "" {
		return nil, collector.NewPermanentError(s.name, errMissingKey)
	}

	values := url.Values{}
	values.Set("appid", s.apiKey)
	values.Set("units", "metric")
	values.Set("lat", fmt.Sprintf("%f", s.coords.Lat))
	values.Set("lon", fmt.Sprintf("%f", s.coords.Lon))

	return getJSON(ctx, s.client, s.name, s.baseURL, values)
}

type openWeatherPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
			Pressure *float64 `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"list"`
}

// Parse keys every forecast step by its unix time rendered in UTC.
func (s *OpenWeatherSource) Parse(raw collector.RawPayload, start, end time.Time) (map[string]any, error) {
	var payload openWeatherPayload
	if err := decodeJSON(s.name, raw, &payload); err != nil {
		return nil, err
	}

	data := make(map[string]any, len(payload.List))
	for _, item := range payload.List {
		ts := time.Unix(item.Dt, 0)
		if !inWindow(ts, start, end) {
			continue
		}

		main := ""
		if len(item.Weather) > 0 {
			main = item.Weather[0].Main
		}
		data[utcKey(ts)] = map[string]any{
			"temperature":   deref(item.Main.Temp),
			"humidity":      deref(item.Main.Humidity),
			"pressure":      deref(item.Main.Pressure),
			"wind_speed":    deref(item.Wind.Speed),
			"precipitation": item.Rain.ThreeH,
			"condition":     string(mapOpenWeatherCondition(main)),
		}
	}
	return data, nil
}

func (s *OpenWeatherSource) Metadata(start, end time.Time) map[string]any {
	return map[string]any{
		"data_type":  "weather",
		"source":     "OpenWeatherMap API",
		"units":      "°C, %, hPa, m/s, mm/3h",
		"resolution": "3-hourly",
		"latitude":   s.coords.Lat,
		"longitude":  s.coords.Lon,
	}
}

func mapOpenWeatherCondition(main string) Condition {
	switch main {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionStorm
	case "Mist", "Fog", "Haze":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}
