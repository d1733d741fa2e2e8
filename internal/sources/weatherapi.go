package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

// weatherAPIMaxDays is the longest forecast WeatherAPI.com returns.
const weatherAPIMaxDays = 14

// WeatherAPISource collects an hourly forecast from WeatherAPI.com.
type WeatherAPISource struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	coords  Coordinates
	now     func() time.Time
}

func NewWeatherAPISource(client *http.Client, apiKey string, coords Coordinates) *WeatherAPISource {
	return &WeatherAPISource{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		client:  client,
		coords:  coords,
		now:     time.Now,
	}
}

func (s *WeatherAPISource) Name() string {
	return s.name
}

func (s *WeatherAPISource) Host() string {
	return hostOf(s.baseURL)
}

func (s *WeatherAPISource) Fetch(ctx context.Context, start, end time.Time) (collector.RawPayload, error) {
	if s.apiKey == "" {
		return nil, collector.NewPermanentError(s.name, errMissingKey)
	}

	values := url.Values{}
	values.Set("key", s.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", s.coords.Lat, s.coords.Lon))
	values.Set("days", strconv.Itoa(forecastDays(s.now(), end, weatherAPIMaxDays)))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	return getJSON(ctx, s.client, s.name, s.baseURL, values)
}

type weatherAPIPayload struct {
	Forecast struct {
		ForecastDay []struct {
			Hour []struct {
				TimeEpoch  int64    `json:"time_epoch"`
				TempC      *float64 `json:"temp_c"`
				Humidity   *float64 `json:"humidity"`
				WindKph    *float64 `json:"wind_kph"`
				PressureMb *float64 `json:"pressure_mb"`
				PrecipMm   *float64 `json:"precip_mm"`
				Condition  struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// Parse keys every hour by its epoch rendered in UTC.
func (s *WeatherAPISource) Parse(raw collector.RawPayload, start, end time.Time) (map[string]any, error) {
	var payload weatherAPIPayload
	if err := decodeJSON(s.name, raw, &payload); err != nil {
		return nil, err
	}

	data := make(map[string]any)
	for _, day := range payload.Forecast.ForecastDay {
		for _, hour := range day.Hour {
			ts := time.Unix(hour.TimeEpoch, 0)
			if !inWindow(ts, start, end) {
				continue
			}
			data[utcKey(ts)] = map[string]any{
				"temperature":   deref(hour.TempC),
				"humidity":      deref(hour.Humidity),
				"pressure":      deref(hour.PressureMb),
				"precipitation": deref(hour.PrecipMm),
				"wind_speed":    kphToMS(hour.WindKph),
				"condition":     string(conditionFromText(hour.Condition.Text)),
			}
		}
	}
	return data, nil
}

func (s *WeatherAPISource) Metadata(start, end time.Time) map[string]any {
	return map[string]any{
		"data_type":  "weather",
		"source":     "WeatherAPI.com",
		"units":      "°C, %, hPa, mm, m/s",
		"resolution": "hourly",
		"latitude":   s.coords.Lat,
		"longitude":  s.coords.Lon,
	}
}
