package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

var openMeteoHourly = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"precipitation",
	"wind_speed_10m",
	"weather_code",
}

// OpenMeteoSource collects an hourly weather forecast from Open-Meteo. It asks
// for wall-clock times in the target zone, so its keys carry no offset.
type OpenMeteoSource struct {
	name    string
	baseURL string
	client  *http.Client
	coords  Coordinates
	loc     *time.Location
}

func NewOpenMeteoSource(client *http.Client, coords Coordinates, loc *time.Location) *OpenMeteoSource {
	if loc == nil {
		loc = time.UTC
	}
	return &OpenMeteoSource{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		coords:  coords,
		loc:     loc,
	}
}

func (s *OpenMeteoSource) Name() string {
	return s.name
}

func (s *OpenMeteoSource) Host() string {
	return hostOf(s.baseURL)
}

func (s *OpenMeteoSource) Fetch(ctx context.Context, start, end time.Time) (collector.RawPayload, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", s.coords.Lat))
	values.Set("longitude", fmt.Sprintf("%f", s.coords.Lon))
	values.Set("hourly", strings.Join(openMeteoHourly, ","))
	values.Set("timezone", s.loc.String())
	values.Set("start_date", start.In(s.loc).Format(time.DateOnly))
	// end is exclusive; the API's end_date is inclusive.
	values.Set("end_date", end.Add(-time.Nanosecond).In(s.loc).Format(time.DateOnly))

	return getJSON(ctx, s.client, s.name, s.baseURL, values)
}

type openMeteoPayload struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		Precipitation []*float64 `json:"precipitation"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WeatherCode   []*int     `json:"weather_code"`
	} `json:"hourly"`
}

// Parse keeps Open-Meteo's naive local timestamps as keys.
func (s *OpenMeteoSource) Parse(raw collector.RawPayload, start, end time.Time) (map[string]any, error) {
	var payload openMeteoPayload
	if err := decodeJSON(s.name, raw, &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	data := make(map[string]any, len(h.Time))
	for i, key := range h.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", key, s.loc)
		if err != nil {
			return nil, collector.NewPermanentError(s.name, fmt.Errorf("hourly.time[%d]: %w", i, err))
		}
		if !inWindow(ts, start, end) {
			continue
		}

		var cond any
		if code := at(h.WeatherCode, i); code != nil {
			cond = string(mapOpenMeteoCondition(*code))
		}
		data[key] = map[string]any{
			"temperature":   deref(at(h.Temperature, i)),
			"humidity":      deref(at(h.Humidity, i)),
			"precipitation": deref(at(h.Precipitation, i)),
			"wind_speed":    kphToMS(at(h.WindSpeed, i)),
			"condition":     cond,
		}
	}
	return data, nil
}

func (s *OpenMeteoSource) Metadata(start, end time.Time) map[string]any {
	return map[string]any{
		"data_type": "weather",
		"source":    "Open-Meteo API",
		"units":     "°C, %, mm, m/s",
		"latitude":  s.coords.Lat,
		"longitude": s.coords.Lon,
	}
}

func mapOpenMeteoCondition(code int) Condition {
	// Mapping based on WMO weather codes (simplified).
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

// at returns s[i], or nil when the series is shorter than the time axis.
func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}

// deref turns a missing reading into an untyped nil.
func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func kphToMS(v *float64) any {
	if v == nil {
		return nil
	}
	return *v / 3.6
}
