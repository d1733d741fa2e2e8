package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
	"github.com/i474232898/energy-data-hub/internal/common"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Coordinates locate the place weather is collected for.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errNoHTTPClient = errors.New("http client not configured")
	errMissingKey   = errors.New("api key is not configured")
	errEmpty        = errors.New("empty response")
)

// getJSON performs a GET and returns the body. Transport errors, 429 and 5xx
// are transient; other non-2xx answers are permanent.
func getJSON(ctx context.Context, client *http.Client, source, rawURL string, query url.Values) (collector.RawPayload, error) {
	if client == nil {
		return nil, collector.NewPermanentError(source, errNoHTTPClient)
	}

	u := rawURL
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", rawURL, query.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, collector.NewPermanentError(source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		// Report cancellation as-is so callers can tell it from a remote fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, collector.NewTransientError(source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, collector.NewTransientError(source, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, collector.NewTransientError(source, errRateLimited)
	case resp.StatusCode >= 500:
		return nil, collector.NewTransientError(source, fmt.Errorf("%w: %d", errServerError, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, collector.NewPermanentError(source, fmt.Errorf("%w: %d %s", errUnexpected, resp.StatusCode, snippet(body)))
	}
	return body, nil
}

// decodeJSON unmarshals a payload; a body that is not the expected JSON is a
// permanent failure.
func decodeJSON(source string, raw collector.RawPayload, v any) error {
	if len(raw) == 0 {
		return collector.NewPermanentError(source, errEmpty)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return collector.NewPermanentError(source, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// inWindow reports whether t lies in [start, end).
func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// hostOf returns the host part of a base URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// utcKey renders an instant as an RFC 3339 UTC key.
func utcKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// forecastDays covers [now, end) in whole days, clamped to [1, max].
func forecastDays(now, end time.Time, max int) int {
	days := int(end.Sub(now).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	if days > max {
		days = max
	}
	return days
}

func conditionFromText(text string) Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return ConditionSnow
	case common.HasAny(t, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAny(t, "mist", "fog", "haze"):
		return ConditionMist
	case common.HasAny(t, "cloud", "overcast"):
		return ConditionCloudy
	case common.HasAny(t, "sunny", "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}
