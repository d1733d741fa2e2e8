// Package sources holds the remote APIs the hub collects from. Each source
// only knows how to call its API and flatten the answer into timestamp keyed
// values; resilience and normalization live in the collector package.
package sources

import (
	"net/http"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

// Settings are the inputs shared by the built-in sources.
type Settings struct {
	Client            *http.Client
	Coordinates       Coordinates
	Location          *time.Location
	OpenWeatherAPIKey string
	WeatherAPIKey     string
}

// All returns every built-in source, ordered by name.
func All(s Settings) []collector.Source {
	return []collector.Source{
		NewEnergyZeroSource(s.Client, true),
		NewOpenMeteoSource(s.Client, s.Coordinates, s.Location),
		NewOpenWeatherSource(s.Client, s.OpenWeatherAPIKey, s.Coordinates),
		NewWeatherAPISource(s.Client, s.WeatherAPIKey, s.Coordinates),
	}
}
