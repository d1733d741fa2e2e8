package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

// EnergyZeroSource collects hourly Dutch retail electricity prices.
type EnergyZeroSource struct {
	name    string
	baseURL string
	client  *http.Client
	inclVAT bool
}

func NewEnergyZeroSource(client *http.Client, inclVAT bool) *EnergyZeroSource {
	return &EnergyZeroSource{
		name:    "energyzero",
		baseURL: "https://api.energyzero.nl/v1/energyprices",
		client:  client,
		inclVAT: inclVAT,
	}
}

func (s *EnergyZeroSource) Name() string {
	return s.name
}

func (s *EnergyZeroSource) Host() string {
	return hostOf(s.baseURL)
}

func (s *EnergyZeroSource) Fetch(ctx context.Context, start, end time.Time) (collector.RawPayload, error) {
	values := url.Values{}
	values.Set("fromDate", start.UTC().Format("2006-01-02T15:04:05.000Z"))
	values.Set("tillDate", end.UTC().Format("2006-01-02T15:04:05.000Z"))
	values.Set("interval", "4")  // hourly
	values.Set("usageType", "1") // electricity
	values.Set("inclBtw", strconv.FormatBool(s.inclVAT))

	return getJSON(ctx, s.client, s.name, s.baseURL, values)
}

type energyZeroPayload struct {
	Prices []struct {
		Price       *float64 `json:"price"`
		ReadingDate string   `json:"readingDate"`
	} `json:"Prices"`
}

// Parse keys every price by its UTC reading date.
func (s *EnergyZeroSource) Parse(raw collector.RawPayload, start, end time.Time) (map[string]any, error) {
	var payload energyZeroPayload
	if err := decodeJSON(s.name, raw, &payload); err != nil {
		return nil, err
	}
	if len(payload.Prices) == 0 {
		return nil, collector.NewPermanentError(s.name, errEmpty)
	}

	data := make(map[string]any, len(payload.Prices))
	for _, p := range payload.Prices {
		ts, err := time.Parse(time.RFC3339, p.ReadingDate)
		if err != nil {
			return nil, collector.NewPermanentError(s.name, err)
		}
		if !inWindow(ts, start, end) {
			continue
		}
		if p.Price == nil {
			data[utcKey(ts)] = nil
			continue
		}
		data[utcKey(ts)] = *p.Price
	}
	return data, nil
}

func (s *EnergyZeroSource) Metadata(start, end time.Time) map[string]any {
	units := "EUR/kWh (excl. VAT)"
	if s.inclVAT {
		units = "EUR/kWh (incl. VAT)"
	}
	return map[string]any{
		"data_type":    "energy_price",
		"source":       "EnergyZero API",
		"units":        units,
		"country_code": "NL",
		"market":       "retail",
		"currency":     "EUR",
		"resolution":   "hourly",
		"vat_included": s.inclVAT,
	}
}
