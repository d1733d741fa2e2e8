package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/energy-data-hub/internal/breaker"
	"github.com/i474232898/energy-data-hub/internal/collector"
	"github.com/i474232898/energy-data-hub/internal/retry"
	"github.com/i474232898/energy-data-hub/internal/store"
)

var window = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, fail bool) (*fiber.App, *collector.Registry, *store.MemoryStore) {
	t.Helper()

	src := collector.SourceFuncs{
		SourceName: "energyzero",
		FetchFunc: func(ctx context.Context, start, end time.Time) (collector.RawPayload, error) {
			if fail {
				return nil, errors.New("503")
			}
			return collector.RawPayload("ok"), nil
		},
		ParseFunc: func(raw collector.RawPayload, start, end time.Time) (map[string]any, error) {
			return map[string]any{
				"2025-07-15T10:00:00Z": 0.21,
				"2025-07-15T11:00:00Z": 0.19,
			}, nil
		},
	}
	o, err := collector.New(src, collector.Options{
		Retry:   retry.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2},
		Breaker: &breaker.Policy{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour, Enabled: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registry := collector.NewRegistry()
	if err := registry.Register(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	memStore := store.NewMemoryStore(10, 0)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterHealth(app, registry)
	RegisterRoutes(app, registry, memStore)
	return app, registry, memStore
}

func get(t *testing.T, app *fiber.App, target string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s: expected status %d, got %d", target, wantStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return out
}

func TestHealthReportsOpenBreakers(t *testing.T) {
	app, registry, _ := newTestApp(t, true)

	body := get(t, app, "/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("expected ok, got %v", body["status"])
	}

	o, _ := registry.Get("energyzero")
	if ds := o.Collect(context.Background(), window, window.Add(time.Hour)); ds != nil {
		t.Fatal("expected failed collection")
	}

	body = get(t, app, "/health", http.StatusOK)
	if body["status"] != "degraded" || body["open_breakers"] != float64(1) {
		t.Fatalf("expected degraded with one open breaker, got %v", body)
	}
}

func TestSourcesListsBreakerState(t *testing.T) {
	app, _, _ := newTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0]["name"] != "energyzero" {
		t.Fatalf("unexpected sources: %v", out)
	}
	br := out[0]["breaker"].(map[string]any)
	if br["state"] != "CLOSED" {
		t.Fatalf("expected CLOSED, got %v", br["state"])
	}
}

// TestMetricsLimitValidation verifies that the metrics endpoint enforces the
// 1-1000 range for the `limit` query parameter.
func TestMetricsLimitValidation(t *testing.T) {
	app, registry, _ := newTestApp(t, false)

	o, _ := registry.Get("energyzero")
	for i := 0; i < 3; i++ {
		o.Collect(context.Background(), window, window.Add(time.Hour))
	}

	get(t, app, "/api/v1/sources/energyzero/metrics?limit=0", http.StatusBadRequest)
	get(t, app, "/api/v1/sources/energyzero/metrics?limit=1001", http.StatusBadRequest)
	get(t, app, "/api/v1/sources/energyzero/metrics?limit=abc", http.StatusBadRequest)
	get(t, app, "/api/v1/sources/unknown/metrics", http.StatusNotFound)

	body := get(t, app, "/api/v1/sources/energyzero/metrics?limit=2", http.StatusOK)
	if got := len(body["metrics"].([]any)); got != 2 {
		t.Fatalf("expected 2 metrics, got %d", got)
	}
}

func TestDatasetEndpoints(t *testing.T) {
	app, registry, memStore := newTestApp(t, false)

	get(t, app, "/api/v1/datasets/energyzero/latest", http.StatusNotFound)
	get(t, app, "/api/v1/datasets/unknown/latest", http.StatusNotFound)

	o, _ := registry.Get("energyzero")
	ds := o.Collect(context.Background(), window, window.Add(24*time.Hour))
	if ds == nil {
		t.Fatal("expected dataset")
	}
	collectedAt := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	memStore.SaveDataset("energyzero", collectedAt, ds)

	body := get(t, app, "/api/v1/datasets/energyzero/latest", http.StatusOK)
	data := body["dataset"].(map[string]any)["data"].(map[string]any)
	if _, ok := data["2025-07-15T12:00:00+02:00"]; !ok {
		t.Fatalf("expected normalized key in %v", data)
	}

	get(t, app, "/api/v1/datasets/energyzero/history", http.StatusBadRequest)
	get(t, app, "/api/v1/datasets/energyzero/history?from=2025-07-16T00:00:00Z&to=2025-07-15T00:00:00Z", http.StatusBadRequest)
	get(t, app, "/api/v1/datasets/energyzero/history?from=2025-07-16T00:00:00Z&to=2025-07-17T00:00:00Z", http.StatusNotFound)

	body = get(t, app, "/api/v1/datasets/energyzero/history?from=2025-07-15T00:00:00Z&to=1752624000", http.StatusOK)
	if got := len(body["datasets"].([]any)); got != 1 {
		t.Fatalf("expected 1 dataset, got %d", got)
	}
}
