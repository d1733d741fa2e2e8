package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/energy-data-hub/internal/breaker"
	"github.com/i474232898/energy-data-hub/internal/collector"
	"github.com/i474232898/energy-data-hub/internal/retry"
	"github.com/i474232898/energy-data-hub/internal/store"
)

var validate = validator.New()

// DatasetReader is the read side of the dataset store.
type DatasetReader interface {
	GetLatest(source string) (store.StoredDataset, error)
	GetRange(source string, from, to time.Time) ([]store.StoredDataset, error)
}

// sourceStatus is the health view of one source.
type sourceStatus struct {
	Name          string           `json:"name"`
	Breaker       breaker.Snapshot `json:"breaker"`
	SuccessRate   float64          `json:"success_rate"`
	Collections   int              `json:"collections"`
	RetryPolicy   retry.Policy     `json:"retry_policy"`
	BreakerPolicy breaker.Policy   `json:"breaker_policy"`
}

func statusOf(o *collector.Orchestrator) sourceStatus {
	return sourceStatus{
		Name:          o.Name(),
		Breaker:       o.Breaker().Snapshot(),
		SuccessRate:   o.SuccessRate(),
		Collections:   o.HistoryLen(),
		RetryPolicy:   o.RetryPolicy(),
		BreakerPolicy: o.Breaker().Policy(),
	}
}

// RegisterHealth adds /health, which reports degraded while any breaker is open.
func RegisterHealth(app *fiber.App, registry *collector.Registry) {
	app.Get("/health", func(c *fiber.Ctx) error {
		open := 0
		for _, o := range registry.All() {
			if o.Breaker().State() == breaker.StateOpen {
				open++
			}
		}
		status := "ok"
		if open > 0 {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":        status,
			"service":       "energy-data-hub",
			"sources":       registry.Len(),
			"open_breakers": open,
		})
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, registry *collector.Registry, datasets DatasetReader) {
	v1 := app.Group("/api/v1")

	v1.Get("/sources", func(c *fiber.Ctx) error {
		all := registry.All()
		out := make([]sourceStatus, 0, len(all))
		for _, o := range all {
			out = append(out, statusOf(o))
		}
		return c.JSON(out)
	})

	v1.Get("/sources/:name/metrics", func(c *fiber.Ctx) error {
		o, err := lookup(registry, c.Params("name"))
		if err != nil {
			return err
		}

		var req metricsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"source":       o.Name(),
			"success_rate": o.SuccessRate(),
			"metrics":      o.Metrics(req.Limit),
		})
	})

	v1.Get("/datasets/:name/latest", func(c *fiber.Ctx) error {
		o, err := lookup(registry, c.Params("name"))
		if err != nil {
			return err
		}

		latest, err := datasets.GetLatest(o.Name())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no dataset collected yet for requested source")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch dataset")
		}

		return c.JSON(latest)
	})

	v1.Get("/datasets/:name/history", func(c *fiber.Ctx) error {
		o, err := lookup(registry, c.Params("name"))
		if err != nil {
			return err
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		items, err := datasets.GetRange(o.Name(), req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no datasets for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch dataset history")
		}

		return c.JSON(fiber.Map{
			"source":   o.Name(),
			"from":     req.From,
			"to":       req.To,
			"datasets": items,
		})
	})
}

func lookup(registry *collector.Registry, name string) (*collector.Orchestrator, error) {
	o, err := registry.Get(name)
	if err != nil {
		if errors.Is(err, collector.ErrUnknownSource) {
			return nil, fiber.NewError(fiber.StatusNotFound, "unknown source")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return o, nil
}

// metricsQuery holds query parameters for the metrics endpoint.
type metricsQuery struct {
	Limit int `validate:"gte=1,lte=1000"`
}

func (m *metricsQuery) bind(c *fiber.Ctx) error {
	m.Limit = 10
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("limit must be an integer")
		}
		m.Limit = n
	}
	return nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
