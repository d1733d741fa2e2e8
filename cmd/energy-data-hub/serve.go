package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/energy-data-hub/internal/api/http"
	"github.com/i474232898/energy-data-hub/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Collect on a schedule and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	h, err := loadHub()
	if err != nil {
		return err
	}
	defer h.log.Sync() //nolint:errcheck

	// Scheduler that periodically collects and stores datasets.
	if err := h.scheduler.Start(); err != nil {
		return err
	}
	defer h.scheduler.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "energy-data-hub",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterHealth(app, h.registry)
	httpapi.RegisterRoutes(app, h.registry, h.store)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	go func() {
		h.log.Infof("listening on :%s", h.cfg.Port)
		if err := app.Listen(":" + h.cfg.Port); err != nil {
			h.log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	h.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		h.log.Errorf("error during shutdown: %v", err)
	}
	return nil
}
