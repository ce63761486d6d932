package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/invsync/internal/app"
	"github.com/allisson/invsync/internal/config"
)

// shutdownTimeout bounds the graceful stop of the HTTP servers.
const shutdownTimeout = 15 * time.Second

// RunServer starts the sync agent: the local API, the metrics server, the connectivity
// detector and the replay engine. Queued operations left by a previous run are recovered
// before anything is served. Blocks until SIGINT/SIGTERM or a fatal error.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	engine, err := container.Engine()
	if err != nil {
		return fmt.Errorf("failed to initialize replay engine: %w", err)
	}

	queue, err := container.QueueUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize operation queue: %w", err)
	}

	detector := container.Detector()
	bus := container.Bus()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Event streams never finish on their own; closing the bus ends them.
	server.OnShutdown(bus.Close)

	g, gctx := errgroup.WithContext(ctx)

	engine.Start(gctx)
	detector.OnChange(engine.HandleConnectivity)

	replayable, err := queue.Recover(gctx)
	if err != nil {
		return fmt.Errorf("failed to recover operation queue: %w", err)
	}
	logger.Info("operation queue recovered", slog.Int("replayable", replayable))

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if cfg.MetricsEnabled {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return detector.Run(gctx)
	})

	g.Go(func() error {
		return engine.Run(gctx)
	})

	// Replays whatever was recovered as soon as the detector reports online.
	detector.Announce()

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if cfg.MetricsEnabled {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
