package app

import (
	"context"
	"fmt"

	"github.com/allisson/invsync/internal/cache"
	"github.com/allisson/invsync/internal/connectivity"
	"github.com/allisson/invsync/internal/database"
	"github.com/allisson/invsync/internal/metrics"
	"github.com/allisson/invsync/internal/mutation"
	"github.com/allisson/invsync/internal/notify"
	"github.com/allisson/invsync/internal/overlay"
	queueHTTP "github.com/allisson/invsync/internal/queue/http"
	queueRepository "github.com/allisson/invsync/internal/queue/repository"
	queueUseCase "github.com/allisson/invsync/internal/queue/usecase"
	"github.com/allisson/invsync/internal/replay"
	"github.com/allisson/invsync/internal/transport"
)

// eventBuffer is the per-subscriber buffer of the notification bus.
const eventBuffer = 64

// OperationRepository returns the operation record store based on database driver.
func (c *Container) OperationRepository() (queueUseCase.OperationRepository, error) {
	var err error
	c.operationRepositoryInit.Do(func() {
		c.operationRepository, err = c.initOperationRepository()
		if err != nil {
			c.initErrors["operationRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["operationRepository"]; exists {
		return nil, storedErr
	}
	return c.operationRepository, nil
}

// Transport returns the inventory API client.
func (c *Container) Transport() *transport.HTTPTransport {
	c.transportInit.Do(func() {
		c.transport = transport.NewHTTPTransport(c.config.APIBaseURL, c.config.APIAuthToken, c.config.APITimeout)
	})
	return c.transport
}

// Cache returns the read-through view cache.
func (c *Container) Cache() *cache.MemoryCache {
	c.cacheInit.Do(func() {
		c.cache = cache.NewMemoryCache(c.Transport(), c.Logger())
	})
	return c.cache
}

// Overlay returns the optimistic cache overlay.
func (c *Container) Overlay() *overlay.Overlay {
	c.overlayInit.Do(func() {
		c.overlay = overlay.New(c.Cache(), overlay.NewRegistry(), c.Logger())
	})
	return c.overlay
}

// Detector returns the connectivity detector.
func (c *Container) Detector() *connectivity.Detector {
	c.detectorInit.Do(func() {
		prober := connectivity.NewHTTPProber(c.config.ConnectivityProbeURL, c.config.APITimeout)
		c.detector = connectivity.NewDetector(prober, c.config.ConnectivityProbeInterval, c.Logger())
	})
	return c.detector
}

// Bus returns the notification bus behind user-facing sync signals.
func (c *Container) Bus() *notify.Bus {
	c.busInit.Do(func() {
		c.bus = notify.NewBus(eventBuffer, c.Logger())
	})
	return c.bus
}

// QueueUseCase returns the sync queue manager.
func (c *Container) QueueUseCase() (queueUseCase.QueueUseCase, error) {
	var err error
	c.queueUseCaseInit.Do(func() {
		c.queueUseCase, err = c.initQueueUseCase()
		if err != nil {
			c.initErrors["queueUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["queueUseCase"]; exists {
		return nil, storedErr
	}
	return c.queueUseCase, nil
}

// Engine returns the replay engine.
func (c *Container) Engine() (*replay.Engine, error) {
	var err error
	c.engineInit.Do(func() {
		c.engine, err = c.initEngine()
		if err != nil {
			c.initErrors["engine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["engine"]; exists {
		return nil, storedErr
	}
	return c.engine, nil
}

// Facade returns the mutation facade every write goes through.
func (c *Container) Facade() (*mutation.Facade, error) {
	var err error
	c.facadeInit.Do(func() {
		c.facade, err = c.initFacade()
		if err != nil {
			c.initErrors["facade"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["facade"]; exists {
		return nil, storedErr
	}
	return c.facade, nil
}

// SyncHandler returns the HTTP handler for the sync API.
func (c *Container) SyncHandler() (*queueHTTP.SyncHandler, error) {
	var err error
	c.syncHandlerInit.Do(func() {
		c.syncHandler, err = c.initSyncHandler()
		if err != nil {
			c.initErrors["syncHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["syncHandler"]; exists {
		return nil, storedErr
	}
	return c.syncHandler, nil
}

// initOperationRepository creates the operation repository for the configured driver.
func (c *Container) initOperationRepository() (queueUseCase.OperationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for operation repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverSQLite:
		return queueRepository.NewSQLiteOperationRepository(db), nil
	case database.DriverPostgres:
		return queueRepository.NewPostgreSQLOperationRepository(db), nil
	case database.DriverMySQL:
		return queueRepository.NewMySQLOperationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initQueueUseCase creates the queue manager, decorated with metrics when enabled.
func (c *Container) initQueueUseCase() (queueUseCase.QueueUseCase, error) {
	repo, err := c.OperationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get operation repository for queue use case: %w", err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for queue use case: %w", err)
	}

	useCase := queueUseCase.NewQueueUseCase(repo, txManager, c.Overlay(), c.config.ReplayMaxAttempts, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for queue use case: %w", err)
		}
		useCase = queueUseCase.NewQueueUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}

// initEngine creates the replay engine.
func (c *Container) initEngine() (*replay.Engine, error) {
	queue, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for replay engine: %w", err)
	}

	replayMetrics := metrics.NewNoOpReplayMetrics()
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for replay engine: %w", err)
	}
	if provider != nil {
		depth := func(ctx context.Context) (int, int, error) {
			pending, err := queue.CountPending(ctx)
			if err != nil {
				return 0, 0, err
			}
			deadLetters, err := queue.ListDeadLettered(ctx)
			if err != nil {
				return 0, 0, err
			}
			return pending, len(deadLetters), nil
		}
		replayMetrics, err = metrics.NewReplayMetrics(provider.MeterProvider(), c.config.MetricsNamespace, depth)
		if err != nil {
			return nil, fmt.Errorf("failed to create replay metrics: %w", err)
		}
	}

	return replay.NewEngine(
		queue,
		c.Overlay(),
		c.Transport(),
		c.Detector(),
		c.Bus(),
		replayMetrics,
		replay.Config{
			InitialBackoff: c.config.ReplayInitialBackoff,
			MaxBackoff:     c.config.ReplayMaxBackoff,
			RateLimit:      c.config.ReplayRateLimitPerSec,
			Burst:          c.config.ReplayRateLimitBurst,
		},
		c.Logger(),
	), nil
}

// initFacade creates the mutation facade.
func (c *Container) initFacade() (*mutation.Facade, error) {
	queue, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for mutation facade: %w", err)
	}

	engine, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get replay engine for mutation facade: %w", err)
	}

	return mutation.NewFacade(queue, c.Overlay(), engine, c.Transport(), c.Detector(), c.Bus(), c.Logger()), nil
}

// initSyncHandler creates the sync API handler.
func (c *Container) initSyncHandler() (*queueHTTP.SyncHandler, error) {
	queue, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for sync handler: %w", err)
	}

	engine, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get replay engine for sync handler: %w", err)
	}

	return queueHTTP.NewSyncHandler(queue, engine, c.Detector(), c.Bus(), c.Overlay(), c.Logger()), nil
}
