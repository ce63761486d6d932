// Package replay drains the sync queue against the inventory API once connectivity returns.
package replay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/allisson/invsync/internal/connectivity"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/metrics"
	"github.com/allisson/invsync/internal/notify"
	"github.com/allisson/invsync/internal/overlay"
	"github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/transport"
)

// State is the engine's position in its drain cycle.
type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
	StateSettling State = "settling"
)

// Replay outcomes recorded in metrics.
const (
	outcomeSucceeded    = "succeeded"
	outcomeRejected     = "rejected"
	outcomeRetryable    = "retryable"
	outcomeDeadLettered = "dead_lettered"
)

// Queue is the part of the sync queue manager the engine drives.
type Queue interface {
	ListPending(ctx context.Context) ([]*domain.Operation, error)
	ListDeadLettered(ctx context.Context) ([]*domain.Operation, error)
	MarkInFlight(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) (*domain.Operation, error)
	Reject(ctx context.Context, id uuid.UUID) error
}

// Reconciler settles the optimistic effects of a replayed operation.
type Reconciler interface {
	Reconcile(ctx context.Context, op *domain.Operation, settlement overlay.Settlement) error
}

// Connectivity reports whether the inventory API is reachable.
type Connectivity interface {
	IsOnline() bool
}

// Config tunes retry spacing and call pacing.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RateLimit is the number of replayed calls per second; zero disables pacing.
	RateLimit float64
	Burst     int
}

// Engine replays queued operations in FIFO order. At most one drain runs at a time.
type Engine struct {
	mu      sync.Mutex
	state   State
	current *uuid.UUID
	ctx     context.Context
	wg      sync.WaitGroup

	queue        Queue
	reconciler   Reconciler
	transport    transport.Transport
	connectivity Connectivity
	publisher    notify.Publisher
	metrics      metrics.ReplayMetrics
	logger       *slog.Logger

	backoff   *Backoff
	limiter   *rate.Limiter
	notBefore map[uuid.UUID]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an idle Engine. Call Start (or Run) before triggering it.
func NewEngine(
	queue Queue,
	reconciler Reconciler,
	tr transport.Transport,
	conn Connectivity,
	publisher notify.Publisher,
	replayMetrics metrics.ReplayMetrics,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if replayMetrics == nil {
		replayMetrics = metrics.NewNoOpReplayMetrics()
	}

	return &Engine{
		state:        StateIdle,
		queue:        queue,
		reconciler:   reconciler,
		transport:    tr,
		connectivity: conn,
		publisher:    publisher,
		metrics:      replayMetrics,
		logger:       logger,
		backoff:      NewBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		limiter:      limiter,
		notBefore:    make(map[uuid.UUID]time.Time),
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Start binds the engine to ctx. Drains started afterwards stop when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx = ctx
}

// Run starts the engine and blocks until ctx is cancelled and the running drain has returned.
func (e *Engine) Run(ctx context.Context) error {
	e.Start(ctx)
	<-ctx.Done()
	e.Wait()
	return nil
}

// Wait blocks until the running drain, if any, has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// HandleConnectivity is registered with the connectivity detector.
func (e *Engine) HandleConnectivity(event connectivity.Event) {
	switch event {
	case connectivity.EventOnline:
		e.publisher.Publish(notify.Event{Type: notify.EventOnline})
		e.Trigger()
	case connectivity.EventOffline:
		e.publisher.Publish(notify.Event{Type: notify.EventOffline})
	}
}

// Trigger starts a drain. It is a no-op, returning false, while a drain is running or before
// the engine has been started.
func (e *Engine) Trigger() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil || e.ctx.Err() != nil || e.state != StateIdle {
		return false
	}

	e.state = StateDraining
	e.wg.Add(1)
	go e.drain(e.ctx)
	return true
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Syncing reports whether a drain is running.
func (e *Engine) Syncing() bool {
	return e.State() != StateIdle
}

// Current returns the ID of the operation being settled, if any.
func (e *Engine) Current() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return uuid.Nil, false
	}
	return *e.current, true
}

// Hold runs fn while the engine cannot leave or enter a drain. A drain that is about to finish
// sees anything fn enqueued.
func (e *Engine) Hold(fn func(draining bool) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state != StateIdle)
}

func (e *Engine) drain(ctx context.Context) {
	defer e.wg.Done()

	e.logger.Info("sync started")
	e.publisher.Publish(notify.SyncEvent(notify.EventSyncStarted, e.countPending(ctx)))

	for {
		result := e.pass(ctx)

		if !result.stopped && !result.wakeAt.IsZero() {
			if err := e.sleep(ctx, result.wakeAt.Sub(e.now())); err == nil {
				continue
			}
		}

		if e.finish(ctx) {
			return
		}
	}
}

type passResult struct {
	// stopped is set when the pass ended early because of shutdown or lost connectivity.
	stopped bool
	// wakeAt is the earliest time a deferred operation becomes due again.
	wakeAt time.Time
}

// pass replays every due operation once, in FIFO order. An entity stays held for the rest of
// the pass once one of its operations is dead-lettered, deferred or failed.
func (e *Engine) pass(ctx context.Context) passResult {
	var result passResult

	ops, held, err := e.schedule(ctx)
	if err != nil {
		e.logger.Error("failed to list queued operations", slog.Any("error", err))
		result.wakeAt = e.now().Add(e.backoff.Delay(1))
		return result
	}

	for _, op := range ops {
		if ctx.Err() != nil || !e.connectivity.IsOnline() {
			result.stopped = true
			return result
		}
		if held[op.Entity] {
			continue
		}

		if due, ok := e.notBefore[op.ID]; ok && e.now().Before(due) {
			held[op.Entity] = true
			if result.wakeAt.IsZero() || due.Before(result.wakeAt) {
				result.wakeAt = due
			}
			continue
		}

		settled, wakeAt := e.settle(ctx, op)
		if ctx.Err() != nil {
			result.stopped = true
			return result
		}
		if !settled {
			held[op.Entity] = true
		}
		if !wakeAt.IsZero() && (result.wakeAt.IsZero() || wakeAt.Before(result.wakeAt)) {
			result.wakeAt = wakeAt
		}
	}
	return result
}

// schedule returns the queued operations and the entities held behind a dead letter or an
// operation left in flight.
func (e *Engine) schedule(ctx context.Context) ([]*domain.Operation, map[string]bool, error) {
	deadLetters, err := e.queue.ListDeadLettered(ctx)
	if err != nil {
		return nil, nil, err
	}
	held := make(map[string]bool, len(deadLetters))
	for _, op := range deadLetters {
		held[op.Entity] = true
	}

	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, op := range ops {
		if !op.Status.Runnable() {
			held[op.Entity] = true
		}
	}
	return ops, held, nil
}

// settle replays a single operation. It reports whether the operation left the queue and, for a
// retryable failure, when it becomes due again.
func (e *Engine) settle(ctx context.Context, op *domain.Operation) (bool, time.Time) {
	if err := e.limiter.Wait(ctx); err != nil {
		return false, time.Time{}
	}

	logger := e.logger.With(
		slog.String("operation_id", op.ID.String()),
		slog.String("entity", op.Entity),
		slog.String("type", string(op.Type)),
	)

	e.setCurrent(&op.ID)
	defer e.setCurrent(nil)

	if _, err := e.queue.MarkInFlight(ctx, op.ID); err != nil {
		if apperrors.Is(err, domain.ErrOperationNotFound) {
			// Discarded since the pass started.
			return true, time.Time{}
		}
		logger.Error("failed to mark operation in flight", slog.Any("error", err))
		return false, e.now().Add(e.backoff.Delay(1))
	}

	outcome := e.transport.Send(ctx, transport.Request{
		Method:         op.Method,
		Path:           op.Endpoint,
		Body:           op.Payload,
		IdempotencyKey: op.ID.String(),
	})

	if ctx.Err() != nil && outcome.Kind != transport.KindSuccess {
		// Left in flight; recovered as pending on the next start.
		logger.Warn("replay interrupted by shutdown")
		return false, time.Time{}
	}

	switch outcome.Kind {
	case transport.KindSuccess:
		delete(e.notBefore, op.ID)
		if err := e.queue.MarkSucceeded(ctx, op.ID); err != nil {
			logger.Error("failed to remove replayed operation", slog.Any("error", err))
		}
		e.reconcile(ctx, logger, op, overlay.Confirmed)
		e.metrics.RecordReplay(ctx, string(op.Type), outcomeSucceeded)
		logger.Info("operation replayed", slog.Int("status_code", outcome.StatusCode))
		e.publisher.Publish(notify.OperationEvent(notify.EventOperationSucceeded, op.ID, op.Entity, ""))
		return true, time.Time{}

	case transport.KindClientError:
		delete(e.notBefore, op.ID)
		cause := outcome.Cause()
		if err := e.queue.Reject(ctx, op.ID); err != nil {
			logger.Error("failed to remove rejected operation", slog.Any("error", err))
		}
		e.reconcile(ctx, logger, op, overlay.Refused)
		e.metrics.RecordReplay(ctx, string(op.Type), outcomeRejected)
		logger.Warn("operation rejected by server", slog.Int("status_code", outcome.StatusCode), slog.String("cause", cause))
		e.publisher.Publish(notify.OperationEvent(notify.EventOperationRejected, op.ID, op.Entity, cause))
		return true, time.Time{}
	}

	cause := outcome.Cause()
	failed, err := e.queue.MarkFailed(ctx, op.ID, cause)
	if err != nil {
		logger.Error("failed to record replay failure", slog.Any("error", err))
		return false, e.now().Add(e.backoff.Delay(1))
	}

	if failed.Status == domain.StatusDeadLettered {
		delete(e.notBefore, op.ID)
		e.reconcile(ctx, logger, op, overlay.Refused)
		e.metrics.RecordReplay(ctx, string(op.Type), outcomeDeadLettered)
		logger.Error("operation dead-lettered", slog.Int("attempts", failed.Attempts), slog.String("cause", cause))
		e.publisher.Publish(notify.OperationEvent(notify.EventOperationDeadLettered, op.ID, op.Entity, cause))
		return false, time.Time{}
	}

	due := e.now().Add(e.backoff.Delay(failed.Attempts))
	e.notBefore[op.ID] = due
	e.metrics.RecordReplay(ctx, string(op.Type), outcomeRetryable)
	logger.Warn("operation replay failed", slog.Int("attempts", failed.Attempts), slog.String("cause", cause))
	e.publisher.Publish(notify.OperationEvent(notify.EventOperationRetrying, op.ID, op.Entity, cause))
	return false, due
}

func (e *Engine) reconcile(ctx context.Context, logger *slog.Logger, op *domain.Operation, settlement overlay.Settlement) {
	if err := e.reconciler.Reconcile(ctx, op, settlement); err != nil {
		logger.Warn("failed to reconcile optimistic view", slog.Any("error", err))
	}
}

// finish returns the engine to idle unless more work became runnable while it was draining.
// It runs under the engine lock so a concurrent Hold either enqueues before the check or sees
// the engine idle.
func (e *Engine) finish(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() == nil && e.connectivity.IsOnline() {
		ops, held, err := e.schedule(ctx)
		if err != nil {
			e.logger.Error("failed to list queued operations", slog.Any("error", err))
		}
		for _, op := range ops {
			if !held[op.Entity] {
				return false
			}
		}
	}

	e.state = StateIdle
	e.current = nil

	pending := e.countPending(context.WithoutCancel(ctx))
	if pending == 0 {
		clear(e.notBefore)
		e.logger.Info("sync completed")
		e.publisher.Publish(notify.SyncEvent(notify.EventSyncCompleted, 0))
		return true
	}
	e.logger.Warn("sync halted", slog.Int("pending", pending))
	e.publisher.Publish(notify.SyncEvent(notify.EventSyncHalted, pending))
	return true
}

func (e *Engine) setCurrent(id *uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = id
	if id != nil {
		e.state = StateSettling
	} else if e.state == StateSettling {
		e.state = StateDraining
	}
}

// countPending counts queued operations, dead letters included.
func (e *Engine) countPending(ctx context.Context) int {
	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return 0
	}
	deadLetters, err := e.queue.ListDeadLettered(ctx)
	if err != nil {
		return len(ops)
	}
	return len(ops) + len(deadLetters)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
