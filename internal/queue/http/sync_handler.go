// Package http provides HTTP handlers for the sync queue: status, notifications and the
// operations a user can take on queued and dead-lettered writes.
package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/cache"
	"github.com/allisson/invsync/internal/httputil"
	"github.com/allisson/invsync/internal/notify"
	queueDomain "github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/http/dto"
	queueUseCase "github.com/allisson/invsync/internal/queue/usecase"
	"github.com/allisson/invsync/internal/replay"
)

// Engine exposes the replay engine state.
type Engine interface {
	State() replay.State
	// Current returns the operation being settled, if any.
	Current() (uuid.UUID, bool)
}

// Connectivity reports and re-announces the connectivity state.
type Connectivity interface {
	IsOnline() bool
	Announce()
}

// Events is the notification bus as seen by the sync API.
type Events interface {
	notify.Publisher
	Subscribe() (<-chan notify.Event, func())
}

// CacheReader reads cached views, fetching missing ones and re-basing provisional ones.
type CacheReader interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
}

// SyncHandler handles HTTP requests for the sync queue.
type SyncHandler struct {
	queueUseCase queueUseCase.QueueUseCase
	engine       Engine
	connectivity Connectivity
	events       Events
	cache        CacheReader
	logger       *slog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(
	queueUseCase queueUseCase.QueueUseCase,
	engine Engine,
	connectivity Connectivity,
	events Events,
	cache CacheReader,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		queueUseCase: queueUseCase,
		engine:       engine,
		connectivity: connectivity,
		events:       events,
		cache:        cache,
		logger:       logger,
	}
}

// StatusHandler reports connectivity, drain state and queue counts.
// GET /v1/sync/status
func (h *SyncHandler) StatusHandler(c *gin.Context) {
	ctx := c.Request.Context()

	pending, err := h.queueUseCase.CountPending(ctx)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	deadLetters, err := h.queueUseCase.ListDeadLettered(ctx)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	state := h.engine.State()
	response := dto.StatusResponse{
		Online:       h.connectivity.IsOnline(),
		Syncing:      state != replay.StateIdle,
		State:        string(state),
		Pending:      pending,
		DeadLettered: len(deadLetters),
	}
	if current, ok := h.engine.Current(); ok {
		response.Current = current.String()
	}
	c.JSON(http.StatusOK, response)
}

// EventsHandler streams sync notifications as server-sent events until the client goes away.
// GET /v1/sync/events
func (h *SyncHandler) EventsHandler(c *gin.Context) {
	events, cancel := h.events.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})
}

// ListOperationsHandler lists replayable operations in replay order.
// GET /v1/sync/operations?offset=0&limit=50
func (h *SyncHandler) ListOperationsHandler(c *gin.Context) {
	h.list(c, h.queueUseCase.ListPending)
}

// ListDeadLettersHandler lists operations that exhausted their retries.
// GET /v1/sync/dead-letters?offset=0&limit=50
func (h *SyncHandler) ListDeadLettersHandler(c *gin.Context) {
	h.list(c, h.queueUseCase.ListDeadLettered)
}

// GetOperationHandler returns a single operation.
// GET /v1/sync/operations/:id
func (h *SyncHandler) GetOperationHandler(c *gin.Context) {
	id, ok := h.operationID(c)
	if !ok {
		return
	}

	op, err := h.queueUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapOperationToResponse(op))
}

// RetryHandler returns a dead-lettered operation to the queue and nudges the engine.
// POST /v1/sync/operations/:id/retry
func (h *SyncHandler) RetryHandler(c *gin.Context) {
	id, ok := h.operationID(c)
	if !ok {
		return
	}

	op, err := h.queueUseCase.Retry(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.events.Publish(notify.OperationEvent(notify.EventOperationRetried, op.ID, op.Entity, ""))
	h.connectivity.Announce()
	c.JSON(http.StatusOK, dto.MapOperationToResponse(op))
}

// DiscardHandler drops an operation and reverts its optimistic effects.
// DELETE /v1/sync/operations/:id
func (h *SyncHandler) DiscardHandler(c *gin.Context) {
	id, ok := h.operationID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	op, err := h.queueUseCase.Get(ctx, id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if err := h.queueUseCase.Discard(ctx, id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.events.Publish(notify.OperationEvent(notify.EventOperationDiscarded, op.ID, op.Entity, ""))
	// Writes queued behind the discarded one may now be replayable.
	h.connectivity.Announce()
	c.Data(http.StatusNoContent, "application/json", nil)
}

// ClearHandler drops every queued operation, as done on logout.
// DELETE /v1/sync/operations
func (h *SyncHandler) ClearHandler(c *gin.Context) {
	if err := h.queueUseCase.Clear(c.Request.Context()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.events.Publish(notify.SyncEvent(notify.EventQueueCleared, 0))
	c.Data(http.StatusNoContent, "application/json", nil)
}

// CacheHandler returns a cached view, tagged optimistic while it reflects unconfirmed writes.
// GET /v1/cache?key=/api/batches/7
func (h *SyncHandler) CacheHandler(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" || !strings.HasPrefix(key, "/") {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("key must be an absolute API path"), h.logger)
		return
	}

	entry, err := h.cache.Get(c.Request.Context(), key)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapEntryToResponse(key, entry))
}

func (h *SyncHandler) list(
	c *gin.Context,
	source func(ctx context.Context) ([]*queueDomain.Operation, error),
) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	ops, err := source(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapOperationsToListResponse(ops, offset, limit))
}

func (h *SyncHandler) operationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid operation id format: must be a valid UUID"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
