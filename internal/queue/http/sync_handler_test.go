package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/invsync/internal/cache"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/notify"
	queueDomain "github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/usecase/mocks"
	"github.com/allisson/invsync/internal/replay"
)

type stubEngine struct {
	state   replay.State
	current uuid.UUID
}

func (s *stubEngine) State() replay.State { return s.state }

func (s *stubEngine) Current() (uuid.UUID, bool) { return s.current, s.current != uuid.Nil }

type stubConnectivity struct {
	online    bool
	announced atomic.Int32
}

func (s *stubConnectivity) IsOnline() bool { return s.online }
func (s *stubConnectivity) Announce()      { s.announced.Add(1) }

type stubCache struct {
	entries map[string]*cache.Entry
}

func (s *stubCache) Get(ctx context.Context, key string) (*cache.Entry, error) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, key)
	}
	return entry, nil
}

type testDeps struct {
	queue        *mocks.MockQueueUseCase
	engine       *stubEngine
	connectivity *stubConnectivity
	bus          *notify.Bus
	cache        *stubCache
}

func setupTestHandler(t *testing.T) (*SyncHandler, *testDeps) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := &testDeps{
		queue:        &mocks.MockQueueUseCase{},
		engine:       &stubEngine{state: replay.StateIdle},
		connectivity: &stubConnectivity{online: true},
		bus:          notify.NewBus(16, logger),
		cache:        &stubCache{entries: map[string]*cache.Entry{}},
	}
	t.Cleanup(func() { deps.queue.AssertExpectations(t) })

	handler := NewSyncHandler(deps.queue, deps.engine, deps.connectivity, deps.bus, deps.cache, logger)
	return handler, deps
}

func createTestContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func newOperation(status queueDomain.Status) *queueDomain.Operation {
	return &queueDomain.Operation{
		ID:         uuid.Must(uuid.NewV7()),
		Type:       queueDomain.OperationTypeCollect,
		Entity:     "batch:7",
		Endpoint:   "/api/batches/7/collect",
		Method:     http.MethodPost,
		Payload:    json.RawMessage(`{"quantity":3}`),
		Status:     status,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestSyncHandler_StatusHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		deps.engine.state = replay.StateSettling
		deps.engine.current = uuid.MustParse("0190b7a2-0000-7000-8000-000000000007")
		deps.connectivity.online = false

		deps.queue.On("CountPending", mock.Anything).Return(2, nil).Once()
		deps.queue.On("ListDeadLettered", mock.Anything).
			Return([]*queueDomain.Operation{newOperation(queueDomain.StatusDeadLettered)}, nil).
			Once()

		c, w := createTestContext(http.MethodGet, "/v1/sync/status")
		handler.StatusHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(
			t,
			`{"online":false,"syncing":true,"state":"settling",`+
				`"current_operation_id":"0190b7a2-0000-7000-8000-000000000007","pending":2,"dead_lettered":1}`,
			w.Body.String(),
		)
	})

	t.Run("Error_StorageUnavailable", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		deps.queue.On("CountPending", mock.Anything).Return(0, apperrors.ErrUnavailable).Once()

		c, w := createTestContext(http.MethodGet, "/v1/sync/status")
		handler.StatusHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSyncHandler_ListOperationsHandler(t *testing.T) {
	t.Run("Success_Paginated", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		ops := []*queueDomain.Operation{
			newOperation(queueDomain.StatusPending),
			newOperation(queueDomain.StatusFailed),
			newOperation(queueDomain.StatusPending),
		}
		deps.queue.On("ListPending", mock.Anything).Return(ops, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/sync/operations?offset=1&limit=1")
		handler.ListOperationsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, ops[1].ID.String(), response.Data[0]["id"])
		assert.Equal(t, "failed", response.Data[0]["status"])
	})

	t.Run("Error_InvalidLimit", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/sync/operations?limit=500")
		handler.ListOperationsHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestSyncHandler_ListDeadLettersHandler(t *testing.T) {
	handler, deps := setupTestHandler(t)
	op := newOperation(queueDomain.StatusDeadLettered)
	cause := "server returned 503"
	op.LastError = &cause
	op.Attempts = 5
	deps.queue.On("ListDeadLettered", mock.Anything).Return([]*queueDomain.Operation{op}, nil).Once()

	c, w := createTestContext(http.MethodGet, "/v1/sync/dead-letters")
	handler.ListDeadLettersHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_error":"server returned 503"`)
	assert.Contains(t, w.Body.String(), `"attempts":5`)
}

func TestSyncHandler_GetOperationHandler(t *testing.T) {
	t.Run("Error_InvalidID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/sync/operations/nope")
		c.Params = gin.Params{{Key: "id", Value: "nope"}}
		handler.GetOperationHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())
		deps.queue.On("Get", mock.Anything, id).Return(nil, queueDomain.ErrOperationNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/sync/operations/"+id.String())
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.GetOperationHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSyncHandler_RetryHandler(t *testing.T) {
	t.Run("Success_AnnouncesConnectivity", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		events, cancel := deps.bus.Subscribe()
		defer cancel()

		op := newOperation(queueDomain.StatusPending)
		deps.queue.On("Retry", mock.Anything, op.ID).Return(op, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/sync/operations/"+op.ID.String()+"/retry")
		c.Params = gin.Params{{Key: "id", Value: op.ID.String()}}
		handler.RetryHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int32(1), deps.connectivity.announced.Load())

		event := <-events
		assert.Equal(t, notify.EventOperationRetried, event.Type)
		require.NotNil(t, event.OperationID)
		assert.Equal(t, op.ID, *event.OperationID)
	})

	t.Run("Error_NotDeadLettered", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())
		deps.queue.On("Retry", mock.Anything, id).Return(nil, queueDomain.ErrNotDeadLettered).Once()

		c, w := createTestContext(http.MethodPost, "/v1/sync/operations/"+id.String()+"/retry")
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.RetryHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, int32(0), deps.connectivity.announced.Load())
	})
}

func TestSyncHandler_DiscardHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		events, cancel := deps.bus.Subscribe()
		defer cancel()

		op := newOperation(queueDomain.StatusDeadLettered)
		deps.queue.On("Get", mock.Anything, op.ID).Return(op, nil).Once()
		deps.queue.On("Discard", mock.Anything, op.ID).Return(nil).Once()

		c, w := createTestContext(http.MethodDelete, "/v1/sync/operations/"+op.ID.String())
		c.Params = gin.Params{{Key: "id", Value: op.ID.String()}}
		handler.DiscardHandler(c)

		assert.Equal(t, http.StatusNoContent, w.Code)
		event := <-events
		assert.Equal(t, notify.EventOperationDiscarded, event.Type)
		assert.Equal(t, "batch:7", event.Entity)
	})

	t.Run("Error_InFlight", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		op := newOperation(queueDomain.StatusInFlight)
		deps.queue.On("Get", mock.Anything, op.ID).Return(op, nil).Once()
		deps.queue.On("Discard", mock.Anything, op.ID).Return(queueDomain.ErrOperationInFlight).Once()

		c, w := createTestContext(http.MethodDelete, "/v1/sync/operations/"+op.ID.String())
		c.Params = gin.Params{{Key: "id", Value: op.ID.String()}}
		handler.DiscardHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestSyncHandler_ClearHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		events, cancel := deps.bus.Subscribe()
		defer cancel()
		deps.queue.On("Clear", mock.Anything).Return(nil).Once()

		c, w := createTestContext(http.MethodDelete, "/v1/sync/operations")
		handler.ClearHandler(c)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, notify.EventQueueCleared, (<-events).Type)
	})

	t.Run("Error", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		deps.queue.On("Clear", mock.Anything).Return(errors.New("disk full")).Once()

		c, w := createTestContext(http.MethodDelete, "/v1/sync/operations")
		handler.ClearHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestSyncHandler_CacheHandler(t *testing.T) {
	t.Run("Success_Optimistic", func(t *testing.T) {
		handler, deps := setupTestHandler(t)
		operationID := uuid.Must(uuid.NewV7())
		deps.cache.entries["/api/batches/7"] = &cache.Entry{
			Value:      json.RawMessage(`{"id":"7","quantity":2}`),
			Optimistic: true,
			Effects:    []cache.AppliedEffect{{OperationID: operationID, Transform: "object.adjust"}},
		}

		c, w := createTestContext(http.MethodGet, "/v1/cache?key=/api/batches/7")
		handler.CacheHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"key": "/api/batches/7",
			"value": {"id":"7","quantity":2},
			"optimistic": true,
			"operation_ids": ["`+operationID.String()+`"]
		}`, w.Body.String())
	})

	t.Run("Error_MissingKey", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/cache")
		handler.CacheHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/cache?key=/api/batches/404")
		handler.CacheHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSyncHandler_EventsHandler(t *testing.T) {
	handler, deps := setupTestHandler(t)

	router := gin.New()
	router.GET("/v1/sync/events", handler.EventsHandler)
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/sync/events", nil)
	require.NoError(t, err)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	require.Eventually(t, func() bool { return deps.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	deps.bus.Publish(notify.SyncEvent(notify.EventSyncCompleted, 0))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}

	assert.Contains(t, lines, "event:sync.completed")
	assert.Contains(t, lines[len(lines)-1], `"type":"sync.completed"`)

	cancel()
	require.Eventually(t, func() bool { return deps.bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
