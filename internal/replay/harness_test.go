package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/allisson/invsync/internal/cache"
	"github.com/allisson/invsync/internal/connectivity"
	"github.com/allisson/invsync/internal/database"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/notify"
	"github.com/allisson/invsync/internal/overlay"
	"github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/repository"
	"github.com/allisson/invsync/internal/queue/usecase"
	"github.com/allisson/invsync/internal/testutil"
	"github.com/allisson/invsync/internal/transport"
)

// fakeClock replaces wall time so backoff waits complete instantly.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// fakeServer is an in-memory inventory API holding batch quantities.
type fakeServer struct {
	mu         sync.Mutex
	quantities map[string]float64
	calls      []transport.Request
	hook       func(req transport.Request) *transport.Outcome
}

func newFakeServer() *fakeServer {
	return &fakeServer{quantities: make(map[string]float64)}
}

func (s *fakeServer) SetHook(hook func(req transport.Request) *transport.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *fakeServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.calls))
	for _, call := range s.calls {
		paths = append(paths, call.Path)
	}
	return paths
}

func (s *fakeServer) Quantity(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantities[id]
}

func (s *fakeServer) Send(ctx context.Context, req transport.Request) transport.Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if outcome := hook(req); outcome != nil {
			return *outcome
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// /api/batches/<id>/<action>
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	if len(parts) != 4 || parts[1] != "batches" {
		return transport.Outcome{Kind: transport.KindSuccess, StatusCode: http.StatusOK}
	}
	quantity, ok := s.quantities[parts[2]]
	if !ok {
		return transport.Outcome{Kind: transport.KindClientError, StatusCode: http.StatusNotFound}
	}

	var body struct {
		Quantity float64 `json:"quantity"`
	}
	_ = json.Unmarshal(req.Body, &body)
	if quantity-body.Quantity < 0 {
		return transport.Outcome{
			Kind:       transport.KindClientError,
			StatusCode: http.StatusUnprocessableEntity,
			Body:       json.RawMessage(`{"error":"insufficient_quantity"}`),
		}
	}
	s.quantities[parts[2]] = quantity - body.Quantity
	return transport.Outcome{Kind: transport.KindSuccess, StatusCode: http.StatusOK}
}

func (s *fakeServer) Fetch(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := strings.CutPrefix(key, "/api/batches/")
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	quantity, ok := s.quantities[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"quantity":%v}`, id, quantity)), nil
}

// failing returns an outcome for a retryable server error.
func failing() *transport.Outcome {
	return &transport.Outcome{Kind: transport.KindTransportError, StatusCode: http.StatusServiceUnavailable}
}

type harness struct {
	ctx       context.Context
	repo      *repository.SQLiteOperationRepository
	txManager database.TxManager
	queue     usecase.QueueUseCase
	cache     *cache.MemoryCache
	overlay   *overlay.Overlay
	server    *fakeServer
	detector  *connectivity.Detector
	bus       *notify.Bus
	events    <-chan notify.Event
	clock     *fakeClock
	engine    *Engine
	logger    *slog.Logger
}

func newHarness(t *testing.T, maxAttempts int) *harness {
	t.Helper()

	db := testutil.SetupSQLiteDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		ctx:       ctx,
		repo:      repository.NewSQLiteOperationRepository(db),
		txManager: database.NewTxManager(db),
		server:    newFakeServer(),
		bus:       notify.NewBus(256, logger),
		clock:     &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		logger:    logger,
	}
	h.cache = cache.NewMemoryCache(h.server, logger)
	h.overlay = overlay.New(h.cache, overlay.NewRegistry(), logger)
	h.queue = usecase.NewQueueUseCase(h.repo, h.txManager, h.overlay, maxAttempts, logger)
	h.detector = connectivity.NewDetector(nil, 0, logger)

	events, unsubscribe := h.bus.Subscribe()
	h.events = events
	h.engine = h.newEngine()

	t.Cleanup(func() {
		cancel()
		h.engine.Wait()
		unsubscribe()
		testutil.TeardownDB(t, db)
	})
	return h
}

// newEngine builds an engine over the harness, as a restarted process would.
func (h *harness) newEngine() *Engine {
	engine := NewEngine(
		h.queue,
		h.overlay,
		h.server,
		h.detector,
		h.bus,
		nil,
		Config{InitialBackoff: time.Second, MaxBackoff: 30 * time.Second},
		h.logger,
	)
	engine.now = h.clock.Now
	engine.sleep = h.clock.Sleep
	engine.Start(h.ctx)
	h.detector.OnChange(engine.HandleConnectivity)
	return engine
}

// goOnline flips connectivity on and waits for the triggered drain to settle.
func (h *harness) goOnline() {
	h.detector.Set(true)
	h.engine.Wait()
}

// adjust queues a quantity-consuming operation with its optimistic effect on the batch view.
func (h *harness) adjust(t *testing.T, opType domain.OperationType, batchID, action string, quantity int) *domain.Operation {
	t.Helper()

	key := "/api/batches/" + batchID
	op, err := h.queue.Enqueue(h.ctx, usecase.EnqueueInput{
		Type:     opType,
		Entity:   "batch:" + batchID,
		Endpoint: key + "/" + action,
		Method:   http.MethodPost,
		Payload:  json.RawMessage(fmt.Sprintf(`{"quantity":%d}`, quantity)),
		Effects: []domain.Effect{{
			Key:       key,
			Transform: "object.adjust",
			Args:      json.RawMessage(fmt.Sprintf(`{"field":"quantity","delta":%d}`, -quantity)),
		}},
	})
	require.NoError(t, err)
	require.NoError(t, h.overlay.Apply(h.ctx, op))
	return op
}

// view returns the cached batch quantity and whether it is provisional.
func (h *harness) view(t *testing.T, batchID string) (float64, bool) {
	t.Helper()

	entry, err := h.cache.Get(h.ctx, "/api/batches/"+batchID)
	require.NoError(t, err)
	var batch struct {
		Quantity float64 `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal(entry.Value, &batch))
	return batch.Quantity, entry.Optimistic
}

// drainEvents returns the event types published so far.
func (h *harness) drainEvents() []notify.EventType {
	var types []notify.EventType
	for {
		select {
		case event := <-h.events:
			types = append(types, event.Type)
		default:
			return types
		}
	}
}
