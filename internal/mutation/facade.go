// Package mutation is the single entry point for writes: it calls the inventory API directly
// when that cannot reorder queued work, and otherwise queues the write with an optimistic effect.
package mutation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/notify"
	"github.com/allisson/invsync/internal/overlay"
	"github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/usecase"
	"github.com/allisson/invsync/internal/transport"
)

// ErrRejected indicates the server refused the write; retrying it unchanged will not help.
var ErrRejected = apperrors.Wrap(apperrors.ErrInvalidInput, "write rejected by server")

// Status tells the caller how a write was handled.
type Status string

const (
	// StatusApplied means the server accepted the write.
	StatusApplied Status = "applied"
	// StatusPending means the write was queued and its effect is shown optimistically.
	StatusPending Status = "pending"
)

// Intent is a write requested by the UI.
type Intent struct {
	Type      domain.OperationType
	Entity    string
	Endpoint  string
	Method    string
	Payload   json.RawMessage
	Effects   []domain.Effect
	CacheKeys []string
}

// Result describes a performed or queued write.
type Result struct {
	Status      Status
	OperationID uuid.UUID
	// StatusCode and Body are the server response for applied writes.
	StatusCode int
	Body       json.RawMessage
}

// HTTPStatus is the status the local API answers with: 200 for applied writes, 202 for queued ones.
func (r *Result) HTTPStatus() int {
	if r.Status == StatusApplied {
		return http.StatusOK
	}
	return http.StatusAccepted
}

// Queue is the part of the sync queue manager the facade writes to.
type Queue interface {
	Enqueue(ctx context.Context, input usecase.EnqueueInput) (*domain.Operation, error)
	HasPendingFor(ctx context.Context, entity string) (bool, error)
	Discard(ctx context.Context, id uuid.UUID) error
}

// Overlay applies and settles optimistic effects.
type Overlay interface {
	Apply(ctx context.Context, op *domain.Operation) error
	Reconcile(ctx context.Context, op *domain.Operation, settlement overlay.Settlement) error
}

// Engine is the replay engine as seen by the facade.
type Engine interface {
	Hold(fn func(draining bool) error) error
}

// Connectivity reports the current connectivity state and can re-announce it.
type Connectivity interface {
	IsOnline() bool
	Announce()
}

// Facade routes writes to the API or the queue.
type Facade struct {
	queue        Queue
	overlay      Overlay
	engine       Engine
	transport    transport.Transport
	connectivity Connectivity
	publisher    notify.Publisher
	logger       *slog.Logger
}

// NewFacade creates a Facade.
func NewFacade(
	queue Queue,
	ov Overlay,
	engine Engine,
	tr transport.Transport,
	conn Connectivity,
	publisher notify.Publisher,
	logger *slog.Logger,
) *Facade {
	return &Facade{
		queue:        queue,
		overlay:      ov,
		engine:       engine,
		transport:    tr,
		connectivity: conn,
		publisher:    publisher,
		logger:       logger,
	}
}

// Perform executes intent. Online, with no replay running and nothing queued for the entity,
// the write goes straight to the API. Otherwise it is queued and its effect applied to the
// cache immediately.
func (f *Facade) Perform(ctx context.Context, intent Intent) (*Result, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate operation id")
	}
	input := usecase.EnqueueInput{
		ID:        id,
		Type:      intent.Type,
		Entity:    intent.Entity,
		Endpoint:  intent.Endpoint,
		Method:    intent.Method,
		Payload:   intent.Payload,
		Effects:   intent.Effects,
		CacheKeys: intent.CacheKeys,
	}
	if err := usecase.ValidateEnqueueInput(input); err != nil {
		return nil, err
	}

	var (
		direct bool
		queued *domain.Operation
	)
	err = f.engine.Hold(func(draining bool) error {
		if !draining && f.connectivity.IsOnline() {
			pending, err := f.queue.HasPendingFor(ctx, input.Entity)
			if err != nil {
				return err
			}
			if !pending {
				direct = true
				return nil
			}
		}
		op, err := f.enqueue(ctx, input)
		queued = op
		return err
	})
	if err != nil {
		return nil, err
	}

	if direct {
		result, err := f.performDirect(ctx, input)
		if err == nil || !apperrors.Is(err, errTransport) {
			return result, err
		}

		f.logger.Warn("direct write failed, queueing it",
			slog.String("operation_id", input.ID.String()),
			slog.String("entity", input.Entity),
			slog.Any("error", err),
		)
		err = f.engine.Hold(func(bool) error {
			op, err := f.enqueue(ctx, input)
			queued = op
			return err
		})
		if err != nil {
			return nil, err
		}
		// Make the engine pick the write up without waiting for the next connectivity change.
		f.connectivity.Announce()
	}

	f.publisher.Publish(notify.OperationEvent(notify.EventOperationQueued, queued.ID, queued.Entity, ""))
	return &Result{Status: StatusPending, OperationID: queued.ID}, nil
}

// errTransport marks a direct call that did not reach a verdict.
var errTransport = apperrors.New("transport failure")

func (f *Facade) performDirect(ctx context.Context, input usecase.EnqueueInput) (*Result, error) {
	outcome := f.transport.Send(ctx, transport.Request{
		Method:         input.Method,
		Path:           input.Endpoint,
		Body:           input.Payload,
		IdempotencyKey: input.ID.String(),
	})

	switch outcome.Kind {
	case transport.KindSuccess:
		op := &domain.Operation{
			ID:        input.ID,
			Type:      input.Type,
			Entity:    input.Entity,
			Endpoint:  input.Endpoint,
			Method:    input.Method,
			Payload:   input.Payload,
			Effects:   input.Effects,
			CacheKeys: input.CacheKeys,
			Status:    domain.StatusInFlight,
		}
		f.settleDirect(ctx, op)
		return &Result{
			Status:      StatusApplied,
			OperationID: input.ID,
			StatusCode:  outcome.StatusCode,
			Body:        outcome.Body,
		}, nil
	case transport.KindClientError:
		return nil, apperrors.Wrap(ErrRejected, outcome.Cause())
	default:
		return nil, apperrors.Wrap(errTransport, outcome.Cause())
	}
}

// settleDirect refreshes the views an applied write touched. Views still carrying effects of
// queued work are re-based on the server view.
func (f *Facade) settleDirect(ctx context.Context, op *domain.Operation) {
	if err := f.overlay.Reconcile(ctx, op, overlay.Confirmed); err != nil {
		f.logger.Warn("failed to refresh views after applied write",
			slog.String("operation_id", op.ID.String()),
			slog.Any("error", err),
		)
	}
}

// enqueue stores the write and applies its optimistic effect. An effect the current view cannot
// take undoes both and fails with an invalid input error. Callers hold the engine.
func (f *Facade) enqueue(ctx context.Context, input usecase.EnqueueInput) (*domain.Operation, error) {
	op, err := f.queue.Enqueue(ctx, input)
	if err != nil {
		return nil, err
	}

	err = f.overlay.Apply(ctx, op)
	switch {
	case err == nil:
		return op, nil
	case apperrors.Is(err, overlay.ErrTransformRejected):
		if discardErr := f.queue.Discard(ctx, op.ID); discardErr != nil {
			f.logger.Error("failed to discard operation with rejected effect",
				slog.String("operation_id", op.ID.String()),
				slog.Any("error", discardErr),
			)
		}
		return nil, err
	default:
		// The write is durable; the view catches up once it is replayed.
		f.logger.Warn("failed to apply optimistic effect",
			slog.String("operation_id", op.ID.String()),
			slog.Any("error", err),
		)
		return op, nil
	}
}
