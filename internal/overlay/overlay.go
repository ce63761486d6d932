// Package overlay applies provisional effects of queued operations to the view cache and
// reconciles or reverts them once the real outcome is known.
//
// The overlay keeps no state of its own: each optimistic cache entry carries its confirmed base
// and the ordered effects applied on top of it, which is enough to recompute, restore or
// rebuild the view after a restart.
package overlay

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/allisson/invsync/internal/cache"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/queue/domain"
)

// Cache is the key-addressed store the overlay writes through.
type Cache interface {
	// Read returns the entry for key, or nil when nothing is cached.
	Read(ctx context.Context, key string) (*cache.Entry, error)
	// Get is Read with a fetch of missing keys.
	Get(ctx context.Context, key string) (*cache.Entry, error)
	// Fetch returns the authoritative server view without caching it.
	Fetch(ctx context.Context, key string) (json.RawMessage, error)
	Write(ctx context.Context, key string, entry *cache.Entry) error
	// Invalidate drops key and makes consumers re-fetch the authoritative view.
	Invalidate(ctx context.Context, key string) error
	// Delete drops key without re-fetching.
	Delete(ctx context.Context, key string) error
}

// Settlement is the real outcome of a replayed operation.
type Settlement int

const (
	// Confirmed means the server applied the operation.
	Confirmed Settlement = iota
	// Refused means the server will never apply the operation (rejected or dead-lettered).
	Refused
)

// Overlay implements the optimistic cache protocol.
type Overlay struct {
	mu       sync.Mutex
	cache    Cache
	registry *Registry
	logger   *slog.Logger
}

// New creates an Overlay writing to c with transforms from registry.
func New(c Cache, registry *Registry, logger *slog.Logger) *Overlay {
	return &Overlay{
		cache:    c,
		registry: registry,
		logger:   logger,
	}
}

// Apply writes the provisional effects of op into the cache. A key nothing is cached for is
// fetched first so the provisional view builds on the server view. Applying the same operation
// twice is a no-op. Effects whose view is still absent are skipped, except list.prepend which
// starts a provisional list; a rejected effect returns an error and leaves earlier keys applied,
// so callers roll the operation back.
func (o *Overlay) Apply(ctx context.Context, op *domain.Operation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.apply(ctx, op)
}

// Reconcile settles op's effects after replay. Keys left without outstanding effects are
// invalidated so the server view replaces the provisional one. Keys still carrying effects of
// other queued operations stay optimistic: a confirmed settlement re-bases them on the server
// view and folds only the remaining effects on top. When the server cannot be reached the
// confirmed effect is folded into the old base instead.
func (o *Overlay) Reconcile(ctx context.Context, op *domain.Operation, settlement Settlement) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for _, key := range op.Keys() {
		entry, err := o.cache.Read(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if entry != nil && entry.Optimistic {
			if remaining := otherEffects(entry, op); len(remaining) > 0 {
				base := entry.Base
				switch {
				case settlement == Confirmed:
					base = o.confirmedBase(ctx, key, entry, op)
				case base == nil:
					if value, err := o.cache.Fetch(ctx, key); err == nil {
						base = value
					}
				}
				errs = append(errs, o.cache.Write(ctx, key, o.recompute(key, base, remaining)))
				continue
			}
		}

		if err := o.cache.Invalidate(ctx, key); err != nil {
			o.logger.Warn("failed to re-fetch reconciled view",
				slog.String("key", key),
				slog.String("operation_id", op.ID.String()),
				slog.Any("error", err),
			)
		}
	}
	return apperrors.Join(errs...)
}

// Get returns the view for key, fetching it when nothing is cached. An optimistic view that was
// built without a confirmed base is re-based on the server view as soon as it can be fetched.
func (o *Overlay) Get(ctx context.Context, key string) (*cache.Entry, error) {
	entry, err := o.cache.Get(ctx, key)
	if err != nil || !entry.Optimistic || entry.Base != nil {
		return entry, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	entry, err = o.cache.Read(ctx, key)
	if err != nil || entry == nil || !entry.Optimistic || entry.Base != nil {
		return entry, err
	}
	rebased, ok := o.rebase(ctx, key, entry)
	if !ok {
		return entry, nil
	}
	if err := o.cache.Write(ctx, key, rebased); err != nil {
		return nil, err
	}
	return rebased, nil
}

// Rollback removes op's effects and restores the exact pre-optimistic view, recomputed with
// any effects of other operations. It never re-fetches.
func (o *Overlay) Rollback(ctx context.Context, op *domain.Operation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.rollback(ctx, op)
}

// Restore re-applies the effects of replayable operations, in queue order, after a restart.
func (o *Overlay) Restore(ctx context.Context, ops []*domain.Operation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for _, op := range ops {
		if err := o.apply(ctx, op); err != nil {
			o.logger.Warn("failed to restore optimistic effect",
				slog.String("operation_id", op.ID.String()),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return apperrors.Join(errs...)
}

func (o *Overlay) apply(ctx context.Context, op *domain.Operation) error {
	for _, key := range effectKeys(op) {
		entry, err := o.cache.Read(ctx, key)
		if err != nil {
			return err
		}
		if entry != nil && entry.HasOperation(op.ID) {
			continue
		}
		switch {
		case entry == nil:
			entry = o.load(ctx, key)
		case entry.Optimistic && entry.Base == nil:
			if rebased, ok := o.rebase(ctx, key, entry); ok {
				entry = rebased
			}
		}

		next := &cache.Entry{Optimistic: true}
		if entry != nil {
			next.Value = entry.Value
			next.Base = entry.Value
			if entry.Optimistic {
				next.Base = entry.Base
				next.Effects = entry.Effects
			}
		}

		changed := false
		for _, effect := range op.Effects {
			if effect.Key != key {
				continue
			}
			value, err := o.registry.Run(effect.Transform, next.Value, effect.Args)
			if apperrors.Is(err, ErrNoView) {
				o.logger.Debug("skipping effect without cached view",
					slog.String("key", key),
					slog.String("transform", effect.Transform),
				)
				continue
			}
			if err != nil {
				return apperrors.Wrapf(err, "%s on %s", effect.Transform, key)
			}
			next.Value = value
			next.Effects = append(next.Effects, cache.AppliedEffect{
				OperationID: op.ID,
				Transform:   effect.Transform,
				Args:        effect.Args,
			})
			changed = true
		}

		if !changed {
			continue
		}
		if err := o.cache.Write(ctx, key, next); err != nil {
			return err
		}
	}
	return nil
}

func (o *Overlay) rollback(ctx context.Context, op *domain.Operation) error {
	var errs []error
	for _, key := range effectKeys(op) {
		entry, err := o.cache.Read(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if entry == nil || !entry.Optimistic || !entry.HasOperation(op.ID) {
			continue
		}

		remaining := otherEffects(entry, op)
		switch {
		case len(remaining) > 0:
			err = o.cache.Write(ctx, key, o.recompute(key, entry.Base, remaining))
		case entry.Base == nil:
			err = o.cache.Delete(ctx, key)
		default:
			err = o.cache.Write(ctx, key, &cache.Entry{Value: entry.Base})
		}
		errs = append(errs, err)
	}
	return apperrors.Join(errs...)
}

// load fetches the server view of a key nothing is cached for. It returns nil when the server
// cannot be reached, and effects then build on an absent view.
func (o *Overlay) load(ctx context.Context, key string) *cache.Entry {
	value, err := o.cache.Fetch(ctx, key)
	if err != nil {
		o.logger.Debug("applying effect without server view", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	return &cache.Entry{Value: value}
}

// rebase recomputes an optimistic entry on top of the current server view.
func (o *Overlay) rebase(ctx context.Context, key string, entry *cache.Entry) (*cache.Entry, bool) {
	value, err := o.cache.Fetch(ctx, key)
	if err != nil {
		return nil, false
	}
	return o.recompute(key, value, entry.Effects), true
}

// confirmedBase returns the server view of key after op was applied, or the old base with op's
// effects folded in when the server cannot be reached.
func (o *Overlay) confirmedBase(ctx context.Context, key string, entry *cache.Entry, op *domain.Operation) json.RawMessage {
	value, err := o.cache.Fetch(ctx, key)
	if err == nil {
		return value
	}
	o.logger.Warn("re-basing on local result, server view unavailable",
		slog.String("key", key),
		slog.String("operation_id", op.ID.String()),
		slog.Any("error", err),
	)
	own := ownEffects(entry, op)
	if len(own) == 0 {
		own = appliedEffects(op, key)
	}
	return o.fold(key, entry.Base, own)
}

// recompute rebuilds an optimistic entry from base and the given effects.
func (o *Overlay) recompute(key string, base json.RawMessage, effects []cache.AppliedEffect) *cache.Entry {
	return &cache.Entry{
		Value:      o.fold(key, base, effects),
		Optimistic: true,
		Base:       base,
		Effects:    effects,
	}
}

// fold applies effects to value in order. An effect that no longer fits the view contributes
// nothing but stays recorded until its operation settles.
func (o *Overlay) fold(key string, value json.RawMessage, effects []cache.AppliedEffect) json.RawMessage {
	for _, effect := range effects {
		next, err := o.registry.Run(effect.Transform, value, effect.Args)
		if err != nil {
			if !apperrors.Is(err, ErrNoView) {
				o.logger.Warn("effect no longer applies to cached view",
					slog.String("key", key),
					slog.String("operation_id", effect.OperationID.String()),
					slog.Any("error", err),
				)
			}
			continue
		}
		value = next
	}
	return value
}

// effectKeys returns the distinct effect keys of op in declaration order.
func effectKeys(op *domain.Operation) []string {
	keys := make([]string, 0, len(op.Effects))
	for _, effect := range op.Effects {
		if !slices.Contains(keys, effect.Key) {
			keys = append(keys, effect.Key)
		}
	}
	return keys
}

// appliedEffects returns op's effects on key as they would be recorded on an entry.
func appliedEffects(op *domain.Operation, key string) []cache.AppliedEffect {
	var effects []cache.AppliedEffect
	for _, effect := range op.Effects {
		if effect.Key == key {
			effects = append(effects, cache.AppliedEffect{
				OperationID: op.ID,
				Transform:   effect.Transform,
				Args:        effect.Args,
			})
		}
	}
	return effects
}

func ownEffects(entry *cache.Entry, op *domain.Operation) []cache.AppliedEffect {
	return slices.DeleteFunc(slices.Clone(entry.Effects), func(effect cache.AppliedEffect) bool {
		return effect.OperationID != op.ID
	})
}

func otherEffects(entry *cache.Entry, op *domain.Operation) []cache.AppliedEffect {
	return slices.DeleteFunc(slices.Clone(entry.Effects), func(effect cache.AppliedEffect) bool {
		return effect.OperationID == op.ID
	})
}
