package overlay

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	apperrors "github.com/allisson/invsync/internal/errors"
)

var (
	// ErrNoView indicates the transform needs a cached view that is absent; the effect is skipped.
	ErrNoView = apperrors.New("no cached view")

	// ErrTransformRejected indicates the effect is invalid against the current view.
	ErrTransformRejected = apperrors.Wrap(apperrors.ErrInvalidInput, "transform rejected")

	// ErrUnknownTransform indicates no transform is registered under the requested name.
	ErrUnknownTransform = apperrors.Wrap(apperrors.ErrInvalidInput, "unknown transform")
)

// TransformFunc computes a provisional view from the current one. view is the decoded JSON
// document (nil when absent) and must not be retained.
type TransformFunc func(view any, args json.RawMessage) (any, error)

// Built-in transform names.
const (
	TransformListPrepend  = "list.prepend"
	TransformListRemove   = "list.remove"
	TransformListAdjust   = "list.adjust"
	TransformListMerge    = "list.merge"
	TransformObjectAdjust = "object.adjust"
	TransformObjectMerge  = "object.merge"
)

// Registry maps transform names to implementations.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]TransformFunc
}

// NewRegistry creates a Registry holding the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]TransformFunc)}
	r.Register(TransformListPrepend, listPrepend)
	r.Register(TransformListRemove, listRemove)
	r.Register(TransformListAdjust, listAdjust)
	r.Register(TransformListMerge, listMerge)
	r.Register(TransformObjectAdjust, objectAdjust)
	r.Register(TransformObjectMerge, objectMerge)
	return r
}

// Register adds or replaces a transform.
func (r *Registry) Register(name string, fn TransformFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = fn
}

// Names returns the registered transform names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.transforms))
}

// Run applies the named transform to a JSON view. A nil value means the view is absent.
func (r *Registry) Run(name string, value json.RawMessage, args json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.transforms[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Wrap(ErrUnknownTransform, name)
	}

	var view any
	if len(value) > 0 {
		if err := json.Unmarshal(value, &view); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode cached view")
		}
	}

	next, err := fn(view, args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(next)
}

// selector identifies one element of a list view.
type selector struct {
	ID      any    `json:"id"`
	IDField string `json:"id_field"`
}

func (s selector) field() string {
	if s.IDField == "" {
		return "id"
	}
	return s.IDField
}

func (s selector) matches(element any) bool {
	object, ok := element.(map[string]any)
	if !ok {
		return false
	}
	value, ok := object[s.field()]
	return ok && fmt.Sprint(value) == fmt.Sprint(s.ID)
}

type adjustArgs struct {
	selector
	Field string   `json:"field"`
	Delta float64  `json:"delta"`
	Min   *float64 `json:"min"`
}

type mergeArgs struct {
	selector
	Fields map[string]any `json:"fields"`
}

func decodeArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		return apperrors.Wrap(ErrTransformRejected, "missing arguments")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return apperrors.Wrap(ErrTransformRejected, err.Error())
	}
	return nil
}

func asList(view any) ([]any, error) {
	if view == nil {
		return nil, ErrNoView
	}
	list, ok := view.([]any)
	if !ok {
		return nil, apperrors.Wrap(ErrTransformRejected, "cached view is not a list")
	}
	return list, nil
}

func asObject(view any) (map[string]any, error) {
	if view == nil {
		return nil, ErrNoView
	}
	object, ok := view.(map[string]any)
	if !ok {
		return nil, apperrors.Wrap(ErrTransformRejected, "cached view is not an object")
	}
	return object, nil
}

// listPrepend inserts args as the first element; an absent view becomes a one-element list.
func listPrepend(view any, args json.RawMessage) (any, error) {
	var item any
	if err := decodeArgs(args, &item); err != nil {
		return nil, err
	}
	if view == nil {
		return []any{item}, nil
	}
	list, err := asList(view)
	if err != nil {
		return nil, err
	}
	return append([]any{item}, list...), nil
}

func listRemove(view any, args json.RawMessage) (any, error) {
	var sel selector
	if err := decodeArgs(args, &sel); err != nil {
		return nil, err
	}
	list, err := asList(view)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(list, sel.matches), nil
}

func listAdjust(view any, args json.RawMessage) (any, error) {
	var adjust adjustArgs
	if err := decodeArgs(args, &adjust); err != nil {
		return nil, err
	}
	list, err := asList(view)
	if err != nil {
		return nil, err
	}
	index := slices.IndexFunc(list, adjust.matches)
	if index < 0 {
		return nil, ErrNoView
	}
	object := list[index].(map[string]any)
	if err := adjustField(object, adjust); err != nil {
		return nil, err
	}
	return list, nil
}

func listMerge(view any, args json.RawMessage) (any, error) {
	var merge mergeArgs
	if err := decodeArgs(args, &merge); err != nil {
		return nil, err
	}
	list, err := asList(view)
	if err != nil {
		return nil, err
	}
	index := slices.IndexFunc(list, merge.matches)
	if index < 0 {
		return nil, ErrNoView
	}
	maps.Copy(list[index].(map[string]any), merge.Fields)
	return list, nil
}

func objectAdjust(view any, args json.RawMessage) (any, error) {
	var adjust adjustArgs
	if err := decodeArgs(args, &adjust); err != nil {
		return nil, err
	}
	object, err := asObject(view)
	if err != nil {
		return nil, err
	}
	if err := adjustField(object, adjust); err != nil {
		return nil, err
	}
	return object, nil
}

func objectMerge(view any, args json.RawMessage) (any, error) {
	var merge mergeArgs
	if err := decodeArgs(args, &merge); err != nil {
		return nil, err
	}
	object, err := asObject(view)
	if err != nil {
		return nil, err
	}
	maps.Copy(object, merge.Fields)
	return object, nil
}

// adjustField adds adjust.Delta to a numeric field, refusing results below the minimum (0 by default).
func adjustField(object map[string]any, adjust adjustArgs) error {
	if adjust.Field == "" {
		return apperrors.Wrap(ErrTransformRejected, "field is required")
	}
	current, ok := object[adjust.Field].(float64)
	if !ok {
		return apperrors.Wrapf(ErrTransformRejected, "field %q is not numeric", adjust.Field)
	}

	minimum := 0.0
	if adjust.Min != nil {
		minimum = *adjust.Min
	}

	next := current + adjust.Delta
	if next < minimum {
		return apperrors.Wrapf(ErrTransformRejected, "%s would drop to %v, below %v", adjust.Field, next, minimum)
	}
	object[adjust.Field] = next
	return nil
}
