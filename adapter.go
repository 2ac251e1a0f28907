package optix

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/goliatone/go-optix/internal/record"
)

// Kind classifies how an internal node exposes its children.
type Kind int

const (
	// KindLeaf marks a node with no registered adapter; it is opaque.
	KindLeaf Kind = iota
	// KindSequence marks positional children addressed by index.
	KindSequence
	// KindMapping marks label-keyed children addressed by key.
	KindMapping
	// KindRecord marks named-field children addressed by attribute.
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Decomposition is the flattened form of an internal node: ordered children,
// their labels when the node is keyed, and whatever private data the adapter
// needs to rebuild the node. Rebuild applied to an unmodified Decomposition
// must reproduce an equal node.
type Decomposition struct {
	Children []any
	Labels   []string
	Extra    any
}

// Adapter decomposes nodes of one registered type into children plus
// auxiliary data and rebuilds them. Adapters must be safe for concurrent use
// and must not retain or mutate the decompositions handed back to them.
type Adapter interface {
	Tag() string
	Kind() Kind
	Decompose(node any) (Decomposition, error)
	Rebuild(dec Decomposition) (any, error)
}

// AdapterRegistry resolves node values to adapters. Registration is explicit;
// lookups fall back to the built-in mapping and sequence adapters for map and
// slice kinds so plain JSON-shaped trees work without setup.
type AdapterRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]Adapter
}

// NewAdapterRegistry constructs an empty registry. Built-in map and slice
// handling is always available; only record and custom node types need
// explicit registration.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		byType: make(map[reflect.Type]Adapter),
	}
}

// Register binds adapter to the concrete type of sample, guarding against
// duplicates.
func (r *AdapterRegistry) Register(sample any, adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("optix: adapter for %T is nil", sample)
	}
	t := reflect.TypeOf(sample)
	if t == nil {
		return fmt.Errorf("optix: cannot register adapter for untyped nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byType == nil {
		r.byType = make(map[reflect.Type]Adapter)
	}
	if _, exists := r.byType[t]; exists {
		return fmt.Errorf("optix: adapter for %s already registered", t)
	}
	r.byType[t] = adapter
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *AdapterRegistry) Clone() *AdapterRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &AdapterRegistry{
		byType: make(map[reflect.Type]Adapter, len(r.byType)),
	}
	for t, adapter := range r.byType {
		clone.byType[t] = adapter
	}
	return clone
}

// AdapterFor resolves the adapter responsible for node. A nil result means
// node is a leaf.
func (r *AdapterRegistry) AdapterFor(node any) Adapter {
	if node == nil {
		return nil
	}
	t := reflect.TypeOf(node)
	if r != nil {
		r.mu.RLock()
		adapter := r.byType[t]
		r.mu.RUnlock()
		if adapter != nil {
			return adapter
		}
	}
	switch t.Kind() {
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return builtinMapAdapter
		}
	case reflect.Slice, reflect.Array:
		// []byte payloads stay opaque.
		if t.Elem().Kind() != reflect.Uint8 {
			return builtinSliceAdapter
		}
	}
	return nil
}

// KindOf classifies node through the registry.
func (r *AdapterRegistry) KindOf(node any) Kind {
	if adapter := r.AdapterFor(node); adapter != nil {
		return adapter.Kind()
	}
	return KindLeaf
}

// IsLeaf reports whether node has no adapter and is therefore opaque.
func (r *AdapterRegistry) IsLeaf(node any) bool {
	return r.AdapterFor(node) == nil
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *AdapterRegistry
)

// DefaultAdapterRegistry returns the process-wide registry used by the
// default engine and the package-level kind predicates.
func DefaultAdapterRegistry() *AdapterRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewAdapterRegistry()
	})
	return defaultRegistry
}

// RegisterAdapter binds adapter to sample's type on the default registry.
func RegisterAdapter(sample any, adapter Adapter) error {
	return DefaultAdapterRegistry().Register(sample, adapter)
}

// RecordAdapter builds an adapter for the struct type T exposing its exported
// fields as named children. Register the result before traversing records:
//
//	optix.RegisterAdapter(Server{}, optix.RecordAdapter[Server]())
func RecordAdapter[T any]() Adapter {
	var zero T
	info, err := record.InfoOf(reflect.TypeOf(zero))
	return &recordAdapter{info: info, err: err}
}

type recordAdapter struct {
	info record.Info
	err  error
}

func (a *recordAdapter) Tag() string {
	if a.err != nil {
		return "record(invalid)"
	}
	return "record(" + a.info.Type.String() + ")"
}

func (a *recordAdapter) Kind() Kind { return KindRecord }

func (a *recordAdapter) Decompose(node any) (Decomposition, error) {
	if a.err != nil {
		return Decomposition{}, a.err
	}
	children, err := record.Decompose(a.info, node)
	if err != nil {
		return Decomposition{}, err
	}
	return Decomposition{
		Children: children,
		Labels:   a.info.Fields,
	}, nil
}

func (a *recordAdapter) Rebuild(dec Decomposition) (any, error) {
	if a.err != nil {
		return nil, a.err
	}
	return record.Rebuild(a.info, dec.Children)
}

// builtinMapAdapter flattens any map with string keys. Labels are the keys in
// sorted order so child order is deterministic across applications.
var builtinMapAdapter Adapter = mapAdapter{}

type mapAdapter struct{}

func (mapAdapter) Tag() string { return "mapping" }

func (mapAdapter) Kind() Kind { return KindMapping }

func (mapAdapter) Decompose(node any) (Decomposition, error) {
	v := reflect.ValueOf(node)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return Decomposition{}, fmt.Errorf("optix: mapping adapter cannot decompose %T", node)
	}
	labels := make([]string, 0, v.Len())
	for _, key := range v.MapKeys() {
		labels = append(labels, key.String())
	}
	sort.Strings(labels)
	children := make([]any, len(labels))
	for i, label := range labels {
		children[i] = v.MapIndex(reflect.ValueOf(label).Convert(v.Type().Key())).Interface()
	}
	return Decomposition{
		Children: children,
		Labels:   labels,
		Extra:    v.Type(),
	}, nil
}

func (mapAdapter) Rebuild(dec Decomposition) (any, error) {
	t, ok := dec.Extra.(reflect.Type)
	if !ok {
		return nil, fmt.Errorf("optix: mapping rebuild missing type information")
	}
	if len(dec.Children) != len(dec.Labels) {
		return nil, fmt.Errorf("optix: mapping rebuild has %d children for %d labels", len(dec.Children), len(dec.Labels))
	}
	out := reflect.MakeMapWithSize(t, len(dec.Children))
	elem := t.Elem()
	for i, label := range dec.Labels {
		value, err := coerce(dec.Children[i], elem)
		if err != nil {
			return nil, fmt.Errorf("optix: mapping rebuild at key %q: %w", label, err)
		}
		out.SetMapIndex(reflect.ValueOf(label).Convert(t.Key()), value)
	}
	return out.Interface(), nil
}

// builtinSliceAdapter flattens slices and arrays positionally.
var builtinSliceAdapter Adapter = sliceAdapter{}

type sliceAdapter struct{}

func (sliceAdapter) Tag() string { return "sequence" }

func (sliceAdapter) Kind() Kind { return KindSequence }

func (sliceAdapter) Decompose(node any) (Decomposition, error) {
	v := reflect.ValueOf(node)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return Decomposition{}, fmt.Errorf("optix: sequence adapter cannot decompose %T", node)
	}
	children := make([]any, v.Len())
	for i := range children {
		children[i] = v.Index(i).Interface()
	}
	return Decomposition{
		Children: children,
		Extra:    v.Type(),
	}, nil
}

func (sliceAdapter) Rebuild(dec Decomposition) (any, error) {
	t, ok := dec.Extra.(reflect.Type)
	if !ok {
		return nil, fmt.Errorf("optix: sequence rebuild missing type information")
	}
	length := len(dec.Children)
	var out reflect.Value
	switch t.Kind() {
	case reflect.Slice:
		out = reflect.MakeSlice(t, length, length)
	case reflect.Array:
		if t.Len() != length {
			return nil, fmt.Errorf("optix: sequence rebuild has %d children for array length %d", length, t.Len())
		}
		out = reflect.New(t).Elem()
	default:
		return nil, fmt.Errorf("optix: sequence rebuild target %s is not a sequence", t)
	}
	elem := t.Elem()
	for i, child := range dec.Children {
		value, err := coerce(child, elem)
		if err != nil {
			return nil, fmt.Errorf("optix: sequence rebuild at index %d: %w", i, err)
		}
		out.Index(i).Set(value)
	}
	return out.Interface(), nil
}

// coerce adapts child to the target element type, refusing silently lossy
// assignments.
func coerce(child any, target reflect.Type) (reflect.Value, error) {
	if child == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", target)
	}
	v := reflect.ValueOf(child)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) && v.Kind() == target.Kind() {
		return v.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", child, target)
}

// IsMapping reports whether node decomposes as a mapping under the default
// registry.
func IsMapping(node any) bool {
	return DefaultAdapterRegistry().KindOf(node) == KindMapping
}

// IsSequence reports whether node decomposes as a sequence under the default
// registry.
func IsSequence(node any) bool {
	return DefaultAdapterRegistry().KindOf(node) == KindSequence
}

// IsRecord reports whether node decomposes as a record under the default
// registry.
func IsRecord(node any) bool {
	return DefaultAdapterRegistry().KindOf(node) == KindRecord
}

// IsLeaf reports whether node is opaque under the default registry.
func IsLeaf(node any) bool {
	return DefaultAdapterRegistry().IsLeaf(node)
}
