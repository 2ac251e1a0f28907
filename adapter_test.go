package optix

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"
)

type server struct {
	Host string
	Port int
}

func serverRegistry(t *testing.T) *AdapterRegistry {
	t.Helper()
	registry := NewAdapterRegistry()
	if err := registry.Register(server{}, RecordAdapter[server]()); err != nil {
		t.Fatalf("unexpected error registering record adapter: %v", err)
	}
	return registry
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	registry := serverRegistry(t)
	if err := registry.Register(server{}, RecordAdapter[server]()); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register(server{}, nil); err == nil {
		t.Fatalf("expected nil adapter registration to fail")
	}
	if err := registry.Register(nil, RecordAdapter[server]()); err == nil {
		t.Fatalf("expected untyped nil sample to fail")
	}
}

func TestCloneIsolatesLaterRegistrations(t *testing.T) {
	registry := NewAdapterRegistry()
	clone := registry.Clone()
	if err := registry.Register(server{}, RecordAdapter[server]()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clone.AdapterFor(server{}) != nil {
		t.Fatalf("expected clone to be isolated from later registrations")
	}
}

func TestBuiltinAdaptersClassifyNodes(t *testing.T) {
	registry := NewAdapterRegistry()
	cases := []struct {
		node any
		kind Kind
	}{
		{map[string]any{"a": 1}, KindMapping},
		{map[string]int{"a": 1}, KindMapping},
		{[]any{1, 2}, KindSequence},
		{[3]int{1, 2, 3}, KindSequence},
		{[]byte("opaque"), KindLeaf},
		{map[int]any{1: "x"}, KindLeaf},
		{"scalar", KindLeaf},
		{42, KindLeaf},
		{nil, KindLeaf},
	}
	for _, tc := range cases {
		if got := registry.KindOf(tc.node); got != tc.kind {
			t.Fatalf("expected %T to classify as %s, got %s", tc.node, tc.kind, got)
		}
	}
}

func TestMappingDecomposeSortsLabels(t *testing.T) {
	dec, err := builtinMapAdapter.Decompose(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sort.StringsAreSorted(dec.Labels) {
		t.Fatalf("expected sorted labels, got %v", dec.Labels)
	}
	if !reflect.DeepEqual(dec.Labels, []string{"alpha", "mid", "zeta"}) {
		t.Fatalf("unexpected labels: %v", dec.Labels)
	}
	if !reflect.DeepEqual(dec.Children, []any{2, 3, 1}) {
		t.Fatalf("expected children aligned with sorted labels, got %v", dec.Children)
	}
}

func TestMappingRoundTripPreservesValueType(t *testing.T) {
	original := map[string]int{"a": 1, "b": 2}
	dec, err := builtinMapAdapter.Decompose(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rebuilt, err := builtinMapAdapter.Rebuild(dec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(rebuilt, original) {
		t.Fatalf("expected %v, got %v", original, rebuilt)
	}
	if _, ok := rebuilt.(map[string]int); !ok {
		t.Fatalf("expected rebuild to keep the concrete map type, got %T", rebuilt)
	}
}

func TestSequenceRoundTripPreservesElementType(t *testing.T) {
	original := []int{1, 2, 3}
	dec, err := builtinSliceAdapter.Decompose(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rebuilt, err := builtinSliceAdapter.Rebuild(dec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(rebuilt, original) {
		t.Fatalf("expected %v, got %v", original, rebuilt)
	}
	if _, ok := rebuilt.([]int); !ok {
		t.Fatalf("expected rebuild to keep the concrete slice type, got %T", rebuilt)
	}
}

func TestSequenceRebuildRejectsIncompatibleElements(t *testing.T) {
	dec, err := builtinSliceAdapter.Decompose([]int{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dec.Children[0] = "not an int"
	if _, err := builtinSliceAdapter.Rebuild(dec); err == nil {
		t.Fatalf("expected rebuild to reject an incompatible element")
	}
}

func TestRecordAdapterFieldAccess(t *testing.T) {
	engine := NewEngine(WithAdapterRegistry(serverRegistry(t)))
	tree := map[string]any{"server": server{Host: "localhost", Port: 8080}}
	lens := Compose(Key("server"), Attr("Port"))

	value, err := engine.View(lens, tree)
	if err != nil {
		t.Fatalf("unexpected error from View: %v", err)
	}
	if value != 8080 {
		t.Fatalf("expected port 8080, got %v", value)
	}

	updated, err := engine.Set(lens, tree, 9090)
	if err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}
	got := updated.(map[string]any)["server"].(server)
	if got.Port != 9090 || got.Host != "localhost" {
		t.Fatalf("expected only Port to change, got %+v", got)
	}

	if _, err := engine.View(Compose(Key("server"), Attr("Missing")), tree); !IsMissingFocus(err) {
		t.Fatalf("expected MissingFocusError for unknown field, got %v", err)
	}
}

func TestRecordAdapterRejectsUnexportedFields(t *testing.T) {
	type hidden struct {
		Visible int
		secret  int
	}
	adapter := RecordAdapter[hidden]()
	if _, err := adapter.Decompose(hidden{Visible: 1}); err == nil {
		t.Fatalf("expected decompose to reject a struct with unexported fields")
	}
}

func TestContractChecksCatchBrokenAdapters(t *testing.T) {
	registry := NewAdapterRegistry()
	if err := registry.Register(brokenNode{}, brokenAdapter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine := NewEngine(WithAdapterRegistry(registry), WithContractChecks(true))
	tree := map[string]any{"node": brokenNode{Value: 1}}

	_, err := engine.View(Compose(Key("node"), Attr("Value")), tree)
	var contract *AdapterContractError
	if !errors.As(err, &contract) {
		t.Fatalf("expected AdapterContractError, got %v", err)
	}

	// The same adapter passes without contract checks since decompose alone
	// still works.
	relaxed := NewEngine(WithAdapterRegistry(registry))
	if _, err := relaxed.View(Compose(Key("node"), Attr("Value")), tree); err != nil {
		t.Fatalf("unexpected error without contract checks: %v", err)
	}
}

type brokenNode struct {
	Value int
}

// brokenAdapter drops the value on rebuild, violating the round-trip
// contract.
type brokenAdapter struct{}

func (brokenAdapter) Tag() string { return "broken" }

func (brokenAdapter) Kind() Kind { return KindRecord }

func (brokenAdapter) Decompose(node any) (Decomposition, error) {
	n, ok := node.(brokenNode)
	if !ok {
		return Decomposition{}, fmt.Errorf("not a brokenNode: %T", node)
	}
	return Decomposition{Children: []any{n.Value}, Labels: []string{"Value"}}, nil
}

func (brokenAdapter) Rebuild(Decomposition) (any, error) {
	return brokenNode{}, nil
}
