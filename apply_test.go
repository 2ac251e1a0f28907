package optix

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func sampleTree() map[string]any {
	return map[string]any{
		"a": []any{1, 2, map[string]any{"b": 3}},
		"c": map[string]any{"keep": true},
	}
}

func TestViewNestedFocus(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(2), Key("b"))

	value, err := View(lens, tree)
	if err != nil {
		t.Fatalf("unexpected error from View: %v", err)
	}
	if value != 3 {
		t.Fatalf("expected focus 3, got %v", value)
	}
}

func TestSetReturnsNewRoot(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(2), Key("b"))

	updated, err := Set(lens, tree, 9)
	if err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}

	got, err := View(lens, updated)
	if err != nil {
		t.Fatalf("unexpected error viewing updated tree: %v", err)
	}
	if got != 9 {
		t.Fatalf("expected updated focus 9, got %v", got)
	}

	// The input tree is never mutated.
	if tree["a"].([]any)[2].(map[string]any)["b"] != 3 {
		t.Fatalf("expected original tree to keep focus 3, got %v", tree)
	}
}

func TestSetSharesOffPathSubtrees(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(2), Key("b"))

	updated, err := Set(lens, tree, 9)
	if err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}

	original := reflect.ValueOf(tree["c"]).Pointer()
	shared := reflect.ValueOf(updated.(map[string]any)["c"]).Pointer()
	if original != shared {
		t.Fatalf("expected off-path subtree to be shared by reference")
	}
}

func TestOverAppliesTransform(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(0))

	updated, err := Over(lens, tree, func(v any) any { return v.(int) + 10 })
	if err != nil {
		t.Fatalf("unexpected error from Over: %v", err)
	}
	if got := updated.(map[string]any)["a"].([]any)[0]; got != 11 {
		t.Fatalf("expected 11, got %v", got)
	}
}

func TestOverRequiresTransform(t *testing.T) {
	if _, err := Over(Key("a"), sampleTree(), nil); err == nil {
		t.Fatalf("expected Over to reject a nil transform")
	}
}

func TestLensMissingFocusIsFatal(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(5))

	if _, err := View(lens, tree); !IsMissingFocus(err) {
		t.Fatalf("expected MissingFocusError, got %v", err)
	}
	if _, err := Set(lens, tree, 0); !IsMissingFocus(err) {
		t.Fatalf("expected MissingFocusError from Set, got %v", err)
	}

	var miss *MissingFocusError
	_, err := View(Compose(Key("missing")), tree)
	if !errors.As(err, &miss) {
		t.Fatalf("expected MissingFocusError for absent key, got %v", err)
	}
	if !strings.HasPrefix(miss.Error(), "optix:") {
		t.Fatalf("expected optix-prefixed error, got %q", miss.Error())
	}
}

func TestPrismAbsenceIsNoMatch(t *testing.T) {
	tree := sampleTree()
	prism := Compose(Key("a"), At(5)).AsPrism()

	value, ok, err := ViewOption(prism, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewOption: %v", err)
	}
	if ok || value != nil {
		t.Fatalf("expected absent prism focus, got %v (ok=%v)", value, ok)
	}

	// A no-match set returns the input tree unchanged, by identity.
	updated, err := Set(prism, tree, 99)
	if err != nil {
		t.Fatalf("unexpected error from prism Set: %v", err)
	}
	if reflect.ValueOf(updated).Pointer() != reflect.ValueOf(tree).Pointer() {
		t.Fatalf("expected no-match set to return the same root")
	}
}

func TestPrismPresentFocus(t *testing.T) {
	tree := sampleTree()
	prism := Compose(Key("a"), At(1)).AsPrism()

	value, ok, err := ViewOption(prism, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewOption: %v", err)
	}
	if !ok || value != 2 {
		t.Fatalf("expected focus 2, got %v (ok=%v)", value, ok)
	}
}

func TestViewOptionLensStillFailsOnAbsence(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(5))

	if _, _, err := ViewOption(lens, tree); !IsMissingFocus(err) {
		t.Fatalf("expected MissingFocusError for lens absence, got %v", err)
	}
}

func TestViewRejectsTraversals(t *testing.T) {
	tree := sampleTree()
	traversal := Compose(Key("a"), Where(IsMapping))

	if _, err := View(traversal, tree); err == nil {
		t.Fatalf("expected View to reject a traversal optic")
	}
	if _, _, err := ViewOption(traversal, tree); err == nil {
		t.Fatalf("expected ViewOption to reject a traversal optic")
	}
}

func TestTypeMismatchIsFatalForAllArities(t *testing.T) {
	tree := sampleTree()
	// Indexing into a mapping is a shape error, not absence.
	bad := Compose(At(0))

	if _, err := View(bad, tree); !IsTypeMismatch(err) {
		t.Fatalf("expected TypeMismatchError from View, got %v", err)
	}
	if _, _, err := ViewOption(bad.AsPrism(), tree); !IsTypeMismatch(err) {
		t.Fatalf("expected TypeMismatchError from prism ViewOption, got %v", err)
	}
	if _, err := Set(bad.AsPrism(), tree, 1); !IsTypeMismatch(err) {
		t.Fatalf("expected TypeMismatchError from prism Set, got %v", err)
	}
}

func TestTraversalViewsMatchingChildren(t *testing.T) {
	tree := sampleTree()
	traversal := Compose(Key("a"), Where(IsMapping))

	values, err := ViewAll(traversal, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewAll: %v", err)
	}
	if !reflect.DeepEqual(values, []any{map[string]any{"b": 3}}) {
		t.Fatalf("expected only the mapping child, got %v", values)
	}
}

func TestTraversalSetReplacesEveryFocus(t *testing.T) {
	tree := map[string]any{"rows": []any{1, "skip", 2}}
	traversal := Compose(Key("rows"), Where(func(node any) bool {
		_, ok := node.(int)
		return ok
	}))

	updated, err := Set(traversal, tree, 0)
	if err != nil {
		t.Fatalf("unexpected error from traversal Set: %v", err)
	}
	if !reflect.DeepEqual(updated.(map[string]any)["rows"], []any{0, "skip", 0}) {
		t.Fatalf("expected every matched focus replaced, got %v", updated)
	}
}

func TestTraversalOverEveryMapping(t *testing.T) {
	tree := sampleTree()
	traversal := Compose(Key("a"), Where(IsMapping), Key("b"))

	updated, err := Over(traversal, tree, func(v any) any { return v.(int) * 2 })
	if err != nil {
		t.Fatalf("unexpected error from traversal Over: %v", err)
	}
	if got := updated.(map[string]any)["a"].([]any)[2].(map[string]any)["b"]; got != 6 {
		t.Fatalf("expected doubled focus 6, got %v", got)
	}
	// Non-matching siblings survive untouched.
	if got := updated.(map[string]any)["a"].([]any)[0]; got != 1 {
		t.Fatalf("expected sibling 1 untouched, got %v", got)
	}
}

func TestTraversalViewAllOrder(t *testing.T) {
	tree := map[string]any{
		"rows": []any{
			map[string]any{"qty": 3},
			map[string]any{"qty": 0},
			map[string]any{"qty": 12},
		},
	}
	traversal := Compose(Key("rows"), Where(IsMapping), Key("qty"))

	values, err := ViewAll(traversal, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewAll: %v", err)
	}
	if !reflect.DeepEqual(values, []any{3, 0, 12}) {
		t.Fatalf("expected child-order foci, got %v", values)
	}
}

func TestTraversalNoMatchesReturnsInputRoot(t *testing.T) {
	tree := sampleTree()
	traversal := Compose(Key("a"), Where(func(any) bool { return false }))

	values, err := ViewAll(traversal, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewAll: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected no foci, got %v", values)
	}

	updated, err := Over(traversal, tree, func(v any) any { return nil })
	if err != nil {
		t.Fatalf("unexpected error from Over: %v", err)
	}
	if reflect.ValueOf(updated).Pointer() != reflect.ValueOf(tree).Pointer() {
		t.Fatalf("expected no-match traversal to return the same root")
	}
}

func TestTraversalAbsenceBeneathPredicateIsNoMatch(t *testing.T) {
	tree := map[string]any{
		"rows": []any{
			map[string]any{"qty": 3},
			map[string]any{"name": "no quantity"},
		},
	}
	traversal := Compose(Key("rows"), Where(IsMapping), Key("qty"))

	values, err := ViewAll(traversal, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewAll: %v", err)
	}
	if !reflect.DeepEqual(values, []any{3}) {
		t.Fatalf("expected only the present focus, got %v", values)
	}
}

func TestViewAllOnLensYieldsOneElement(t *testing.T) {
	tree := sampleTree()
	lens := Compose(Key("a"), At(0))

	values, err := ViewAll(lens, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewAll: %v", err)
	}
	if !reflect.DeepEqual(values, []any{1}) {
		t.Fatalf("expected single focus, got %v", values)
	}

	if _, err := ViewAll(Compose(Key("missing")), tree); !IsMissingFocus(err) {
		t.Fatalf("expected lens ViewAll to fail on absence, got %v", err)
	}

	prismValues, err := ViewAll(Compose(Key("missing")).AsPrism(), tree)
	if err != nil {
		t.Fatalf("unexpected error from prism ViewAll: %v", err)
	}
	if len(prismValues) != 0 {
		t.Fatalf("expected empty foci for absent prism, got %v", prismValues)
	}
}

func TestRootOpticFocusesWholeTree(t *testing.T) {
	tree := sampleTree()

	value, err := View(Root(), tree)
	if err != nil {
		t.Fatalf("unexpected error from View: %v", err)
	}
	if !reflect.DeepEqual(value, tree) {
		t.Fatalf("expected the whole tree, got %v", value)
	}

	replaced, err := Set(Root(), tree, "gone")
	if err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}
	if replaced != "gone" {
		t.Fatalf("expected the root replacement, got %v", replaced)
	}
}

func TestNestedTraversals(t *testing.T) {
	tree := map[string]any{
		"groups": []any{
			map[string]any{"items": []any{1, 2}},
			map[string]any{"items": []any{3}},
		},
	}
	traversal := Compose(
		Key("groups"),
		Where(IsMapping),
		Key("items"),
		Where(IsLeaf),
	)

	values, err := ViewAll(traversal, tree)
	if err != nil {
		t.Fatalf("unexpected error from ViewAll: %v", err)
	}
	if !reflect.DeepEqual(values, []any{1, 2, 3}) {
		t.Fatalf("expected depth-first foci, got %v", values)
	}

	updated, err := Over(traversal, tree, func(v any) any { return v.(int) * 10 })
	if err != nil {
		t.Fatalf("unexpected error from Over: %v", err)
	}
	first := updated.(map[string]any)["groups"].([]any)[0].(map[string]any)["items"].([]any)
	if !reflect.DeepEqual(first, []any{10, 20}) {
		t.Fatalf("expected scaled items, got %v", first)
	}
}

func TestApplyLoggerReceivesEvents(t *testing.T) {
	var events []ApplyLogEvent
	engine := NewEngine(WithApplyLogger(ApplyLoggerFunc(func(event ApplyLogEvent) {
		events = append(events, event)
	})))

	lens := Compose(Key("a"), At(0))
	if _, err := engine.View(lens, sampleTree()); err != nil {
		t.Fatalf("unexpected error from View: %v", err)
	}
	if _, err := engine.Set(lens, sampleTree(), 7); err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 log events, got %d", len(events))
	}
	if events[0].Op != "view" || events[1].Op != "set" {
		t.Fatalf("unexpected ops: %q, %q", events[0].Op, events[1].Op)
	}
	if events[0].Path != lens.String() {
		t.Fatalf("expected path %q, got %q", lens.String(), events[0].Path)
	}
	if events[0].Foci != 1 {
		t.Fatalf("expected one focus in log event, got %d", events[0].Foci)
	}
}
