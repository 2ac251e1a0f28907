package optix

import (
	"encoding/json"
	"fmt"
)

// Trace captures provenance information for a single-focus resolution: how
// each path step landed on a child of the node it was applied to.
type Trace struct {
	Path  string       `json:"path"`
	Found bool         `json:"found"`
	Value any          `json:"value,omitempty"`
	Steps []Provenance `json:"steps"`
}

// Provenance details how a specific step resolved against its node.
type Provenance struct {
	Step       string `json:"step"`
	NodeTag    string `json:"node_tag"`
	NodeKind   string `json:"node_kind"`
	ChildIndex int    `json:"child_index"`
	ChildCount int    `json:"child_count"`
	Label      string `json:"label,omitempty"`
	Found      bool   `json:"found"`
}

// Explain resolves a single-focus optic against tree and reports the
// step-by-step provenance. An absent focus is recorded in the trace rather
// than returned as an error; type mismatches remain fatal.
func (e *Engine) Explain(o Optic, tree any) (Trace, error) {
	trace := Trace{Path: o.path.String()}
	if o.path.hasPredicate() {
		return trace, fmt.Errorf("optix: explain supports single-focus optics, %s contains a predicate step", o.path)
	}
	registry := e.adapterRegistry()
	cur := tree
	for _, step := range o.path {
		adapter := registry.AdapterFor(cur)
		want := wantKind(step)
		if adapter == nil {
			trace.Steps = append(trace.Steps, Provenance{Step: step.String(), NodeKind: KindLeaf.String()})
			return trace, typeMismatch(o.path, step, KindLeaf, want)
		}
		if adapter.Kind() != want {
			trace.Steps = append(trace.Steps, Provenance{Step: step.String(), NodeTag: adapter.Tag(), NodeKind: adapter.Kind().String()})
			return trace, typeMismatch(o.path, step, adapter.Kind(), want)
		}
		dec, err := adapter.Decompose(cur)
		if err != nil {
			return trace, &AdapterContractError{Tag: adapter.Tag(), Err: err}
		}
		entry := Provenance{
			Step:       step.String(),
			NodeTag:    adapter.Tag(),
			NodeKind:   adapter.Kind().String(),
			ChildCount: len(dec.Children),
		}
		idx, ok := locateChild(dec, step)
		if !ok {
			trace.Steps = append(trace.Steps, entry)
			return trace, nil
		}
		entry.ChildIndex = idx
		entry.Label = childLabel(dec, idx)
		entry.Found = true
		trace.Steps = append(trace.Steps, entry)
		cur = dec.Children[idx]
	}
	trace.Found = true
	trace.Value = cur
	return trace, nil
}

// Explain resolves o against tree using the default engine.
func Explain(o Optic, tree any) (Trace, error) {
	return Default().Explain(o, tree)
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated
// via ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
