package optix

// LeafEntry is one root-to-leaf location in a tree.
type LeafEntry struct {
	Path  Path
	Value any
}

// Paths enumerates every leaf of tree on the default engine.
func Paths(tree any) ([]LeafEntry, error) {
	return Default().Paths(tree)
}

// Paths enumerates every root-to-leaf path of tree in depth-first order.
// Sequence steps are indexed, mapping and record steps are labeled. A
// leaf root yields a single entry with an empty path.
func (e *Engine) Paths(tree any) ([]LeafEntry, error) {
	var entries []LeafEntry
	err := e.walkLeaves(tree, nil, func(path Path, value any) {
		entries = append(entries, LeafEntry{Path: path, Value: value})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (e *Engine) walkLeaves(node any, prefix Path, visit func(Path, any)) error {
	registry := e.adapterRegistry()
	adapter := registry.AdapterFor(node)
	if adapter == nil {
		visit(clonePath(prefix), node)
		return nil
	}
	dec, err := adapter.Decompose(node)
	if err != nil {
		return &AdapterContractError{Tag: adapter.Tag(), Err: err}
	}
	if len(dec.Children) == 0 {
		visit(clonePath(prefix), node)
		return nil
	}
	for i, child := range dec.Children {
		var step Accessor
		switch adapter.Kind() {
		case KindSequence:
			step = indexAccessor(i)
		case KindRecord:
			step = attrAccessor(dec.Labels[i])
		default:
			step = keyAccessor(dec.Labels[i])
		}
		if err := e.walkLeaves(child, append(prefix, step), visit); err != nil {
			return err
		}
	}
	return nil
}

func clonePath(p Path) Path {
	if len(p) == 0 {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}
