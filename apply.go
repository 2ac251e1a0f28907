package optix

import (
	"fmt"
	"reflect"
	"time"

	"github.com/goliatone/go-optix/pkg/observe"
)

// frame is the reinsert record captured for one resolved path step: enough
// state to place a replacement child back into its parent without touching
// siblings.
type frame struct {
	adapter Adapter
	dec     Decomposition
	child   int
}

// resolution is the outcome of walking a predicate-free path.
type resolution struct {
	frames  []frame
	focus   any
	found   bool
	absent  Accessor
	viaPlan bool
}

// View extracts the single focus of o from tree. The optic must focus
// exactly one value; an absent focus is a MissingFocusError regardless of
// arity, so Prism callers should prefer ViewOption.
func (e *Engine) View(o Optic, tree any) (any, error) {
	started := time.Now()
	value, stats, err := e.viewSingle(o, tree)
	e.finish("view", o, started, stats, err)
	return value, err
}

// ViewOption extracts the focus of o from tree when present. Absence is not
// an error for Prism and Traversal optics; a Lens still fails on absence.
func (e *Engine) ViewOption(o Optic, tree any) (any, bool, error) {
	started := time.Now()
	value, ok, stats, err := e.viewOption(o, tree)
	e.finish("view", o, started, stats, err)
	return value, ok, err
}

// ViewAll extracts every focus of o from tree in the adapters' child order.
// Works for any arity; a Lens yields exactly one element or fails.
func (e *Engine) ViewAll(o Optic, tree any) ([]any, error) {
	started := time.Now()
	values, stats, err := e.viewAll(o, tree)
	e.finish("view", o, started, stats, err)
	return values, err
}

// Set replaces every focus of o in tree with value, returning a new root
// that shares all off-path subtrees with the input.
func (e *Engine) Set(o Optic, tree any, value any) (any, error) {
	started := time.Now()
	out, stats, err := e.apply(o, tree, func(any) any { return value })
	e.finish("set", o, started, stats, err)
	return out, err
}

// Over applies fn to every current focus of o in tree, returning a new root
// with the transformed values in place.
func (e *Engine) Over(o Optic, tree any, fn func(any) any) (any, error) {
	if fn == nil {
		return nil, fmt.Errorf("optix: over requires a transform function")
	}
	started := time.Now()
	out, stats, err := e.apply(o, tree, fn)
	e.finish("over", o, started, stats, err)
	return out, err
}

type applyStats struct {
	planID   string
	cacheHit bool
	foci     int
}

func (e *Engine) viewSingle(o Optic, tree any) (any, applyStats, error) {
	if o.arity == ArityTraversal {
		return nil, applyStats{}, fmt.Errorf("optix: view requires a single-focus optic, %s is a traversal (use ViewAll)", o.path)
	}
	res, stats, err := e.resolveCached(o.path, tree)
	if err != nil {
		return nil, stats, err
	}
	if !res.found {
		return nil, stats, missingFocus(o.path, res.absent, KindLeaf)
	}
	stats.foci = 1
	return res.focus, stats, nil
}

func (e *Engine) viewOption(o Optic, tree any) (any, bool, applyStats, error) {
	if o.arity == ArityTraversal {
		return nil, false, applyStats{}, fmt.Errorf("optix: view option requires a single-focus optic, %s is a traversal (use ViewAll)", o.path)
	}
	res, stats, err := e.resolveCached(o.path, tree)
	if err != nil {
		return nil, false, stats, err
	}
	if !res.found {
		if o.arity == ArityLens {
			return nil, false, stats, missingFocus(o.path, res.absent, KindLeaf)
		}
		return nil, false, stats, nil
	}
	stats.foci = 1
	return res.focus, true, stats, nil
}

func (e *Engine) viewAll(o Optic, tree any) ([]any, applyStats, error) {
	if !o.path.hasPredicate() {
		res, stats, err := e.resolveCached(o.path, tree)
		if err != nil {
			return nil, stats, err
		}
		if !res.found {
			if o.arity == ArityLens {
				return nil, stats, missingFocus(o.path, res.absent, KindLeaf)
			}
			return []any{}, stats, nil
		}
		stats.foci = 1
		return []any{res.focus}, stats, nil
	}

	matchers, err := e.compileMatchers(o.path)
	if err != nil {
		return nil, applyStats{}, err
	}
	var values []any
	collect := func(focus any) any {
		values = append(values, focus)
		return focus
	}
	walker := &treeWalker{engine: e, path: o.path, matchers: matchers, readOnly: true}
	_, foci, err := walker.update(tree, 0, collect)
	if err != nil {
		return nil, applyStats{}, err
	}
	if values == nil {
		values = []any{}
	}
	return values, applyStats{foci: foci}, nil
}

func (e *Engine) apply(o Optic, tree any, fn func(any) any) (any, applyStats, error) {
	if !o.path.hasPredicate() {
		res, stats, err := e.resolveCached(o.path, tree)
		if err != nil {
			return nil, stats, err
		}
		if !res.found {
			if o.arity == ArityLens {
				return nil, stats, missingFocus(o.path, res.absent, KindLeaf)
			}
			// No match: the input tree is returned structurally unchanged.
			return tree, stats, nil
		}
		out, err := e.reinsert(o.path, res.frames, fn(res.focus))
		if err != nil {
			return nil, stats, err
		}
		stats.foci = 1
		return out, stats, nil
	}

	matchers, err := e.compileMatchers(o.path)
	if err != nil {
		return nil, applyStats{}, err
	}
	walker := &treeWalker{engine: e, path: o.path, matchers: matchers}
	out, foci, err := walker.update(tree, 0, fn)
	if err != nil {
		return nil, applyStats{}, err
	}
	if foci == 0 {
		return tree, applyStats{}, nil
	}
	return out, applyStats{foci: foci}, nil
}

// resolveCached resolves a predicate-free path, consulting the plan cache
// first. A fingerprint mismatch falls back to a fresh resolution and
// replaces the stale entry; cache state never changes the outcome.
func (e *Engine) resolveCached(path Path, tree any) (resolution, applyStats, error) {
	cache := e.planCache()
	if cache == nil || path.hasPredicate() {
		res, plan, err := e.resolveSingle(path, tree, nil)
		stats := applyStats{}
		if plan != nil {
			stats.planID = plan.id
		}
		return res, stats, err
	}

	key := path.cacheKey()
	var cached *rebuildPlan
	if entry, ok := cache.Get(key); ok {
		cached, _ = entry.(*rebuildPlan)
	}
	res, plan, err := e.resolveSingle(path, tree, cached)
	if err != nil {
		return res, applyStats{}, err
	}
	stats := applyStats{cacheHit: res.viaPlan}
	if res.viaPlan {
		stats.planID = cached.id
		return res, stats, nil
	}
	if plan != nil {
		cache.Set(key, plan)
		stats.planID = plan.id
	}
	return res, stats, nil
}

// resolveSingle walks a predicate-free path from the root, capturing one
// reinsert frame per step. When plan is non-nil its steps are reused as long
// as the partial shape fingerprint still matches; any divergence restarts
// the walk without the plan. On success with no plan in use, a fresh plan is
// derived from the walk.
func (e *Engine) resolveSingle(path Path, tree any, plan *rebuildPlan) (resolution, *rebuildPlan, error) {
	if plan != nil && len(plan.steps) != len(path) {
		plan = nil
	}
	registry := e.adapterRegistry()
	frames := make([]frame, 0, len(path))
	cur := tree

	if plan != nil {
		for _, step := range plan.steps {
			dec, err := step.adapter.Decompose(cur)
			if err != nil || !step.matches(dec) {
				return e.resolveSingle(path, tree, nil)
			}
			frames = append(frames, frame{adapter: step.adapter, dec: dec, child: step.child})
			cur = dec.Children[step.child]
		}
		return resolution{frames: frames, focus: cur, found: true, viaPlan: true}, plan, nil
	}

	steps := make([]planStep, 0, len(path))
	for _, step := range path {
		adapter := registry.AdapterFor(cur)
		want := wantKind(step)
		if adapter == nil {
			return resolution{}, nil, typeMismatch(path, step, KindLeaf, want)
		}
		if adapter.Kind() != want {
			return resolution{}, nil, typeMismatch(path, step, adapter.Kind(), want)
		}
		dec, err := adapter.Decompose(cur)
		if err != nil {
			return resolution{}, nil, &AdapterContractError{Tag: adapter.Tag(), Err: err}
		}
		if e.cfg.contractChecks {
			if err := verifyContract(adapter, cur, dec); err != nil {
				return resolution{}, nil, err
			}
		}
		idx, ok := locateChild(dec, step)
		if !ok {
			return resolution{absent: step}, nil, nil
		}
		frames = append(frames, frame{adapter: adapter, dec: dec, child: idx})
		steps = append(steps, planStep{
			adapter:    adapter,
			child:      idx,
			childCount: len(dec.Children),
			auxSum:     auxChecksum(dec),
		})
		cur = dec.Children[idx]
	}
	return resolution{frames: frames, focus: cur, found: true}, newRebuildPlan(steps), nil
}

// reinsert unwinds the frame stack bottom-up, rebuilding exactly the
// ancestors on the path with the new focus in place.
func (e *Engine) reinsert(path Path, frames []frame, focus any) (any, error) {
	cur := focus
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		children := make([]any, len(fr.dec.Children))
		copy(children, fr.dec.Children)
		children[fr.child] = cur
		rebuilt, err := fr.adapter.Rebuild(Decomposition{
			Children: children,
			Labels:   fr.dec.Labels,
			Extra:    fr.dec.Extra,
		})
		if err != nil {
			return nil, wrapApplyError("rebuild", path, err)
		}
		cur = rebuilt
	}
	return cur, nil
}

// wantKind maps a single-focus accessor onto the node kind it requires.
func wantKind(step Accessor) Kind {
	switch step.kind {
	case AccessorIndex:
		return KindSequence
	case AccessorKey:
		return KindMapping
	case AccessorAttr:
		return KindRecord
	default:
		return KindLeaf
	}
}

// locateChild resolves a single-focus accessor against a decomposition.
// ok=false means the child is absent, which Lens callers surface as
// MissingFocus and Prism/Traversal callers treat as no-match.
func locateChild(dec Decomposition, step Accessor) (int, bool) {
	switch step.kind {
	case AccessorIndex:
		if step.index < 0 || step.index >= len(dec.Children) {
			return 0, false
		}
		return step.index, true
	case AccessorKey, AccessorAttr:
		for i, label := range dec.Labels {
			if label == step.name {
				return i, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func verifyContract(adapter Adapter, node any, dec Decomposition) error {
	rebuilt, err := adapter.Rebuild(dec)
	if err != nil {
		return &AdapterContractError{Tag: adapter.Tag(), Err: err}
	}
	if !reflect.DeepEqual(rebuilt, node) {
		return &AdapterContractError{Tag: adapter.Tag()}
	}
	return nil
}

// matcher evaluates one predicate step against a candidate child.
type matcher func(ctx PredicateContext) (bool, error)

// compileMatchers prepares one matcher per predicate step, compiling
// expression-backed predicates through the engine's evaluator once per
// application.
func (e *Engine) compileMatchers(path Path) (map[int]matcher, error) {
	matchers := make(map[int]matcher)
	for i, step := range path {
		if step.kind != AccessorPredicate {
			continue
		}
		if step.pred != nil {
			pred := step.pred
			matchers[i] = func(ctx PredicateContext) (bool, error) {
				return pred(ctx.Node), nil
			}
			continue
		}
		compiled, err := e.predicateEvaluator().Compile(step.expr)
		if err != nil {
			return nil, wrapApplyError("compile", path, err)
		}
		matchers[i] = compiled.Match
	}
	return matchers, nil
}

// treeWalker performs the recursive single-pass walk for paths containing
// predicate steps. update returns the (possibly rebuilt) node together with
// the number of foci touched beneath it; zero foci means the original node
// is returned untouched so every unmatched branch stays structurally
// shared.
type treeWalker struct {
	engine   *Engine
	path     Path
	matchers map[int]matcher
	readOnly bool
}

func (w *treeWalker) update(node any, depth int, fn func(any) any) (any, int, error) {
	if depth == len(w.path) {
		return fn(node), 1, nil
	}
	step := w.path[depth]
	registry := w.engine.adapterRegistry()
	adapter := registry.AdapterFor(node)

	if step.kind == AccessorPredicate {
		if adapter == nil {
			// A leaf has no children for the predicate to match.
			return node, 0, nil
		}
		dec, err := adapter.Decompose(node)
		if err != nil {
			return nil, 0, &AdapterContractError{Tag: adapter.Tag(), Err: err}
		}
		match := w.matchers[depth]
		var children []any
		total := 0
		for i, child := range dec.Children {
			ok, err := match(PredicateContext{
				Node:     child,
				Index:    i,
				Label:    childLabel(dec, i),
				Kind:     registry.KindOf(child).String(),
				Metadata: w.engine.cfg.metadata,
			})
			if err != nil {
				return nil, 0, wrapApplyError("predicate", w.path, err)
			}
			if !ok {
				continue
			}
			updated, n, err := w.update(child, depth+1, fn)
			if err != nil {
				return nil, 0, err
			}
			total += n
			if n == 0 || w.readOnly {
				continue
			}
			if children == nil {
				children = make([]any, len(dec.Children))
				copy(children, dec.Children)
			}
			children[i] = updated
		}
		if children == nil {
			return node, total, nil
		}
		rebuilt, err := adapter.Rebuild(Decomposition{Children: children, Labels: dec.Labels, Extra: dec.Extra})
		if err != nil {
			return nil, 0, wrapApplyError("rebuild", w.path, err)
		}
		return rebuilt, total, nil
	}

	want := wantKind(step)
	if adapter == nil {
		return nil, 0, typeMismatch(w.path, step, KindLeaf, want)
	}
	if adapter.Kind() != want {
		return nil, 0, typeMismatch(w.path, step, adapter.Kind(), want)
	}
	dec, err := adapter.Decompose(node)
	if err != nil {
		return nil, 0, &AdapterContractError{Tag: adapter.Tag(), Err: err}
	}
	idx, ok := locateChild(dec, step)
	if !ok {
		// Beneath a predicate step absence is no-match, never fatal.
		return node, 0, nil
	}
	updated, n, err := w.update(dec.Children[idx], depth+1, fn)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 || w.readOnly {
		return node, n, nil
	}
	children := make([]any, len(dec.Children))
	copy(children, dec.Children)
	children[idx] = updated
	rebuilt, err := adapter.Rebuild(Decomposition{Children: children, Labels: dec.Labels, Extra: dec.Extra})
	if err != nil {
		return nil, 0, wrapApplyError("rebuild", w.path, err)
	}
	return rebuilt, n, nil
}

func childLabel(dec Decomposition, i int) string {
	if i < len(dec.Labels) {
		return dec.Labels[i]
	}
	return ""
}

// finish emits the apply log event and fans out to observer hooks.
func (e *Engine) finish(op string, o Optic, started time.Time, stats applyStats, err error) {
	duration := time.Since(started)
	e.applyLogger().LogApply(ApplyLogEvent{
		Op:       op,
		Path:     o.path.String(),
		Arity:    o.arity.String(),
		PlanID:   stats.planID,
		CacheHit: stats.cacheHit,
		Foci:     stats.foci,
		Duration: duration,
		Err:      err,
	})
	if e.cfg.hooks.Enabled() {
		_ = e.cfg.hooks.Notify(observe.Event{
			Op:       op,
			Path:     o.path.String(),
			PlanID:   stats.planID,
			CacheHit: stats.cacheHit,
			Foci:     stats.foci,
			Duration: duration,
			Err:      err,
		})
	}
}
