package optix

import "sync"

// Engine applies optics to trees. The zero configuration is fully usable:
// the default adapter registry, a bounded LRU plan cache, and the expr
// predicate evaluator. Engines are safe for concurrent use; the plan cache
// is the only shared mutable state and it guards itself.
type Engine struct {
	cfg engineConfig

	evalOnce sync.Once
	eval     PredicateEvaluator
}

// NewEngine constructs an Engine from the supplied options.
func NewEngine(opts ...Option) *Engine {
	cfg := applyOptions(opts)
	if !cfg.planCacheSet {
		cfg.planCache = NewLRUPlanCache(DefaultPlanCacheSize)
	}
	return &Engine{cfg: cfg}
}

var (
	defaultEngineOnce sync.Once
	defaultEngine     *Engine
)

// Default returns the process-wide engine backing the package-level
// application functions.
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = NewEngine()
	})
	return defaultEngine
}

// View extracts the single focus of a Lens from tree using the default
// engine.
func View(o Optic, tree any) (any, error) {
	return Default().View(o, tree)
}

// ViewOption extracts the optional focus of a Prism from tree using the
// default engine.
func ViewOption(o Optic, tree any) (any, bool, error) {
	return Default().ViewOption(o, tree)
}

// ViewAll extracts every focus of o from tree using the default engine.
func ViewAll(o Optic, tree any) ([]any, error) {
	return Default().ViewAll(o, tree)
}

// Set replaces the foci of o in tree with value using the default engine.
func Set(o Optic, tree any, value any) (any, error) {
	return Default().Set(o, tree, value)
}

// Over applies fn to every focus of o in tree using the default engine.
func Over(o Optic, tree any, fn func(any) any) (any, error) {
	return Default().Over(o, tree, fn)
}
