package optix

import "github.com/goliatone/go-optix/pkg/observe"

// PredicateContext carries one candidate child into predicate evaluation.
type PredicateContext struct {
	// Node is the candidate child value.
	Node any
	// Index is the candidate's position among its siblings.
	Index int
	// Label is the candidate's key or field name, empty for sequences.
	Label string
	// Kind classifies the candidate: leaf, sequence, mapping, or record.
	Kind string
	// Metadata carries caller-supplied values into expressions.
	Metadata map[string]any
}

// PredicateEvaluator executes predicate expressions against candidate
// children. Implementations are keyed to one expression engine.
type PredicateEvaluator interface {
	Evaluate(ctx PredicateContext, expr string) (bool, error)
	Compile(expr string, opts ...CompileOption) (CompiledPredicate, error)
}

// CompiledPredicate is a reusable predicate program.
type CompiledPredicate interface {
	Match(ctx PredicateContext) (bool, error)
}

// CompileOption configures predicate compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	registry       *AdapterRegistry
	planCache      PlanCache
	planCacheSet   bool
	evaluator      PredicateEvaluator
	programCache   ProgramCache
	functions      *FunctionRegistry
	logger         ApplyLogger
	hooks          observe.Hooks
	contractChecks bool
	metadata       map[string]any
}

func applyOptions(opts []Option) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithAdapterRegistry overrides the registry consulted during traversal. The
// registry is cloned so later registrations on the original do not leak in.
func WithAdapterRegistry(registry *AdapterRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// WithPredicateEvaluator configures the engine used for expression-backed
// where steps.
func WithPredicateEvaluator(evaluator PredicateEvaluator) Option {
	return func(cfg *engineConfig) {
		cfg.evaluator = evaluator
	}
}

// WithContractChecks toggles verification that every adapter's rebuild
// reproduces an equal node from its own decompose output. Intended for
// tests and debugging; it doubles the work per on-path node.
func WithContractChecks(enabled bool) Option {
	return func(cfg *engineConfig) {
		cfg.contractChecks = enabled
	}
}

// WithObserverHooks registers hooks notified after every application.
func WithObserverHooks(hooks ...observe.Hook) Option {
	return func(cfg *engineConfig) {
		for _, hook := range hooks {
			if hook != nil {
				cfg.hooks = append(cfg.hooks, hook)
			}
		}
	}
}

// WithPredicateMetadata supplies values visible to predicate expressions as
// the metadata binding.
func WithPredicateMetadata(metadata map[string]any) Option {
	return func(cfg *engineConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}
	return out
}

func (e *Engine) adapterRegistry() *AdapterRegistry {
	if e.cfg.registry != nil {
		return e.cfg.registry
	}
	return DefaultAdapterRegistry()
}

func (e *Engine) planCache() PlanCache {
	return e.cfg.planCache
}

func (e *Engine) predicateEvaluator() PredicateEvaluator {
	e.evalOnce.Do(func() {
		if e.cfg.evaluator != nil {
			e.eval = e.cfg.evaluator
			return
		}
		opts := []ExprEvaluatorOption{}
		if e.cfg.programCache != nil {
			opts = append(opts, ExprWithProgramCache(e.cfg.programCache))
		}
		if e.cfg.functions != nil {
			opts = append(opts, ExprWithFunctionRegistry(e.cfg.functions))
		}
		e.eval = NewExprEvaluator(opts...)
	})
	return e.eval
}

func (e *Engine) applyLogger() ApplyLogger {
	if e.cfg.logger != nil {
		return e.cfg.logger
	}
	return noopApplyLogger{}
}
