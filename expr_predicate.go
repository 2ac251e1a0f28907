package optix

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr predicate evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator matches where expressions using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs a PredicateEvaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) PredicateEvaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles and runs expression against one candidate child.
func (e *exprEvaluator) Evaluate(ctx PredicateContext, expression string) (bool, error) {
	if expression == "" {
		return false, wrapPredicateError("expr", expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return false, err
	}
	result, err := exprlang.Run(program, e.environment(ctx))
	if err != nil {
		return false, wrapPredicateError("expr", expression, err)
	}
	return asBool("expr", expression, result)
}

// Compile returns a compiled predicate that matches candidates per
// invocation.
func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledPredicate, error) {
	if expression == "" {
		return nil, wrapPredicateError("expr", expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledPredicate{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		fn := e.registryFunction(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapPredicateError("expr", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

type exprCompiledPredicate struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (p *exprCompiledPredicate) Match(ctx PredicateContext) (bool, error) {
	if p.evaluator == nil || p.program == nil {
		return false, wrapPredicateError("expr", p.expression, fmt.Errorf("compiled predicate missing program"))
	}
	result, err := exprlang.Run(p.program, p.evaluator.environment(ctx))
	if err != nil {
		return false, wrapPredicateError("expr", p.expression, err)
	}
	return asBool("expr", p.expression, result)
}

func (e *exprEvaluator) environment(ctx PredicateContext) map[string]any {
	env := map[string]any{
		"value":    ctx.Node,
		"index":    ctx.Index,
		"label":    ctx.Label,
		"kind":     ctx.Kind,
		"metadata": ctx.Metadata,
	}
	if env["metadata"] == nil {
		env["metadata"] = map[string]any{}
	}
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			env[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return env
}

func (e *exprEvaluator) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	if e == nil || e.registry == nil {
		return nil
	}
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

// asBool rejects non-boolean predicate results instead of guessing at
// truthiness.
func asBool(engine, expression string, result any) (bool, error) {
	b, ok := result.(bool)
	if !ok {
		return false, wrapPredicateError(engine, expression, fmt.Errorf("predicate must evaluate to a boolean, got %T", result))
	}
	return b, nil
}
