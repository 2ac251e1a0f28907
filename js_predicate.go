//go:build js_eval

package optix

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs a PredicateEvaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) PredicateEvaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *jsEvaluator) Evaluate(ctx PredicateContext, expression string) (bool, error) {
	if expression == "" {
		return false, wrapPredicateError("js", expression, fmt.Errorf("expression must not be empty"))
	}
	if e.cache == nil {
		return e.run(ctx, expression, nil)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return false, err
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledPredicate, error) {
	if expression == "" {
		return nil, wrapPredicateError("js", expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledPredicate{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", e.wrapExpression(expression), false)
	if err != nil {
		return nil, wrapPredicateError("js", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx PredicateContext, expression string, program *goja.Program) (bool, error) {
	vm := goja.New()
	e.injectContext(vm, ctx)
	var value goja.Value
	var err error
	if program != nil {
		value, err = vm.RunProgram(program)
	} else {
		value, err = vm.RunString(e.wrapExpression(expression))
	}
	if err != nil {
		return false, wrapPredicateError("js", expression, err)
	}
	return asBool("js", expression, value.Export())
}

func (e *jsEvaluator) injectContext(vm *goja.Runtime, ctx PredicateContext) {
	metadata := ctx.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	vm.Set("value", ctx.Node)
	vm.Set("index", ctx.Index)
	vm.Set("label", ctx.Label)
	vm.Set("kind", ctx.Kind)
	vm.Set("metadata", metadata)
	if e.registry != nil {
		vm.Set("call", func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		})
		for _, name := range e.registry.Names() {
			fn := name
			vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
}

func (e *jsEvaluator) wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledPredicate struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (p *jsCompiledPredicate) Match(ctx PredicateContext) (bool, error) {
	if p.evaluator == nil {
		return false, wrapPredicateError("js", p.expression, fmt.Errorf("compiled predicate missing evaluator"))
	}
	return p.evaluator.run(ctx, p.expression, p.program)
}

func jsEvaluatorAvailable() bool {
	return true
}
