package optix

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL predicate evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs a PredicateEvaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) PredicateEvaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx PredicateContext, expression string) (bool, error) {
	compiled, err := e.Compile(expression)
	if err != nil {
		return false, err
	}
	return compiled.Match(ctx)
}

func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledPredicate, error) {
	if expression == "" {
		return nil, wrapPredicateError("cel", expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &celCompiledPredicate{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	env, err := e.buildEnv()
	if err != nil {
		return nil, wrapPredicateError("cel", expression, err)
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapPredicateError("cel", expression, issues.Err())
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, wrapPredicateError("cel", expression, issues.Err())
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, wrapPredicateError("cel", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

// buildEnv declares the fixed predicate bindings: the candidate child plus
// its position, label, and node classification.
func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("index", celgo.IntType),
		celgo.Variable("label", celgo.StringType),
		celgo.Variable("kind", celgo.StringType),
		celgo.Variable("metadata", celgo.DynType),
	}
	if e.registry != nil {
		bind := celgo.FunctionBinding(e.callBinding())
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType}, celgo.DynType, bind),
			celgo.Overload("call_string_dyn",
				[]*celgo.Type{celgo.StringType, celgo.DynType}, celgo.DynType, bind),
			celgo.Overload("call_string_dyn_dyn",
				[]*celgo.Type{celgo.StringType, celgo.DynType, celgo.DynType}, celgo.DynType, bind),
		))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx PredicateContext) map[string]any {
	metadata := ctx.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	activation := map[string]any{
		"value":    ctx.Node,
		"index":    ctx.Index,
		"label":    ctx.Label,
		"kind":     ctx.Kind,
		"metadata": metadata,
	}
	if e.registry != nil {
		activation["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return activation
}

type celCompiledPredicate struct {
	evaluator  *celEvaluator
	program    celgo.Program
	expression string
}

func (p *celCompiledPredicate) Match(ctx PredicateContext) (bool, error) {
	if p.evaluator == nil || p.program == nil {
		return false, wrapPredicateError("cel", p.expression, fmt.Errorf("compiled predicate missing program"))
	}
	out, _, err := p.program.Eval(p.evaluator.activation(ctx))
	if err != nil {
		return false, wrapPredicateError("cel", p.expression, err)
	}
	return asBool("cel", p.expression, out.Value())
}

func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("optix: function registry not configured")
		}
		if len(values) == 0 {
			return types.NewErr("optix: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("optix: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErrFromString(err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
