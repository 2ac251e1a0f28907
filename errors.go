package optix

import (
	"errors"
	"fmt"
)

// MissingFocusError reports that a required path segment does not exist in
// the given tree: an index out of range, an absent mapping key, or an absent
// record field. It is fatal for Lens application; Prism and Traversal callers
// never see it because absence is no-match for them.
type MissingFocusError struct {
	Path Path
	Step Accessor
	Node string
}

func (e *MissingFocusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("optix: missing focus at %s in path %s (node kind %s)", e.Step, e.Path, e.Node)
}

// TypeMismatchError reports that a path segment expected a node shape the
// concrete node cannot provide, for example indexing into a leaf or keying
// into a sequence. Fatal for every arity.
type TypeMismatchError struct {
	Path Path
	Step Accessor
	Node string
	Want string
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("optix: type mismatch at %s in path %s: want %s node, have %s", e.Step, e.Path, e.Want, e.Node)
}

// AdapterContractError reports that an adapter's rebuild did not reproduce an
// equal node from its own decompose output. Only detected when contract
// checks are enabled on the engine; otherwise a broken adapter manifests as
// silent structural corruption.
type AdapterContractError struct {
	Tag string
	Err error
}

func (e *AdapterContractError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("optix: adapter %q violated the decompose/rebuild contract: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("optix: adapter %q violated the decompose/rebuild contract", e.Tag)
}

func (e *AdapterContractError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PredicateError captures evaluator metadata alongside the originating
// error when an expression-backed where step fails.
type PredicateError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *PredicateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("optix: %s predicate expr=%q: %v", e.Engine, e.Expr, e.Err)
}

func (e *PredicateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapPredicateError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	var predErr *PredicateError
	if errors.As(err, &predErr) {
		if predErr.Engine == "" {
			predErr.Engine = engine
		}
		if predErr.Expr == "" {
			predErr.Expr = expr
		}
		return predErr
	}
	return &PredicateError{Engine: engine, Expr: expr, Err: err}
}

// IsMissingFocus reports whether err is (or wraps) a MissingFocusError.
func IsMissingFocus(err error) bool {
	var target *MissingFocusError
	return errors.As(err, &target)
}

// IsTypeMismatch reports whether err is (or wraps) a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var target *TypeMismatchError
	return errors.As(err, &target)
}

func missingFocus(path Path, step Accessor, kind Kind) error {
	return &MissingFocusError{Path: path, Step: step, Node: kind.String()}
}

func typeMismatch(path Path, step Accessor, have Kind, want Kind) error {
	return &TypeMismatchError{Path: path, Step: step, Node: have.String(), Want: want.String()}
}

// wrapApplyError normalises adapter and predicate failures surfaced during
// application so callers always see an optix-prefixed error chain.
func wrapApplyError(op string, path Path, err error) error {
	if err == nil {
		return nil
	}
	var miss *MissingFocusError
	var mismatch *TypeMismatchError
	var contract *AdapterContractError
	if errors.As(err, &miss) || errors.As(err, &mismatch) || errors.As(err, &contract) {
		return err
	}
	return fmt.Errorf("optix: %s %s: %w", op, path, err)
}
