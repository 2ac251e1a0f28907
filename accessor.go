package optix

import (
	"fmt"
	"strings"
)

// AccessorKind discriminates the atomic path step variants.
type AccessorKind int

const (
	// AccessorIndex selects the nth child of a sequence node.
	AccessorIndex AccessorKind = iota
	// AccessorKey selects a mapping child by key.
	AccessorKey
	// AccessorAttr selects a record child by field name.
	AccessorAttr
	// AccessorPredicate selects zero or more children matching a predicate.
	AccessorPredicate
)

func (k AccessorKind) String() string {
	switch k {
	case AccessorIndex:
		return "index"
	case AccessorKey:
		return "key"
	case AccessorAttr:
		return "attr"
	case AccessorPredicate:
		return "where"
	default:
		return "unknown"
	}
}

// Predicate reports whether a candidate child should be focused by a
// traversal step.
type Predicate func(node any) bool

// Accessor is one atomic step of a Path. Accessors are pure descriptions;
// they hold no tree reference and compare by their cache key.
type Accessor struct {
	kind  AccessorKind
	index int
	name  string
	pred  Predicate
	expr  string
}

// Kind returns the accessor variant.
func (a Accessor) Kind() AccessorKind {
	return a.kind
}

// String renders the accessor the way combinators spell it.
func (a Accessor) String() string {
	switch a.kind {
	case AccessorIndex:
		return fmt.Sprintf("at(%d)", a.index)
	case AccessorKey:
		return fmt.Sprintf("key(%q)", a.name)
	case AccessorAttr:
		return fmt.Sprintf("attr(%q)", a.name)
	case AccessorPredicate:
		if a.expr != "" {
			return fmt.Sprintf("where(%q)", a.expr)
		}
		return "where(func)"
	default:
		return "accessor(?)"
	}
}

func indexAccessor(index int) Accessor {
	return Accessor{kind: AccessorIndex, index: index}
}

func keyAccessor(key string) Accessor {
	return Accessor{kind: AccessorKey, name: key}
}

func attrAccessor(name string) Accessor {
	return Accessor{kind: AccessorAttr, name: name}
}

func predicateAccessor(pred Predicate) Accessor {
	return Accessor{kind: AccessorPredicate, pred: pred}
}

func exprAccessor(expr string) Accessor {
	return Accessor{kind: AccessorPredicate, expr: expr}
}

// Path is an ordered sequence of Accessors. The empty Path denotes the root
// itself. Concatenation is associative and always yields a flat Path.
type Path []Accessor

// Concat appends other to p, returning a new flattened Path.
func (p Path) Concat(other Path) Path {
	if len(other) == 0 {
		return p
	}
	joined := make(Path, 0, len(p)+len(other))
	joined = append(joined, p...)
	joined = append(joined, other...)
	return joined
}

// String renders the path with the composition separator.
func (p Path) String() string {
	if len(p) == 0 {
		return "root"
	}
	parts := make([]string, len(p))
	for i, step := range p {
		parts[i] = step.String()
	}
	return strings.Join(parts, ".")
}

// cacheKey is the identity used for plan cache lookups. Predicate steps
// carry no stable identity unless expression-backed, which is fine because
// predicate paths never enter the cache.
func (p Path) cacheKey() string {
	return p.String()
}

// hasPredicate reports whether any step is predicate-based.
func (p Path) hasPredicate() bool {
	for _, step := range p {
		if step.kind == AccessorPredicate {
			return true
		}
	}
	return false
}
