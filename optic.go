package optix

// Arity describes how many foci an Optic can produce.
type Arity int

const (
	// ArityLens guarantees exactly one focus, always present.
	ArityLens Arity = iota
	// ArityPrism focuses zero or one value; absence is not an error.
	ArityPrism
	// ArityTraversal focuses zero or more values simultaneously.
	ArityTraversal
)

func (a Arity) String() string {
	switch a {
	case ArityLens:
		return "lens"
	case ArityPrism:
		return "prism"
	case ArityTraversal:
		return "traversal"
	default:
		return "unknown"
	}
}

// Optic is a reusable, tree-independent accessor: a Path of Accessors paired
// with a focus arity. Optics hold no tree state and are safe to share.
type Optic struct {
	path  Path
	arity Arity
}

// At returns a Lens selecting the index-th child of a sequence node.
func At(index int) Optic {
	return Optic{path: Path{indexAccessor(index)}}
}

// Key returns a Lens selecting a mapping child by key.
func Key(key string) Optic {
	return Optic{path: Path{keyAccessor(key)}}
}

// Attr returns a Lens selecting a record child by field name.
func Attr(name string) Optic {
	return Optic{path: Path{attrAccessor(name)}}
}

// Where returns a Traversal over the children of a node that satisfy pred.
func Where(pred Predicate) Optic {
	return Optic{path: Path{predicateAccessor(pred)}, arity: ArityTraversal}
}

// WhereExpr returns a Traversal whose predicate is an expression compiled by
// the engine's predicate evaluator. The candidate child is bound as value,
// its position as index, its key or field name as label, and its node
// classification as kind.
func WhereExpr(expr string) Optic {
	return Optic{path: Path{exprAccessor(expr)}, arity: ArityTraversal}
}

// Root returns the identity Lens focusing the tree itself.
func Root() Optic {
	return Optic{}
}

// Compose chains optics outermost first. The resulting path is the flat
// concatenation and the resulting arity is the weakest of the parts, so
// composition is associative in both path and arity.
func Compose(optics ...Optic) Optic {
	out := Optic{}
	for _, o := range optics {
		out.path = out.path.Concat(o.path)
		if o.arity > out.arity {
			out.arity = o.arity
		}
	}
	return out
}

// Compose chains inner optics after o.
func (o Optic) Compose(inner ...Optic) Optic {
	return Compose(append([]Optic{o}, inner...)...)
}

// AsPrism weakens o so an absent focus reads as no-match instead of a
// MissingFocus failure. Traversals are unaffected.
func (o Optic) AsPrism() Optic {
	if o.arity == ArityLens {
		o.arity = ArityPrism
	}
	return o
}

// AsTraversal weakens o to a traversal over its zero-or-more foci.
func (o Optic) AsTraversal() Optic {
	o.arity = ArityTraversal
	return o
}

// Arity returns the optic's focus arity.
func (o Optic) Arity() Arity {
	return o.arity
}

// String renders the optic's path.
func (o Optic) String() string {
	return o.path.String()
}
