package optix

// Bound pairs an optic with a tree so call sites can read and update the
// same focus without re-threading both values. The tree is never mutated;
// Set and Apply return new roots.
type Bound struct {
	engine *Engine
	optic  Optic
	tree   any
}

// Bind pairs o with tree on the default engine.
func Bind(o Optic, tree any) Bound {
	return Default().Bind(o, tree)
}

// Bind pairs o with tree on this engine.
func (e *Engine) Bind(o Optic, tree any) Bound {
	return Bound{engine: e, optic: o, tree: tree}
}

// Get extracts the focused value.
func (b Bound) Get() (any, error) {
	return b.engine.View(b.optic, b.tree)
}

// GetOption extracts the focused value when present.
func (b Bound) GetOption() (any, bool, error) {
	return b.engine.ViewOption(b.optic, b.tree)
}

// GetAll extracts every focused value.
func (b Bound) GetAll() ([]any, error) {
	return b.engine.ViewAll(b.optic, b.tree)
}

// Set returns a new tree with the focused value replaced.
func (b Bound) Set(value any) (any, error) {
	return b.engine.Set(b.optic, b.tree, value)
}

// Apply returns a new tree with fn applied to each focused value.
func (b Bound) Apply(fn func(any) any) (any, error) {
	return b.engine.Over(b.optic, b.tree, fn)
}

// Optic returns the bound optic.
func (b Bound) Optic() Optic {
	return b.optic
}

// Focused wraps a tree for fluent optic binding.
type Focused struct {
	engine *Engine
	tree   any
}

// Focus wraps tree on the default engine.
func Focus(tree any) Focused {
	return Default().Focus(tree)
}

// Focus wraps tree on this engine.
func (e *Engine) Focus(tree any) Focused {
	return Focused{engine: e, tree: tree}
}

// Select composes optics outermost first and binds them to the wrapped
// tree.
func (f Focused) Select(optics ...Optic) Bound {
	return f.engine.Bind(Compose(optics...), f.tree)
}
