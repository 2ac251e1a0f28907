package optix

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func lawsTree(x, y, z int) map[string]any {
	return map[string]any{
		"a": []any{x, y, map[string]any{"b": z}},
	}
}

func TestLensLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	lens := Compose(Key("a"), At(2), Key("b"))

	properties.Property("get-put: writing back the focus preserves the tree", prop.ForAll(
		func(x, y, z int) bool {
			tree := lawsTree(x, y, z)
			value, err := View(lens, tree)
			if err != nil {
				return false
			}
			restored, err := Set(lens, tree, value)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(restored, tree)
		},
		gen.Int(), gen.Int(), gen.Int(),
	))

	properties.Property("put-get: a written value reads back", prop.ForAll(
		func(x, y, z, v int) bool {
			updated, err := Set(lens, lawsTree(x, y, z), v)
			if err != nil {
				return false
			}
			got, err := View(lens, updated)
			if err != nil {
				return false
			}
			return got == v
		},
		gen.Int(), gen.Int(), gen.Int(), gen.Int(),
	))

	properties.Property("set-set: the last write wins", prop.ForAll(
		func(x, y, z, v1, v2 int) bool {
			tree := lawsTree(x, y, z)
			once, err := Set(lens, tree, v1)
			if err != nil {
				return false
			}
			twice, err := Set(lens, once, v2)
			if err != nil {
				return false
			}
			direct, err := Set(lens, tree, v2)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(twice, direct)
		},
		gen.Int(), gen.Int(), gen.Int(), gen.Int(), gen.Int(),
	))

	properties.TestingRun(t)
}

func TestComposeAssociativity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("composition groups freely", prop.ForAll(
		func(i int, key, attr string) bool {
			a, b, c := Key(key), At(i), Attr(attr)
			left := Compose(Compose(a, b), c)
			right := Compose(a, Compose(b, c))
			return left.String() == right.String() && left.Arity() == right.Arity()
		},
		gen.IntRange(0, 64), gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("composed arity is the weakest component arity", prop.ForAll(
		func(i int) bool {
			lens := Compose(Key("a"), At(i))
			if lens.Arity() != ArityLens {
				return false
			}
			prism := Compose(lens, At(i).AsPrism())
			if prism.Arity() != ArityPrism {
				return false
			}
			traversal := Compose(prism, Where(IsMapping))
			return traversal.Arity() == ArityTraversal
		},
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

func TestOverComposition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	lens := Compose(Key("a"), At(2), Key("b"))

	properties.Property("over with identity preserves the tree", prop.ForAll(
		func(x, y, z int) bool {
			tree := lawsTree(x, y, z)
			updated, err := Over(lens, tree, func(v any) any { return v })
			if err != nil {
				return false
			}
			return reflect.DeepEqual(updated, tree)
		},
		gen.Int(), gen.Int(), gen.Int(),
	))

	properties.Property("over fuses with function composition", prop.ForAll(
		func(x, y, z, d int) bool {
			tree := lawsTree(x, y, z)
			double := func(v any) any { return v.(int) * 2 }
			shift := func(v any) any { return v.(int) + d }
			stepwise, err := Over(lens, tree, double)
			if err != nil {
				return false
			}
			stepwise, err = Over(lens, stepwise, shift)
			if err != nil {
				return false
			}
			fused, err := Over(lens, tree, func(v any) any { return shift(double(v)) })
			if err != nil {
				return false
			}
			return reflect.DeepEqual(stepwise, fused)
		},
		gen.Int(), gen.Int(), gen.Int(), gen.Int(),
	))

	properties.TestingRun(t)
}
