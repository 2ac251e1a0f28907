// Package record implements reflection-backed decomposition and rebuilding
// of struct values into ordered, named children.
package record

import (
	"fmt"
	"reflect"
)

// Info describes a struct type's exported fields in declaration order.
type Info struct {
	Type   reflect.Type
	Fields []string

	indexes [][]int
}

// InfoOf inspects t and returns its record description. Only exported fields
// participate; unexported fields make the type unusable as a record because
// Rebuild could not restore them.
func InfoOf(t reflect.Type) (Info, error) {
	if t == nil {
		return Info{}, fmt.Errorf("record: nil type")
	}
	if t.Kind() != reflect.Struct {
		return Info{}, fmt.Errorf("record: %s is not a struct", t)
	}
	info := Info{Type: t}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			return Info{}, fmt.Errorf("record: %s has unexported field %s", t, field.Name)
		}
		info.Fields = append(info.Fields, field.Name)
		info.indexes = append(info.indexes, field.Index)
	}
	return info, nil
}

// Decompose extracts the exported field values of node in declaration order.
func Decompose(info Info, node any) ([]any, error) {
	v := reflect.ValueOf(node)
	if !v.IsValid() || v.Type() != info.Type {
		return nil, fmt.Errorf("record: expected %s, got %T", info.Type, node)
	}
	children := make([]any, len(info.indexes))
	for i, index := range info.indexes {
		children[i] = v.FieldByIndex(index).Interface()
	}
	return children, nil
}

// Rebuild constructs a fresh value of the record type from children, which
// must align with Info.Fields.
func Rebuild(info Info, children []any) (any, error) {
	if len(children) != len(info.indexes) {
		return nil, fmt.Errorf("record: %s expects %d children, got %d", info.Type, len(info.indexes), len(children))
	}
	out := reflect.New(info.Type).Elem()
	for i, index := range info.indexes {
		field := out.FieldByIndex(index)
		if children[i] == nil {
			continue
		}
		v := reflect.ValueOf(children[i])
		if !v.Type().AssignableTo(field.Type()) {
			return nil, fmt.Errorf("record: field %s.%s cannot hold %T", info.Type, info.Fields[i], children[i])
		}
		field.Set(v)
	}
	return out.Interface(), nil
}
