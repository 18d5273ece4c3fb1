package snapshots

import (
	"reflect"
	"strings"
)

// FieldAccessible exposes named fields of a payload item regardless of its
// underlying shape. The adapter is resolved once per item at ingestion so
// mapping code never type-switches on raw payload values.
type FieldAccessible interface {
	Field(name string) (any, bool)
}

// Normalize wraps an item in the adapter matching its shape: maps keyed by
// string, or structs (including pointers to structs) read through their
// exported fields and json tags. It returns nil for anything else.
func Normalize(item any) FieldAccessible {
	switch v := item.(type) {
	case nil:
		return nil
	case map[string]any:
		return mapAccessor(v)
	case FieldAccessible:
		return v
	}

	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		return recordAccessor{value: rv}
	}
	return nil
}

type mapAccessor map[string]any

func (m mapAccessor) Field(name string) (any, bool) {
	val, ok := m[name]
	return val, ok
}

type recordAccessor struct {
	value reflect.Value
}

func (r recordAccessor) Field(name string) (any, bool) {
	t := r.value.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if fieldName(f) == name {
			return r.value.Field(i).Interface(), true
		}
	}
	return nil, false
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return strings.ToLower(f.Name[:1]) + f.Name[1:]
	}
	if comma := strings.Index(tag, ","); comma >= 0 {
		tag = tag[:comma]
	}
	if tag == "" {
		return strings.ToLower(f.Name[:1]) + f.Name[1:]
	}
	return tag
}
