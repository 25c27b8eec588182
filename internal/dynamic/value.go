// Package dynamic models values whose shape is only known at runtime, such as
// bindings handed over by a host environment or ad hoc test doubles.
//
// Go values are mapped onto a small set of runtime type names:
//
//	nil, nil pointers/maps/slices/funcs  "null"
//	Undefined                            "undefined"
//	bool                                 "boolean"
//	integer and float kinds, json.Number "number"
//	string kinds                         "string"
//	Func and other funcs                 "function"
//	maps, slices, arrays, structs        "object"
//
// Pointers report the type name of the value they point to.
package dynamic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Object is a plain dynamic object.
type Object map[string]any

// Func is a callable member of a dynamic object. A call blocks only the
// calling goroutine and either resolves to a dynamic value or rejects.
type Func func(ctx context.Context, args ...any) (any, error)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is returned for lookups of names that do not exist.
var Undefined any = undefined{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// TypeOf returns the runtime type name of v.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case Func:
		if v.(Func) == nil {
			return "null"
		}
		return "function"
	case json.Number:
		return "number"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Func:
		if rv.IsNil() {
			return "null"
		}
		return "function"
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return "null"
		}
		return "object"
	case reflect.Array, reflect.Struct:
		return "object"
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "null"
		}
		return TypeOf(rv.Elem().Interface())
	}

	return rv.Kind().String()
}

// IsObject reports whether v has introspectable properties.
func IsObject(v any) bool {
	return TypeOf(v) == "object"
}

// Get returns the property key of v.
func Get(v any, key string) (any, bool) {
	if obj, ok := v.(Object); ok {
		val, ok := obj[key]
		return val, ok
	}

	rv, ok := indirect(v)
	if !ok {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true

	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			name, ok := fieldName(field)
			if !ok || name != key {
				continue
			}
			return rv.Field(i).Interface(), true
		}

	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	}

	return nil, false
}

// Has reports whether v exposes the property key.
func Has(v any, key string) bool {
	_, ok := Get(v, key)
	return ok
}

// Keys returns the own property names of v.
func Keys(v any) []string {
	if obj, ok := v.(Object); ok {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		return keys
	}

	rv, ok := indirect(v)
	if !ok {
		return nil
	}

	var keys []string

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}

	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if name, ok := fieldName(t.Field(i)); ok {
				keys = append(keys, name)
			}
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			keys = append(keys, strconv.Itoa(i))
		}
	}

	return keys
}

// Assign copies the own properties of v into a fresh Object. Values are not
// copied deeply.
func Assign(v any) Object {
	keys := Keys(v)
	obj := make(Object, len(keys))

	for _, k := range keys {
		val, _ := Get(v, k)
		obj[k] = val
	}

	return obj
}

// AsNumber returns v as a float64 if it is a number.
// Strings are not parsed.
func AsNumber(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}

	rv, ok := indirect(v)
	if !ok {
		return 0, false
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}

	return 0, false
}

// AsString returns v as a string if it is one.
func AsString(v any) (string, bool) {
	rv, ok := indirect(v)
	if !ok || rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

// Plain converts v into plain dynamic form built from Object, []any, float64,
// string, bool and nil. It fails for values that have no dynamic
// representation such as channels, funcs and non-finite numbers.
func Plain(v any) (any, error) {
	if v == nil || IsUndefined(v) {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value of type %T has no dynamic form: %w", v, err)
	}

	var out any

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}

	return plainify(out), nil
}

func plainify(v any) any {
	switch val := v.(type) {
	case map[string]any:
		obj := make(Object, len(val))
		for k, item := range val {
			obj[k] = plainify(item)
		}
		return obj

	case []any:
		for i, item := range val {
			val[i] = plainify(item)
		}
		return val

	case json.Number:
		f, err := val.Float64()
		if err != nil || math.IsInf(f, 0) {
			return val.String()
		}
		return f
	}

	return v
}

func indirect(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func fieldName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}

	if tag, ok := field.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}

	return lowerCamel(field.Name), true
}

// lowerCamel turns an exported Go name into the camelCase property name used
// at the dynamic boundary: ProcessedVectorsCount -> processedVectorsCount,
// ID -> id, URLPath -> urlPath.
func lowerCamel(name string) string {
	runes := []rune(name)

	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}

	switch {
	case upper == 0:
		return name
	case upper == len(runes):
		return strings.ToLower(name)
	case upper > 1:
		upper--
	}

	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}

	return string(runes)
}
