// Package qs serializes parameter mappings into URL-encoded strings using
// bracket notation for arrays (a[]=1&a[]=2) and nested maps (a[b]=1).
// Only values are percent-encoded; keys are emitted as given.
package qs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Codec encodes parameter mappings for query strings and form bodies.
type Codec struct{}

// Encode implements the dispatcher's parameter codec contract.
func (Codec) Encode(params map[string]any) string {
	return Stringify(params)
}

// Stringify serializes params. Keys are visited in sorted order so the
// output is deterministic. Nil values produce "key=", empty arrays produce
// nothing.
func Stringify(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = appendPairs(pairs, k, params[k])
	}
	return strings.Join(pairs, "&")
}

// Escape percent-encodes a single value. Spaces become %20 rather than '+'.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func appendPairs(pairs []string, prefix string, value any) []string {
	if value == nil {
		return append(pairs, prefix+"=")
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return append(pairs, prefix+"=")
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return append(pairs, prefix+"="+Escape(string(rv.Bytes())))
		}
		for i := range rv.Len() {
			pairs = appendPairs(pairs, prefix+"[]", rv.Index(i).Interface())
		}
		return pairs
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return append(pairs, prefix+"="+Escape(jsonString(rv.Interface())))
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			pairs = appendPairs(pairs, prefix+"["+k.String()+"]", rv.MapIndex(k).Interface())
		}
		return pairs
	case reflect.Struct:
		return append(pairs, prefix+"="+Escape(jsonString(rv.Interface())))
	default:
		return append(pairs, prefix+"="+Escape(scalarString(rv)))
	}
}

func scalarString(rv reflect.Value) string {
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
