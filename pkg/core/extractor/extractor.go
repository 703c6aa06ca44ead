package extractor

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

// Result is the tagged outcome of walking a document.
type Result struct {
	Kind  Kind
	Value float64
	// Segment is set when Kind is PathMissing.
	Segment Segment
	// Leaf is the raw value found at the end of the path.
	Leaf interface{}
}

// Lookup walks document along path and classifies the leaf.
func Lookup(document interface{}, path Path) Result {
	current := document
	for _, seg := range path {
		next, ok := step(current, seg)
		if !ok {
			return Result{Kind: PathMissing, Segment: seg}
		}
		current = next
	}

	n, ok := ToFloat(current)
	if !ok {
		return Result{Kind: NotNumeric, Leaf: current}
	}
	return Result{Kind: Found, Value: n, Leaf: current}
}

// Extract returns the number at path or an *Error describing why there is none.
func Extract(document interface{}, path Path) (float64, error) {
	res := Lookup(document, path)
	switch res.Kind {
	case Found:
		return res.Value, nil
	case PathMissing:
		return 0, &Error{Kind: PathMissing, Path: path, Segment: res.Segment}
	default:
		return 0, &Error{Kind: NotNumeric, Path: path, Value: res.Leaf}
	}
}

func step(current interface{}, seg Segment) (interface{}, bool) {
	if current == nil {
		return nil, false
	}

	switch node := current.(type) {
	case map[string]interface{}:
		if seg.isIndex {
			return nil, false
		}
		v, ok := node[seg.key]
		return v, ok
	case []interface{}:
		if !seg.isIndex || seg.index < 0 || seg.index >= len(node) {
			return nil, false
		}
		return node[seg.index], true
	}

	// Typed containers, e.g. map[string]float64 or []string from a typed decode.
	rv := reflect.ValueOf(current)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if seg.isIndex || rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(seg.key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		if !seg.isIndex || seg.index < 0 || seg.index >= rv.Len() {
			return nil, false
		}
		return rv.Index(seg.index).Interface(), true
	default:
		return nil, false
	}
}

// ToFloat coerces native numbers and numeric strings to a finite float64.
// Booleans, empty strings and non-finite values are rejected.
func ToFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		return parseNumeric(string(n))
	case string:
		return parseNumeric(n)
	case decimal.Decimal:
		f = n.InexactFloat64()
	case *big.Int:
		if n == nil {
			return 0, false
		}
		f, _ = new(big.Float).SetInt(n).Float64()
	default:
		return 0, false
	}
	return f, isFinite(f)
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	return f, isFinite(f)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
