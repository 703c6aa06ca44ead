package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
)

// DefaultJobRunID is used when a request carries no id.
const DefaultJobRunID = "1"

// Type is the accepted shape of a parameter value.
type Type int

const (
	// TypeAny accepts any non-null value.
	TypeAny Type = iota
	// TypeString accepts a string.
	TypeString
	// TypeNumber accepts a number or a numeric string.
	TypeNumber
	// TypeArray accepts a non-empty array.
	TypeArray
	// TypeStringOrArray accepts a string or a non-empty array of strings.
	TypeStringOrArray
	// TypeObject accepts a JSON object.
	TypeObject
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeArray:
		return "array"
	case TypeStringOrArray:
		return "string or array"
	case TypeObject:
		return "object"
	default:
		return "any"
	}
}

// Param declares one input parameter. The first of Name and Aliases present in the
// request wins.
type Param struct {
	Name     string
	Aliases  []string
	Required bool
	Type     Type
	Default  interface{}
}

// Schema is the set of parameters an endpoint accepts.
type Schema []Param

// Request is the inbound job body.
type Request struct {
	ID   interface{}            `json:"id"`
	Data map[string]interface{} `json:"data"`
}

// Validated is request input after schema checks. Values are keyed by canonical
// parameter name; Raw keeps the original data for pass-through fields.
type Validated struct {
	JobRunID string
	Data     map[string]interface{}
	Raw      map[string]interface{}
}

// Validate applies schema to req.
func Validate(req Request, schema Schema) (*Validated, error) {
	out := &Validated{
		JobRunID: JobRunID(req.ID),
		Data:     make(map[string]interface{}, len(schema)),
		Raw:      req.Data,
	}
	if out.Raw == nil {
		out.Raw = map[string]interface{}{}
	}

	for _, p := range schema {
		value, found := lookup(out.Raw, p)
		if !found {
			if p.Required {
				return nil, &ValidationError{Param: p.Name, Reason: "required", Err: ErrMissingParam}
			}
			if p.Default != nil {
				out.Data[p.Name] = p.Default
			}
			continue
		}

		normalized, err := check(p, value)
		if err != nil {
			return nil, err
		}
		out.Data[p.Name] = normalized
	}

	return out, nil
}

// JobRunID renders a request id. Missing or empty ids become DefaultJobRunID.
func JobRunID(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return DefaultJobRunID
	case string:
		if strings.TrimSpace(v) == "" {
			return DefaultJobRunID
		}
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

func lookup(data map[string]interface{}, p Param) (interface{}, bool) {
	for _, key := range append([]string{p.Name}, p.Aliases...) {
		v, ok := data[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func check(p Param, value interface{}) (interface{}, error) {
	invalid := func(reason string) error {
		return &ValidationError{Param: p.Name, Reason: reason, Err: ErrInvalidType}
	}

	switch p.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, invalid(fmt.Sprintf("expected string, got %T", value))
		}
		return s, nil

	case TypeNumber:
		n, ok := extractor.ToFloat(value)
		if !ok {
			return nil, invalid(fmt.Sprintf("expected number, got %v", value))
		}
		return n, nil

	case TypeArray:
		arr, ok := asArray(value)
		if !ok {
			return nil, invalid(fmt.Sprintf("expected array, got %T", value))
		}
		if len(arr) == 0 {
			return nil, invalid("must be a non-empty array")
		}
		return arr, nil

	case TypeStringOrArray:
		if s, ok := value.(string); ok {
			return s, nil
		}
		arr, ok := asArray(value)
		if !ok {
			return nil, invalid(fmt.Sprintf("expected string or array, got %T", value))
		}
		if len(arr) == 0 {
			return nil, invalid("must be a non-empty array")
		}
		strs := make([]string, len(arr))
		for i, el := range arr {
			s, ok := el.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, invalid(fmt.Sprintf("element %d must be a non-empty string", i))
			}
			strs[i] = s
		}
		return strs, nil

	case TypeObject:
		obj, ok := value.(map[string]interface{})
		if !ok {
			return nil, invalid(fmt.Sprintf("expected object, got %T", value))
		}
		return obj, nil

	default:
		return value, nil
	}
}

func asArray(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// Has reports whether name was supplied or defaulted.
func (v *Validated) Has(name string) bool {
	_, ok := v.Data[name]
	return ok
}

// Get returns the raw validated value for name.
func (v *Validated) Get(name string) interface{} {
	return v.Data[name]
}

// String returns name as a string, or "" if it is absent or not a string.
func (v *Validated) String(name string) string {
	s, _ := v.Data[name].(string)
	return s
}

// Number returns name as a number.
func (v *Validated) Number(name string) (float64, bool) {
	n, ok := v.Data[name].(float64)
	return n, ok
}

// Strings returns name as a list of strings. A single string becomes a one element
// list; non-string array elements are rendered with fmt.
func (v *Validated) Strings(name string) []string {
	switch val := v.Data[name].(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, len(val))
		for i, el := range val {
			if s, ok := el.(string); ok {
				out[i] = s
				continue
			}
			out[i] = fmt.Sprint(el)
		}
		return out
	default:
		return nil
	}
}
