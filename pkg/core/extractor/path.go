package extractor

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a map key or a slice index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a segment that indexes a keyed mapping.
func Key(k string) Segment { return Segment{key: k} }

// Index returns a segment that indexes an ordered sequence.
func Index(i int) Segment { return Segment{index: i, isIndex: true} }

func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return strconv.Quote(s.key)
}

// Path is an ordered list of segments walked from the document root.
type Path []Segment

// NewPath builds a Path from strings and ints, the shape used by callers and configs.
func NewPath(parts ...interface{}) (Path, error) {
	path := make(Path, 0, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			path = append(path, Key(v))
		case int:
			path = append(path, Index(v))
		case int64:
			path = append(path, Index(int(v)))
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("%w: segment %d is fractional", ErrInvalidPath, i)
			}
			path = append(path, Index(int(v)))
		case Segment:
			path = append(path, v)
		default:
			return nil, fmt.Errorf("%w: segment %d has type %T", ErrInvalidPath, i, p)
		}
	}
	return path, nil
}

// MustPath is NewPath for static paths; it panics on invalid input.
func MustPath(parts ...interface{}) Path {
	p, err := NewPath(parts...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath parses a dotted path such as "quotes.USD.price" or "data.items.0.value".
// Segments made only of digits become indices.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, s)
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			path = append(path, Index(n))
			continue
		}
		path = append(path, Key(part))
	}
	return path, nil
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}
