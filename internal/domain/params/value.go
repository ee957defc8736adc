package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Value is a node of a parameter tree. It is one of Scalar, Tree or Seq.
type Value interface {
	isValue()
}

// ScalarKind distinguishes scalar origins so that "1" and 1 never compare equal.
type ScalarKind int

const (
	String ScalarKind = iota
	Number
	Bool
)

func (k ScalarKind) String() string {
	switch k {
	case Number:
		return "number"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// Scalar is a leaf value. Raw holds the textual form (JSON literal for numbers).
type Scalar struct {
	Kind ScalarKind
	Raw  string
}

// Tree maps keys to values. An empty Tree is a valid, present value.
type Tree map[string]Value

// Seq is an ordered sequence of values.
type Seq []Value

func (Scalar) isValue() {}
func (Tree) isValue()   {}
func (Seq) isValue()    {}

// Str returns a string scalar.
func Str(s string) Scalar { return Scalar{Kind: String, Raw: s} }

// Num returns a number scalar from its literal form.
func Num(raw string) Scalar { return Scalar{Kind: Number, Raw: raw} }

// Boolean returns a bool scalar.
func Boolean(b bool) Scalar { return Scalar{Kind: Bool, Raw: strconv.FormatBool(b)} }

// Equal reports exact equality. Numbers compare by value when both parse.
func (s Scalar) Equal(o Scalar) bool {
	if s.Kind != o.Kind {
		return false
	}
	if s.Kind == Number {
		a, errA := strconv.ParseFloat(s.Raw, 64)
		b, errB := strconv.ParseFloat(o.Raw, 64)
		if errA == nil && errB == nil {
			return a == b
		}
	}
	return s.Raw == o.Raw
}

func (s Scalar) String() string {
	if s.Kind == String {
		return strconv.Quote(s.Raw)
	}
	return s.Raw
}

// Keys returns the tree's keys in sorted order.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the scalar text stored at key, or "" when absent or structured.
func (t Tree) Get(key string) string {
	if s, ok := t[key].(Scalar); ok {
		return s.Raw
	}
	return ""
}

// Has reports whether key is present, even with an empty value.
func (t Tree) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// ToAny converts the tree into plain Go values for JSONPath and expression engines.
func (t Tree) ToAny() map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = toAny(v)
	}
	return out
}

func toAny(v Value) any {
	switch x := v.(type) {
	case Scalar:
		switch x.Kind {
		case Number:
			if f, err := strconv.ParseFloat(x.Raw, 64); err == nil {
				return f
			}
			return x.Raw
		case Bool:
			return x.Raw == "true"
		default:
			return x.Raw
		}
	case Tree:
		return x.ToAny()
	case Seq:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = toAny(item)
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoded YAML/JSON data into a Value. nil becomes the empty
// string so that a key is never lost.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Str("")
	case string:
		return Str(x)
	case bool:
		return Boolean(x)
	case json.Number:
		return Num(x.String())
	case int:
		return Num(strconv.Itoa(x))
	case int64:
		return Num(strconv.FormatInt(x, 10))
	case uint64:
		return Num(strconv.FormatUint(x, 10))
	case float64:
		return Num(strconv.FormatFloat(x, 'f', -1, 64))
	case map[string]any:
		t := make(Tree, len(x))
		for k, item := range x {
			t[k] = FromAny(item)
		}
		return t
	case map[any]any:
		t := make(Tree, len(x))
		for k, item := range x {
			t[fmt.Sprint(k)] = FromAny(item)
		}
		return t
	case []any:
		s := make(Seq, len(x))
		for i, item := range x {
			s[i] = FromAny(item)
		}
		return s
	default:
		return Str(fmt.Sprint(x))
	}
}

// TreeFromAny converts a decoded mapping into a Tree. Non-mapping input yields
// an empty Tree.
func TreeFromAny(v any) Tree {
	if t, ok := FromAny(v).(Tree); ok {
		return t
	}
	return Tree{}
}

// Describe renders a value compactly for diagnostics.
func Describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "<absent>"
	case Scalar:
		return x.String()
	default:
		b, err := json.Marshal(toAny(x))
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
