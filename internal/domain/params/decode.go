package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DecodeError is returned alongside an empty Tree when input cannot be decoded.
type DecodeError struct {
	Input string
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s failed for %q: %v", e.Stage, truncate(e.Input, 120), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeQueryString parses key=value pairs joined by '&'. Every key yields an
// entry; a missing value maps to "". Repeated keys keep the last value.
func DecodeQueryString(s string) (Tree, error) {
	s = strings.TrimPrefix(s, "?")
	out := Tree{}
	if s == "" {
		return out, nil
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Tree{}, &DecodeError{Input: s, Stage: "query key", Err: err}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Tree{}, &DecodeError{Input: s, Stage: "query value", Err: err}
		}
		out[key] = Str(value)
	}
	return out, nil
}

// DecodeNestedBlob decodes a value that was percent-encoded twice. The result is
// parsed as a JSON object first and as a query string otherwise. When the
// second pass hits a literal '%' (e.g. {"d":"50%"}), a JSON object in the
// once-decoded text is accepted instead.
func DecodeNestedBlob(s string) (Tree, error) {
	once, err := url.PathUnescape(s)
	if err != nil {
		return Tree{}, &DecodeError{Input: s, Stage: "first unescape", Err: err}
	}
	twice, err := url.PathUnescape(once)
	if err != nil {
		if t, ok := decodeJSONObject(once); ok {
			return t, nil
		}
		return Tree{}, &DecodeError{Input: s, Stage: "second unescape", Err: err}
	}

	if t, ok := decodeJSONObject(twice); ok {
		return t, nil
	}
	return DecodeQueryString(twice)
}

// DecodeJSONObject parses a JSON object into a Tree.
func DecodeJSONObject(s string) (Tree, error) {
	t, ok := decodeJSONObject(s)
	if !ok {
		return Tree{}, &DecodeError{Input: s, Stage: "json", Err: fmt.Errorf("not a JSON object")}
	}
	return t, nil
}

func decodeJSONObject(s string) (Tree, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return TreeFromAny(obj), true
}

// Encode renders a flat tree back into a query string with sorted keys.
// Structured values are JSON-encoded.
func Encode(t Tree) string {
	v := url.Values{}
	for _, k := range t.Keys() {
		switch x := t[k].(type) {
		case Scalar:
			v.Set(k, x.Raw)
		default:
			v.Set(k, Describe(x))
		}
	}
	return v.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
