package template

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/PaesslerAG/jsonpath"

	"github.com/sophialabs/payprobe/internal/domain/match"
	"github.com/sophialabs/payprobe/internal/domain/params"
)

// buildEnv exposes the subject and the helper functions to both engines.
func buildEnv(s match.Subject) map[string]any {
	env := s.Env()
	env["has"] = hasKey
	env["num"] = toNumber
	env["decode"] = decodeBlob
	env["toJSON"] = toJSONString
	env["jsonPath"] = extractJSONPath
	return env
}

func hasKey(m any, key string) bool {
	mm, ok := m.(map[string]any)
	if !ok {
		return false
	}
	_, ok = mm[key]
	return ok
}

func toNumber(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// decodeBlob decodes a doubly-encoded parameter blob found inside a layer.
func decodeBlob(s string) map[string]any {
	t, err := params.DecodeNestedBlob(s)
	if err != nil {
		return map[string]any{}
	}
	return t.ToAny()
}

func toJSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func extractJSONPath(data any, expression string) string {
	result, err := jsonpath.Get(expression, data)
	if err != nil {
		return ""
	}
	return Stringify(result)
}

// Stringify renders an extracted value for string matching. Strings are
// returned as-is, whole numbers without a fraction, the rest as JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return toJSONString(x)
	}
}
