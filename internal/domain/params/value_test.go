package params_test

import (
	"testing"

	"github.com/sophialabs/payprobe/internal/domain/params"
)

func TestScalar_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b params.Scalar
		want bool
	}{
		{"same string", params.Str("x"), params.Str("x"), true},
		{"different string", params.Str("x"), params.Str("y"), false},
		{"number vs string", params.Num("1"), params.Str("1"), false},
		{"numbers by value", params.Num("1.0"), params.Num("1"), true},
		{"different numbers", params.Num("1"), params.Num("2"), false},
		{"bools", params.Boolean(true), params.Boolean(true), true},
		{"bool vs string", params.Boolean(true), params.Str("true"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromAny_NormalizesNil(t *testing.T) {
	tree := params.TreeFromAny(map[string]any{
		"missing": nil,
		"count":   3,
		"nested":  map[string]any{"ok": true},
		"list":    []any{"a", 1.5},
	})

	if !tree.Has("missing") || tree.Get("missing") != "" {
		t.Errorf("nil must become empty string, got %#v", tree["missing"])
	}
	if c, _ := tree["count"].(params.Scalar); c.Kind != params.Number || c.Raw != "3" {
		t.Errorf("count = %#v", tree["count"])
	}
	if _, ok := tree["nested"].(params.Tree); !ok {
		t.Errorf("nested = %#v, want Tree", tree["nested"])
	}
	if l, ok := tree["list"].(params.Seq); !ok || len(l) != 2 {
		t.Errorf("list = %#v, want 2-element Seq", tree["list"])
	}
}

func TestTreeFromAny_NonMapping(t *testing.T) {
	if got := params.TreeFromAny("scalar"); len(got) != 0 {
		t.Errorf("expected empty tree, got %v", got)
	}
}

func TestTree_ToAny(t *testing.T) {
	tree := params.Tree{
		"s": params.Str("v"),
		"n": params.Num("42"),
		"b": params.Boolean(false),
		"t": params.Tree{"k": params.Str("x")},
		"q": params.Seq{params.Str("a")},
	}
	out := tree.ToAny()

	if out["s"] != "v" {
		t.Errorf("s = %v", out["s"])
	}
	if out["n"] != float64(42) {
		t.Errorf("n = %v (%T)", out["n"], out["n"])
	}
	if out["b"] != false {
		t.Errorf("b = %v", out["b"])
	}
	if inner, ok := out["t"].(map[string]any); !ok || inner["k"] != "x" {
		t.Errorf("t = %v", out["t"])
	}
	if seq, ok := out["q"].([]any); !ok || seq[0] != "a" {
		t.Errorf("q = %v", out["q"])
	}
}
