package match

import (
	"fmt"
	"strings"

	"github.com/sophialabs/payprobe/internal/domain/params"
)

// Mismatch describes one failing key of a deep match.
type Mismatch struct {
	Path     string `json:"path"`
	Reason   string `json:"reason"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

func (m Mismatch) String() string {
	if m.Expected == "" && m.Actual == "" {
		return fmt.Sprintf("%s: %s", m.Path, m.Reason)
	}
	return fmt.Sprintf("%s: %s (expected %s, actual %s)", m.Path, m.Reason, m.Expected, m.Actual)
}

// Result is the outcome of a deep match.
type Result struct {
	Matched    bool       `json:"matched"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Matches reports whether actual satisfies expected as a subset: every key of
// expected must be present in actual with a matching value. Keys only present
// in actual are ignored. All keys are checked so that every mismatch is reported.
func Matches(actual, expected params.Tree) Result {
	m := &matcher{}
	ok := m.tree("$", actual, expected)
	return Result{Matched: ok, Mismatches: m.mismatches}
}

type matcher struct {
	mismatches []Mismatch
}

func (m *matcher) fail(path, reason string, expected, actual params.Value) {
	mm := Mismatch{Path: path, Reason: reason}
	if expected != nil {
		mm.Expected = params.Describe(expected)
	}
	if actual != nil {
		mm.Actual = params.Describe(actual)
	}
	m.mismatches = append(m.mismatches, mm)
}

func (m *matcher) tree(path string, actual, expected params.Tree) bool {
	if len(expected) == 0 {
		return true
	}
	if len(actual) == 0 {
		m.fail(path, "actual data is empty", nil, nil)
		return false
	}

	ok := true
	for _, key := range expected.Keys() {
		keyPath := joinPath(path, key)
		act, present := actual[key]
		if !present {
			m.fail(keyPath, "key missing from actual data", expected[key], nil)
			ok = false
			continue
		}
		if !m.value(keyPath, act, expected[key]) {
			ok = false
		}
	}
	return ok
}

func (m *matcher) value(path string, actual, expected params.Value) bool {
	switch exp := expected.(type) {
	case params.Tree:
		if act, isTree := actual.(params.Tree); isTree {
			if !m.tree(path, act, exp) {
				m.fail(path, "nested parameters differ", nil, nil)
				return false
			}
			return true
		}
	case params.Seq:
		if act, isSeq := actual.(params.Seq); isSeq {
			return m.seq(path, act, exp)
		}
	case params.Scalar:
		if act, isScalar := actual.(params.Scalar); isScalar && act.Equal(exp) {
			return true
		}
	}
	m.fail(path, "value differs", expected, actual)
	return false
}

func (m *matcher) seq(path string, actual, expected params.Seq) bool {
	if len(actual) != len(expected) {
		m.fail(path, fmt.Sprintf("sequence length differs (expected %d, actual %d)", len(expected), len(actual)), expected, actual)
		return false
	}

	ok := true
	for i := range expected {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if !m.value(itemPath, actual[i], expected[i]) {
			ok = false
		}
	}
	return ok
}

func joinPath(parent, key string) string {
	if strings.ContainsAny(key, ".[]") {
		return fmt.Sprintf("%s[%q]", parent, key)
	}
	return parent + "." + key
}
