package testcase

import (
	"errors"
	"fmt"

	"github.com/sophialabs/payprobe/internal/domain/params"
)

// TestCase is one page to open, exercise and validate.
type TestCase struct {
	Name   string
	Path   string
	Query  string
	Expect ExpectationSet
	Checks []Check

	SourceFile  string
	SourceIndex int
}

// ExpectationSet holds the expected parameters per captured layer. An empty
// tree places no constraint.
type ExpectationSet struct {
	ShareParams     params.Tree // report query strings
	EntranceParams  params.Tree // pay_entrance "entrance" blob
	PromotionParams params.Tree // pay_entrance "promotion" blob
	PayParams       params.Tree // pay_entrance query string
}

// Empty reports whether no expectation is set.
func (e ExpectationSet) Empty() bool {
	return len(e.ShareParams) == 0 && len(e.EntranceParams) == 0 &&
		len(e.PromotionParams) == 0 && len(e.PayParams) == 0
}

// Check engines.
const (
	EngineExpr   = "expr"
	EngineJinja2 = "jinja2"
)

// Check is an extra assertion over captured requests. A path check extracts
// Path from Layer with JSONPath and applies Matcher; an engine check evaluates
// Source with Engine and passes when the result is true.
type Check struct {
	Name    string
	Bucket  string // "report", "pay_entrance" or "" for both
	Layer   string // "query", "entrance" or "promotion"
	Path    string
	Matcher StringMatcher
	Engine  string
	Source  string
}

// IsEngine reports whether the check is evaluated by an expression engine.
func (c Check) IsEngine() bool {
	return c.Engine != ""
}

// StringMatcher represents a string matching rule.
// If Exact is non-empty, it's an exact match (prefixed with "=" in YAML).
// Otherwise, Pattern is treated as a regex.
type StringMatcher struct {
	Exact   string
	Pattern string
	Negate  bool
}

// IsExact returns true if this matcher uses exact comparison.
func (m StringMatcher) IsExact() bool {
	return m.Exact != ""
}

// Value returns the raw string value to match against.
func (m StringMatcher) Value() string {
	if m.Exact != "" {
		return m.Exact
	}
	return m.Pattern
}

// Spec renders the matcher in the "=exact" / "!negated" / regex notation.
func (m StringMatcher) Spec() string {
	s := m.Pattern
	if m.IsExact() {
		s = "=" + m.Exact
	}
	if m.Negate {
		s = "!" + s
	}
	return s
}

// ParseStringMatcher parses the "=exact" / "!negated" / regex notation.
func ParseStringMatcher(s string) StringMatcher {
	var m StringMatcher
	if len(s) > 0 && s[0] == '!' {
		m.Negate = true
		s = s[1:]
	}
	if len(s) > 0 && s[0] == '=' {
		m.Exact = s[1:]
		if m.Exact == "" {
			// "=" alone means exactly the empty string
			m.Pattern = "^$"
		}
		return m
	}
	m.Pattern = s
	return m
}

var (
	errEmptyName = errors.New("name is required")
	errNoTarget  = errors.New("path is required")
)

// Validate checks the case is complete enough to run.
func (tc *TestCase) Validate() error {
	if tc.Name == "" {
		return errEmptyName
	}
	if tc.Path == "" {
		return fmt.Errorf("case %q: %w", tc.Name, errNoTarget)
	}
	for i, c := range tc.Checks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("case %q: check %d: %w", tc.Name, i, err)
		}
	}
	return nil
}

// Validate checks the shape of a check definition.
func (c Check) Validate() error {
	switch c.Bucket {
	case "", "report", "pay_entrance":
	default:
		return fmt.Errorf("unknown bucket %q", c.Bucket)
	}
	if c.IsEngine() {
		if c.Engine != EngineExpr && c.Engine != EngineJinja2 {
			return fmt.Errorf("unknown engine %q", c.Engine)
		}
		if c.Source == "" {
			return errors.New("engine check needs a source")
		}
		return nil
	}
	if c.Path == "" {
		return errors.New("check needs either a path or an engine")
	}
	switch c.Layer {
	case "", "query", "entrance", "promotion":
	default:
		return fmt.Errorf("unknown layer %q", c.Layer)
	}
	return nil
}
