package services

import (
	"fmt"

	"github.com/PaesslerAG/jsonpath"

	"github.com/sophialabs/payprobe/internal/domain/match"
	"github.com/sophialabs/payprobe/internal/domain/testcase"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/template"
)

// CheckRegistry compiles engine check sources into evaluators by engine name.
type CheckRegistry interface {
	Compile(engine, name, source string) (match.CheckEvaluator, error)
}

// CompiledCase is a test case with its checks ready to evaluate.
type CompiledCase struct {
	Case   *testcase.TestCase
	Checks []match.CompiledCheck
}

// ChecksFor returns the checks that apply to requests of bucket.
func (cc *CompiledCase) ChecksFor(bucket string) []match.CompiledCheck {
	var out []match.CompiledCheck
	for _, c := range cc.Checks {
		if c.Bucket == "" || c.Bucket == bucket {
			out = append(out, c)
		}
	}
	return out
}

// Compiler transforms test cases into compiled cases.
type Compiler struct {
	registry CheckRegistry // nil means engine checks are rejected
}

// NewCompiler creates a Compiler. registry may be nil, in which case cases
// with engine checks fail to compile.
func NewCompiler(registry CheckRegistry) *Compiler {
	return &Compiler{registry: registry}
}

// CompileCase validates tc and compiles its checks.
func (c *Compiler) CompileCase(tc *testcase.TestCase) (*CompiledCase, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	cc := &CompiledCase{Case: tc}
	for i, chk := range tc.Checks {
		name := chk.Name
		if name == "" {
			name = fmt.Sprintf("check[%d]", i)
		}
		ev, err := c.compileCheck(name, chk)
		if err != nil {
			return nil, fmt.Errorf("failed to compile case %q: %w", tc.Name, err)
		}
		cc.Checks = append(cc.Checks, match.CompiledCheck{
			Name:      name,
			Bucket:    chk.Bucket,
			Evaluator: ev,
		})
	}
	return cc, nil
}

func (c *Compiler) compileCheck(name string, chk testcase.Check) (match.CheckEvaluator, error) {
	if chk.IsEngine() {
		if c.registry == nil {
			return nil, fmt.Errorf("check %q: engine %q requested but no registry configured", name, chk.Engine)
		}
		ev, err := c.registry.Compile(chk.Engine, name, chk.Source)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", name, err)
		}
		return ev, nil
	}

	pred, err := match.CompileMatcher(chk.Matcher.Spec())
	if err != nil {
		return nil, fmt.Errorf("check %q: %w", name, err)
	}
	// Validate the expression once so typos surface at load time.
	if _, err := jsonpath.New(chk.Path); err != nil {
		return nil, fmt.Errorf("check %q: invalid path %q: %w", name, chk.Path, err)
	}
	layer := chk.Layer
	if layer == "" {
		layer = "query"
	}
	return &pathEvaluator{layer: layer, path: chk.Path, matcher: chk.Matcher.Spec(), pred: pred}, nil
}

// pathEvaluator extracts a value from one layer via JSONPath and matches it.
type pathEvaluator struct {
	layer   string
	path    string
	matcher string
	pred    match.Predicate
}

func (e *pathEvaluator) Evaluate(s match.Subject) (bool, string, error) {
	data := map[string]any{}
	if tree, ok := s.Layers[e.layer]; ok {
		data = tree.ToAny()
	}
	result, err := jsonpath.Get(e.path, data)
	if err != nil {
		return false, fmt.Sprintf("%s %s: not found", e.layer, e.path), nil
	}
	value := template.Stringify(result)
	if !e.pred(value) {
		return false, fmt.Sprintf("%s %s = %q does not match %q", e.layer, e.path, value, e.matcher), nil
	}
	return true, "", nil
}
