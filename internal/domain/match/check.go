package match

import (
	"github.com/sophialabs/payprobe/internal/domain/params"
)

// Subject is the request data a compiled check runs against.
type Subject struct {
	Bucket    string
	EventType string
	URL       string
	Layers    map[string]params.Tree
}

// Env exposes the subject to expression and template engines. Missing layers
// are present as empty maps.
func (s Subject) Env() map[string]any {
	env := map[string]any{
		"bucket":    s.Bucket,
		"eventType": s.EventType,
		"url":       s.URL,
		"query":     map[string]any{},
		"entrance":  map[string]any{},
		"promotion": map[string]any{},
	}
	for name, layer := range s.Layers {
		env[name] = layer.ToAny()
	}
	return env
}

// CheckEvaluator decides whether a subject satisfies a check. The returned
// string explains a failure.
type CheckEvaluator interface {
	Evaluate(s Subject) (bool, string, error)
}

// CompiledCheck binds a named check to the bucket it applies to.
type CompiledCheck struct {
	Name      string
	Bucket    string
	Evaluator CheckEvaluator
}

// CheckResult is the outcome of one check against one subject.
type CheckResult struct {
	Name    string `json:"name"`
	Matched bool   `json:"matched"`
	Reason  string `json:"reason,omitempty"`
}

// RunCheck evaluates c against s. Evaluation errors count as failures.
func RunCheck(c CompiledCheck, s Subject) CheckResult {
	ok, reason, err := c.Evaluator.Evaluate(s)
	if err != nil {
		return CheckResult{Name: c.Name, Matched: false, Reason: err.Error()}
	}
	return CheckResult{Name: c.Name, Matched: ok, Reason: reason}
}
