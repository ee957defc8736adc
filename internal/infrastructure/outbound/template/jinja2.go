package template

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/sophialabs/payprobe/internal/domain/match"
)

// Jinja2Compiler compiles checks written as Pongo2 (Django/Jinja2-style)
// templates. A check passes when the template renders "true".
type Jinja2Compiler struct{}

// Compile parses the source as a Pongo2 template.
func (c *Jinja2Compiler) Compile(name, source string) (match.CheckEvaluator, error) {
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jinja2 check %q: %w", name, err)
	}
	return &jinja2Evaluator{tpl: tpl}, nil
}

type jinja2Evaluator struct {
	tpl *pongo2.Template
}

func (e *jinja2Evaluator) Evaluate(s match.Subject) (bool, string, error) {
	out, err := e.tpl.Execute(pongo2.Context(buildEnv(s)))
	if err != nil {
		return false, "", fmt.Errorf("jinja2 template render failed: %w", err)
	}
	rendered := strings.TrimSpace(out)
	if strings.EqualFold(rendered, "true") {
		return true, "", nil
	}
	return false, fmt.Sprintf("template rendered %q", rendered), nil
}

// DefaultURLTemplate joins the environment prefix, case path and case query.
const DefaultURLTemplate = "{{ prefix|safe }}/{{ path|safe }}?{{ query|safe }}&__funweblogin__=1"

// URLBuilder renders the page URL of a test case.
type URLBuilder struct {
	tpl *pongo2.Template
}

// NewURLBuilder compiles a URL template. An empty source selects DefaultURLTemplate.
// Values are HTML-escaped unless marked |safe.
func NewURLBuilder(source string) (*URLBuilder, error) {
	if source == "" {
		source = DefaultURLTemplate
	}
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile url template: %w", err)
	}
	return &URLBuilder{tpl: tpl}, nil
}

// Build renders the URL for one case.
func (b *URLBuilder) Build(prefix, path, query string) (string, error) {
	out, err := b.tpl.Execute(pongo2.Context{
		"prefix": strings.TrimSuffix(prefix, "/"),
		"path":   strings.TrimPrefix(path, "/"),
		"query":  strings.TrimPrefix(query, "?"),
	})
	if err != nil {
		return "", fmt.Errorf("url template render failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}
