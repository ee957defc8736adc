package template

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sophialabs/payprobe/internal/domain/match"
)

// ExprCompiler compiles boolean check expressions written in the Expr language.
type ExprCompiler struct{}

// Compile type-checks source against the check environment. The expression
// must evaluate to a bool.
func (c *ExprCompiler) Compile(name, source string) (match.CheckEvaluator, error) {
	program, err := expr.Compile(source, expr.Env(buildEnv(match.Subject{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile expr check %q: %w", name, err)
	}
	return &exprEvaluator{source: source, program: program}, nil
}

type exprEvaluator struct {
	source  string
	program *vm.Program
}

func (e *exprEvaluator) Evaluate(s match.Subject) (bool, string, error) {
	out, err := expr.Run(e.program, buildEnv(s))
	if err != nil {
		return false, "", fmt.Errorf("expression evaluation failed: %w", err)
	}
	ok, _ := out.(bool)
	if !ok {
		return false, "expression evaluated to false: " + e.source, nil
	}
	return true, "", nil
}
