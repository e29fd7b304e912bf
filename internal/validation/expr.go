package validation

import (
	"errors"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprProgram struct {
	program *exprvm.Program
}

func compileExpr(expression string) (program, error) {
	if expression == "" {
		return nil, errors.New("expression must not be empty")
	}
	p, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile expr: %w", err)
	}
	return &exprProgram{program: p}, nil
}

func (p *exprProgram) eval(fields map[string]any) (any, error) {
	env := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		env[k] = v
	}
	env["self"] = fields
	return exprlang.Run(p.program, env)
}
