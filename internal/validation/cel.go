package validation

import (
	"errors"
	"fmt"

	celgo "github.com/google/cel-go/cel"
)

type celProgram struct {
	program celgo.Program
}

func compileCEL(expression string) (program, error) {
	if expression == "" {
		return nil, errors.New("expression must not be empty")
	}
	env, err := celgo.NewEnv(
		celgo.Variable("self", celgo.MapType(celgo.StringType, celgo.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile cel: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	return &celProgram{program: prg}, nil
}

func (p *celProgram) eval(fields map[string]any) (any, error) {
	out, _, err := p.program.Eval(map[string]any{"self": fields})
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}
