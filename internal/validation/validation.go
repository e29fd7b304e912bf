// Package validation checks entities against rule expressions.
package validation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

// Rule languages.
const (
	LangExpr = "expr"
	LangCEL  = "cel"
)

// Violation codes.
const (
	CodeRule      = "rule"
	CodeEvalError = "evaluation_error"
)

// Rule is a boolean expression over the entity fields. The fields are
// reachable as self.<name>; expr rules also see them as top-level names.
type Rule struct {
	Path    string
	Expr    string
	Message string
	Lang    string
}

func (r Rule) message() string {
	if r.Message != "" {
		return r.Message
	}
	if r.Path != "" {
		return fmt.Sprintf("%s is invalid", r.Path)
	}
	return "The resource is invalid"
}

// Validator checks an entity.
type Validator interface {
	Validate(ctx context.Context, e resource.Entity) []resource.Violation
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, e resource.Entity) []resource.Violation

// Validate calls f.
func (f Func) Validate(ctx context.Context, e resource.Entity) []resource.Violation {
	return f(ctx, e)
}

type chain []Validator

// Chain runs validators in order and concatenates their violations.
func Chain(validators ...Validator) Validator {
	out := make(chain, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (c chain) Validate(ctx context.Context, e resource.Entity) []resource.Violation {
	var out []resource.Violation
	for _, v := range c {
		out = append(out, v.Validate(ctx, e)...)
	}
	return out
}

// program is one compiled rule.
type program interface {
	eval(fields map[string]any) (any, error)
}

type compiledRule struct {
	rule Rule
	prg  program
}

// RuleSet evaluates compiled rules in order.
type RuleSet struct {
	rules []compiledRule
}

// New compiles rules with the engine named by each rule, expr by default.
func New(rules []Rule) (*RuleSet, error) {
	set := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		var (
			prg program
			err error
		)
		switch r.Lang {
		case "", LangExpr:
			prg, err = compileExpr(r.Expr)
		case LangCEL:
			prg, err = compileCEL(r.Expr)
		default:
			err = fmt.Errorf("unknown rule language %q", r.Lang)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Path, err)
		}
		set.rules = append(set.rules, compiledRule{rule: r, prg: prg})
	}
	return set, nil
}

// NewExpr compiles every rule with expr.
func NewExpr(rules []Rule) (*RuleSet, error) {
	return New(withLang(rules, LangExpr))
}

// NewCEL compiles every rule with CEL.
func NewCEL(rules []Rule) (*RuleSet, error) {
	return New(withLang(rules, LangCEL))
}

func withLang(rules []Rule, lang string) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		r.Lang = lang
		out[i] = r
	}
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int { return len(s.rules) }

// Validate evaluates every rule against the entity fields.
func (s *RuleSet) Validate(_ context.Context, e resource.Entity) []resource.Violation {
	if len(s.rules) == 0 {
		return nil
	}
	fields, err := Fields(e)
	if err != nil {
		return []resource.Violation{resource.NewViolation(err.Error(), e).WithCode(CodeEvalError)}
	}

	var out []resource.Violation
	for _, cr := range s.rules {
		res, err := cr.prg.eval(fields)
		if err != nil {
			out = append(out, resource.NewViolation(err.Error(), e).WithPath(cr.rule.Path).WithCode(CodeEvalError))
			continue
		}
		ok, isBool := res.(bool)
		if !isBool {
			msg := fmt.Sprintf("rule %q returned %T, want bool", cr.rule.Expr, res)
			out = append(out, resource.NewViolation(msg, e).WithPath(cr.rule.Path).WithCode(CodeEvalError))
			continue
		}
		if !ok {
			out = append(out, resource.NewViolation(cr.rule.message(), e).WithPath(cr.rule.Path).WithCode(CodeRule))
		}
	}
	return out
}

// Fields returns the JSON object of e.
func Fields(e resource.Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityType(), err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.EntityType(), err)
	}
	return fields, nil
}
