// Package predicate compiles item predicates written in expr-lang, such as
// the select check that decides whether a cached item is complete enough to
// be served without a network call.
package predicate

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/h0rv/colsync/internal/domain"
)

// Predicate is a compiled boolean expression over one item.
type Predicate struct {
	program    *exprvm.Program
	expression string
}

// Compile compiles expression. The item is bound as `item` and each of its
// top-level fields is bound by name, so `body != nil` and
// `item.body != nil` are equivalent. Undefined names evaluate to nil.
func Compile(expression string) (*Predicate, error) {
	if expression == "" {
		return nil, fmt.Errorf("predicate: expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("predicate %q: %w", expression, err)
	}
	return &Predicate{program: program, expression: expression}, nil
}

// String returns the source expression.
func (p *Predicate) String() string { return p.expression }

// Eval evaluates the predicate against item.
func (p *Predicate) Eval(item domain.Item) (bool, error) {
	env := make(map[string]any, len(item)+1)
	for k, v := range item {
		env[k] = v
	}
	env["item"] = map[string]any(item)

	out, err := exprlang.Run(p.program, env)
	if err != nil {
		return false, fmt.Errorf("predicate %q: %w", p.expression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Func adapts the predicate to a plain item check. Evaluation errors count
// as a failed check, which sends the caller to the network.
func (p *Predicate) Func() func(domain.Item) bool {
	return func(item domain.Item) bool {
		ok, err := p.Eval(item)
		return err == nil && ok
	}
}
