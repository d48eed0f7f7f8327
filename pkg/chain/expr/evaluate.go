package expr

import (
	"errors"
	"strings"
)

// Errors returned by arithmetic evaluation.
var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrNotNumeric      = errors.New("operand is not numeric")
	ErrDivideByZero    = errors.New("division by zero")
)

// BinaryOp is a function that compares two values and returns a boolean result.
type BinaryOp func(left, right any) bool

// Lookup resolves a variable name.
type Lookup func(name string) (any, bool)

// Vars adapts a plain map to a Lookup.
func Vars(m map[string]any) Lookup {
	return func(name string) (any, bool) {
		if m == nil {
			return nil, false
		}
		v, ok := m[name]
		return v, ok
	}
}

// Chain returns a Lookup that consults each lookup in order.
func Chain(lookups ...Lookup) Lookup {
	return func(name string) (any, bool) {
		for _, l := range lookups {
			if l == nil {
				continue
			}
			if v, ok := l(name); ok {
				return v, true
			}
		}
		return nil, false
	}
}

// Evaluator evaluates expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary operator.
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates expression against vars. Conditions yield a bool,
// arithmetic yields a number, and a bare operand yields its resolved value.
func (e *Evaluator) Evaluate(expression string, vars Lookup) (any, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, nil
	}
	if e.isCondition(expression) {
		return e.evaluateCondition(expression, vars)
	}
	return e.arith(expression, vars)
}

// Check evaluates expression and reports its truthiness.
func (e *Evaluator) Check(expression string, vars Lookup) (bool, error) {
	v, err := e.Evaluate(expression, vars)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// Eval is a convenience function that evaluates a condition using
// the default evaluator (no custom operators).
func Eval(expression string, vars map[string]any) (bool, error) {
	return New().Check(expression, Vars(vars))
}

// Calc is a convenience function that evaluates expression and returns its
// value using the default evaluator.
func Calc(expression string, vars map[string]any) (any, error) {
	return New().Evaluate(expression, Vars(vars))
}

type builtinOp struct {
	op      string
	compare BinaryOp
}

// Longer operators first to avoid partial matches.
var builtinOps = []builtinOp{
	{"==", compareEquals},
	{"!=", compareNotEquals},
	{">=", compareGTE},
	{"<=", compareLTE},
	{">", compareGT},
	{"<", compareLT},
	{" contains ", compareContains},
}

func (e *Evaluator) isCondition(expression string) bool {
	if strings.HasPrefix(expression, "not ") || strings.HasPrefix(expression, "!") {
		return true
	}
	if strings.Contains(expression, " and ") || strings.Contains(expression, " or ") {
		return true
	}
	for _, op := range builtinOps {
		if strings.Contains(expression, op.op) {
			return true
		}
	}
	for name := range e.customOps {
		if strings.Contains(expression, " "+name+" ") {
			return true
		}
	}
	return false
}

// evaluateCondition evaluates a condition expression.
// Supports: ==, !=, <, >, <=, >=, and, or, not, !, contains
func (e *Evaluator) evaluateCondition(expression string, vars Lookup) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, nil
	}

	if strings.HasPrefix(expression, "not ") {
		result, err := e.evaluateCondition(strings.TrimPrefix(expression, "not "), vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	if strings.HasPrefix(expression, "!") {
		result, err := e.evaluateCondition(strings.TrimPrefix(expression, "!"), vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	// OR binds looser than AND, so split on it first.
	if parts := strings.SplitN(expression, " or ", 2); len(parts) == 2 {
		left, err := e.evaluateCondition(parts[0], vars)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return e.evaluateCondition(parts[1], vars)
	}

	if parts := strings.SplitN(expression, " and ", 2); len(parts) == 2 {
		left, err := e.evaluateCondition(parts[0], vars)
		if err != nil {
			return false, err
		}
		if !left {
			return false, nil
		}
		return e.evaluateCondition(parts[1], vars)
	}

	for _, op := range builtinOps {
		if parts := strings.SplitN(expression, op.op, 2); len(parts) == 2 {
			left, right, err := e.operands(parts[0], parts[1], vars)
			if err != nil {
				return false, err
			}
			return op.compare(left, right), nil
		}
	}

	for name, fn := range e.customOps {
		if parts := strings.SplitN(expression, " "+name+" ", 2); len(parts) == 2 {
			left, right, err := e.operands(parts[0], parts[1], vars)
			if err != nil {
				return false, err
			}
			return fn(left, right), nil
		}
	}

	v, err := e.arith(expression, vars)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

func (e *Evaluator) operands(left, right string, vars Lookup) (any, any, error) {
	l, err := e.arith(left, vars)
	if err != nil {
		return nil, nil, err
	}
	r, err := e.arith(right, vars)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}
