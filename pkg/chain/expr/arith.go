package expr

import (
	"fmt"
	"math"
	"strings"
)

var (
	additiveOps       = []string{" + ", " - "}
	multiplicativeOps = []string{" * ", " / ", " % "}
)

// arith evaluates an arithmetic expression. Without any operator the
// expression is a plain operand and resolves like Resolve.
func (e *Evaluator) arith(s string, vars Lookup) (any, error) {
	s = strings.TrimSpace(s)
	for _, ops := range [][]string{additiveOps, multiplicativeOps} {
		idx, op := lastOperator(s, ops)
		if idx < 0 {
			continue
		}
		left, err := e.arith(s[:idx], vars)
		if err != nil {
			return nil, err
		}
		right, err := e.arith(s[idx+len(op):], vars)
		if err != nil {
			return nil, err
		}
		if err := known(s[:idx], left, vars); err != nil {
			return nil, err
		}
		if err := known(s[idx+len(op):], right, vars); err != nil {
			return nil, err
		}
		return applyArith(strings.TrimSpace(op), left, right)
	}
	return Resolve(s, vars), nil
}

// known rejects operands that fell back to a bare identifier literal.
func known(src string, v any, vars Lookup) error {
	src = strings.TrimSpace(src)
	if str, ok := v.(string); !ok || str != src || isQuoted(src) {
		return nil
	}
	if vars != nil {
		if _, ok := vars(src); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownVariable, src)
}

// lastOperator finds the rightmost occurrence of any op outside quotes.
func lastOperator(s string, ops []string) (int, string) {
	var quote byte
	best, bestOp := -1, ""
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		for _, op := range ops {
			if strings.HasPrefix(s[i:], op) && i > 0 {
				best, bestOp = i, op
			}
		}
	}
	return best, bestOp
}

func applyArith(op string, left, right any) (any, error) {
	li, lf, lInt, lok := ToNumber(left)
	ri, rf, rInt, rok := ToNumber(right)

	if !lok || !rok {
		if op == "+" {
			return fmt.Sprint(left) + fmt.Sprint(right), nil
		}
		return nil, fmt.Errorf("%w: %v %s %v", ErrNotNumeric, left, op, right)
	}

	if lInt && rInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, ErrDivideByZero
			}
			return li % ri, nil
		}
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, ErrDivideByZero
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, ErrDivideByZero
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown operator: %s", op)
}
