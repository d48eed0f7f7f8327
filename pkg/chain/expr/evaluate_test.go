package expr

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
)

func TestEval_Comparisons(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"string equality", "status == 'active'", map[string]any{"status": "active"}, true},
		{"double quoted", `status == "active"`, map[string]any{"status": "active"}, true},
		{"string inequality", "status != 'active'", map[string]any{"status": "idle"}, true},
		{"int against int64 literal", "count == 5", map[string]any{"count": 5}, true},
		{"float against int", "ratio == 1", map[string]any{"ratio": 1.0}, true},
		{"boolean equality", "enabled == true", map[string]any{"enabled": true}, true},
		{"greater than", "count > 5", map[string]any{"count": int64(10)}, true},
		{"less or equal", "count <= 5", map[string]any{"count": int32(5)}, true},
		{"greater or equal false", "price >= 10.5", map[string]any{"price": float32(10)}, false},
		{"numeric string", "value > 5", map[string]any{"value": "10"}, true},
		{"substring", "message contains 'err'", map[string]any{"message": "an error"}, true},
		{"membership", "tags contains 'go'", map[string]any{"tags": []any{"rust", "go"}}, true},
		{"membership miss", "tags contains 'c'", map[string]any{"tags": []any{"rust", "go"}}, false},
		{"dotted identifier", "user.age > 18", map[string]any{"user.age": 21}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_LogicalOperators(t *testing.T) {
	vars := map[string]any{"a": true, "b": false, "n": 3}
	tests := []struct {
		expr string
		want bool
	}{
		{"a and b", false},
		{"a or b", true},
		{"not b", true},
		{"!a", false},
		{"!!a", true},
		{"not not a", true},
		{"b and a or a", true},
		{"a or b and b", true},
		{"n > 1 and n < 5", true},
		{"n > 5 or n == 3", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCalc_Arithmetic(t *testing.T) {
	vars := map[string]any{"x": int64(1), "y": 2, "price": 2.5, "name": "ada"}
	tests := []struct {
		expr string
		want any
	}{
		{"x + y", int64(3)},
		{"x + y * 4", int64(9)},
		{"10 - x - y", int64(7)},
		{"price * 2", 5.0},
		{"y / 4", 0.5},
		{"7 % 4", int64(3)},
		{"'hi ' + name", "hi ada"},
		{"x", int64(1)},
		{"'literal'", "literal"},
		{"x + y > 2", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Calc(tt.expr, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Calc(%q) = %v (%T), want %v (%T)", tt.expr, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestCalc_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"missing + 1", ErrUnknownVariable},
		{"1 / 0", ErrDivideByZero},
		{"5 % 0", ErrDivideByZero},
		{"'a' * 2", ErrNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Calc(tt.expr, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Calc(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestEvaluator_CustomOperator(t *testing.T) {
	e := New(WithCustomOperator("matches", func(left, right any) bool {
		matched, _ := regexp.MatchString(fmt.Sprint(right), fmt.Sprint(left))
		return matched
	}))

	got, err := e.Check("name matches '^test.*'", Vars(map[string]any{"name": "testing"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected match")
	}
}

func TestChain_LookupOrder(t *testing.T) {
	first := Vars(map[string]any{"x": "first"})
	second := Vars(map[string]any{"x": "second", "y": "second"})
	l := Chain(nil, first, second)

	if v, _ := l("x"); v != "first" {
		t.Errorf("x = %v, want first", v)
	}
	if v, _ := l("y"); v != "second" {
		t.Errorf("y = %v, want second", v)
	}
	if _, ok := l("z"); ok {
		t.Error("z should not resolve")
	}
}

func TestResolve(t *testing.T) {
	vars := Vars(map[string]any{"known": 42})
	tests := []struct {
		in   string
		want any
	}{
		{"'quoted'", "quoted"},
		{"true", true},
		{"FALSE", false},
		{"null", nil},
		{"12", int64(12)},
		{"1.5", 1.5},
		{"known", 42},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Resolve(tt.in, vars); got != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{true, true},
		{"", false},
		{"x", true},
		{0, false},
		{int64(2), true},
		{0.0, false},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
		{struct{}{}, true},
	}
	for _, tt := range tests {
		if got := IsTruthy(tt.v); got != tt.want {
			t.Errorf("IsTruthy(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestToNumber(t *testing.T) {
	if i, _, isInt, ok := ToNumber("17"); !ok || !isInt || i != 17 {
		t.Errorf("ToNumber(\"17\") = %v %v %v", i, isInt, ok)
	}
	if _, f, isInt, ok := ToNumber(uint8(3)); !ok || !isInt || f != 3 {
		t.Errorf("ToNumber(uint8) = %v %v %v", f, isInt, ok)
	}
	if _, _, _, ok := ToNumber("abc"); ok {
		t.Error("abc should not be numeric")
	}
	if got := ToFloat64(true); got != 0 {
		t.Errorf("ToFloat64(true) = %v", got)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		left, right any
		op          string
		want        bool
		wantErr     bool
	}{
		{"hello", "hello", "==", true, false},
		{"hello", "world", "!=", true, false},
		{5, 10, "<", true, false},
		{10, 5, ">", true, false},
		{5, 5, "<=", true, false},
		{5, 5, ">=", true, false},
		{"hello world", "world", "contains", true, false},
		{1, 2, "??", false, true},
	}
	for _, tt := range tests {
		got, err := Compare(tt.left, tt.right, tt.op)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Compare(%v, %v, %q) expected error", tt.left, tt.right, tt.op)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("Compare(%v, %v, %q) = %v, want %v", tt.left, tt.right, tt.op, got, tt.want)
		}
	}
}

func TestEvaluate_EmptyIsFalse(t *testing.T) {
	got, err := New().Evaluate("   ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != false {
		t.Errorf("Evaluate(blank) = %v, want false", got)
	}
}
