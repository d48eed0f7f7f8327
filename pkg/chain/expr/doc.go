/*
Package expr provides expression evaluation for chain conditions and
computed values.

# Overview

expr implements a small expression language used by edge and node
conditions, loop break conditions, and computed outputs. Variables are
resolved through a Lookup function so the caller decides where names come
from (a chain's variable store, a node's resolved parameters, or both).

# Expression Syntax

	<expr> := <comparison>
	        | <expr> 'and' <expr>
	        | <expr> 'or' <expr>
	        | 'not' <expr>
	        | '!' <expr>
	        | <arith>

	<comparison> := <arith> <op> <arith>
	<op> := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<arith> := <arith> ('+' | '-') <term> | <term>
	<term> := <term> ('*' | '/' | '%') <value> | <value>
	<value> := 'string' | "string" | number | true | false | null | identifier

Arithmetic operators must be surrounded by spaces ("a + b", not "a+b") so
that negative literals and dotted identifiers stay unambiguous.

# Results

Evaluate returns a bool for conditions and comparisons, an int64 or float64
for arithmetic, and the resolved value for a bare operand. Check coerces the
result with IsTruthy.

Integer operands produce int64 results except for division, which always
produces float64. "+" concatenates when either operand is not numeric.

# Identifiers

Identifiers may be dotted ("fetch.user.age"). They are passed to the Lookup
as-is; path semantics belong to the caller. An identifier the Lookup does not
know is treated as a bare string literal in comparisons and as an error in
arithmetic.

# Examples

	status == 'ready' and count > 0
	enabled or override
	not disabled
	retries + 1 >= limit
	price * quantity

# Custom Operators

Register custom binary operators:

	e := expr.New(
	    expr.WithCustomOperator("matches", func(left, right any) bool {
	        matched, _ := regexp.MatchString(fmt.Sprint(right), fmt.Sprint(left))
	        return matched
	    }),
	)
	ok, _ := e.Check("name matches '^test.*'", expr.Vars(vars))
*/
package expr
