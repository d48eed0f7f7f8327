/*
Package template renders parameter values that reference chain variables.

# Placeholders

Three placeholder styles are recognized:

  - {{ path }} - mustache style, with an optional default: {{ path ?? 'none' }}
  - ${path}    - brace style
  - $name      - dollar style, disabled by default

Paths may be dotted ("user.profile.name"). Resolution is delegated to a
Lookup, so the same path semantics apply as for the rest of the chain.

The default after ?? may be a quoted string, a number, true, false, or
another path.

# Rendering

Expand always produces a string. Maps and slices are rendered as JSON,
everything else with fmt's %v.

Value keeps the resolved type when the whole input is a single placeholder:

	v, _ := template.Value("{{ fetch.items }}", lookup)   // []any
	s, _ := template.Value("count: {{ n }}", lookup)      // "count: 3"

# Missing Variables

By default a missing variable without a default keeps its placeholder:

	result := template.Expand("Hello {{ who }}", nil)
	// result: "Hello {{ who }}"

Configure behavior with options:

	exp := template.NewExpander(template.WithMissingAction(template.MissingEmpty))
	exp = template.NewExpander(template.WithMissingAction(template.MissingError))

# Thread Safety

Expander is safe for concurrent use after construction.
Package-level functions use a shared default expander.
*/
package template
