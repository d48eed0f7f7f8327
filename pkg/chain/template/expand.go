package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// mustachePattern matches {{ path }} and {{ path ?? default }}.
	mustachePattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

	// bracePattern matches ${path} where path may contain dots.
	bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

	// dollarPattern matches $name followed by a non-word character or end of string.
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)(?:\b|$)`)
)

// Lookup resolves a variable path.
type Lookup = func(path string) (any, bool)

// Vars adapts a plain map to a Lookup.
func Vars(m map[string]any) Lookup {
	return func(path string) (any, bool) {
		v, ok := m[path]
		return v, ok
	}
}

// Expander expands placeholders in strings.
//
// Create with NewExpander() and configure with Option functions.
type Expander struct {
	missingAction MissingAction
	mustacheStyle bool
	braceStyle    bool
	dollarStyle   bool
}

// NewExpander creates a new Expander with the given options.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		mustacheStyle: true,
		braceStyle:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces every placeholder in s with the string form of its value.
//
// Errors are only returned when MissingAction is MissingError and
// a variable without a default is not found.
func (e *Expander) Expand(s string, vars Lookup) (string, error) {
	if s == "" {
		return "", nil
	}

	result := s
	var missing []string

	replace := func(pattern *regexp.Regexp, extract func(match string) string) {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			val, ok := e.resolve(extract(match), vars)
			if ok {
				return format(val)
			}
			switch e.missingAction {
			case MissingEmpty:
				return ""
			case MissingError:
				missing = append(missing, pathOf(extract(match)))
				return match
			default:
				return match
			}
		})
	}

	if e.mustacheStyle {
		replace(mustachePattern, func(m string) string {
			return mustachePattern.FindStringSubmatch(m)[1]
		})
	}
	if e.braceStyle {
		replace(bracePattern, func(m string) string { return m[2 : len(m)-1] })
	}
	if e.dollarStyle {
		replace(dollarPattern, func(m string) string { return m[1:] })
	}

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// Value renders s like Expand, except that an input consisting of exactly
// one placeholder yields the resolved value with its original type.
func (e *Expander) Value(s string, vars Lookup) (any, error) {
	trimmed := strings.TrimSpace(s)
	if e.mustacheStyle {
		if m := mustachePattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
			if v, ok := e.resolve(m[1], vars); ok {
				return v, nil
			}
		}
	}
	if e.braceStyle {
		if m := bracePattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
			if v, ok := e.resolve(m[1], vars); ok {
				return v, nil
			}
		}
	}
	return e.Expand(s, vars)
}

// MustExpand expands placeholders in s and panics on error.
func (e *Expander) MustExpand(s string, vars Lookup) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandMap expands all string values of a map recursively.
//
// Non-string values are copied as-is. On error (with MissingError),
// returns nil and the first error.
func (e *Expander) ExpandMap(m map[string]any, vars Lookup) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.expandValue(v, vars)
		if err != nil {
			return nil, err
		}
		result[k] = expanded
	}
	return result, nil
}

func (e *Expander) expandValue(v any, vars Lookup) (any, error) {
	switch val := v.(type) {
	case string:
		return e.Value(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	default:
		return v, nil
	}
}

// resolve evaluates "path" or "path ?? default".
func (e *Expander) resolve(body string, vars Lookup) (any, bool) {
	path, def, hasDefault := strings.Cut(body, "??")
	path = strings.TrimSpace(path)

	if vars != nil && path != "" {
		if v, ok := vars(path); ok && v != nil {
			return v, true
		}
	}
	if !hasDefault {
		return nil, false
	}
	return literal(strings.TrimSpace(def), vars), true
}

func pathOf(body string) string {
	path, _, _ := strings.Cut(body, "??")
	return strings.TrimSpace(path)
}

func literal(s string, vars Lookup) any {
	if len(s) >= 2 && (s[0] == '\'' && s[len(s)-1] == '\'' || s[0] == '"' && s[len(s)-1] == '"') {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil", "":
		return ""
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if vars != nil {
		if v, ok := vars(s); ok && v != nil {
			return v
		}
	}
	return s
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

var defaultExpander = NewExpander()

// Expand expands placeholders in s using the default expander.
// Missing variables stay as-is.
func Expand(s string, vars Lookup) string {
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// Value renders s using the default expander. See Expander.Value.
func Value(s string, vars Lookup) any {
	v, _ := defaultExpander.Value(s, vars)
	return v
}

// HasPlaceholder reports whether s contains a mustache or brace placeholder.
func HasPlaceholder(s string) bool {
	return mustachePattern.MatchString(s) || bracePattern.MatchString(s)
}
