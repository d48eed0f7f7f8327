package chain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/randalmurphal/flowchain/pkg/chain/expr"
)

// RefType says where a parameter's value comes from.
type RefType string

const (
	// RefFixed uses the literal Value, rendered as a template against
	// already-resolved sibling parameters and the chain's variables.
	RefFixed RefType = "fixed"

	// RefRef reads the variable named by Ref (or by Name when Ref is empty).
	RefRef RefType = "ref"

	// RefInput reads a variable the caller supplies, by Name. A required
	// input that is missing suspends the chain instead of failing it.
	RefInput RefType = "input"
)

// DataType names the shape a parameter value is coerced into.
type DataType string

const (
	TypeObject       DataType = "Object"
	TypeString       DataType = "String"
	TypeNumber       DataType = "Number"
	TypeBoolean      DataType = "Boolean"
	TypeFile         DataType = "File"
	TypeArrayObject  DataType = "Array<Object>"
	TypeArrayString  DataType = "Array<String>"
	TypeArrayNumber  DataType = "Array<Number>"
	TypeArrayBoolean DataType = "Array<Boolean>"
	TypeArrayFile    DataType = "Array<File>"
)

const (
	typeArrayPrefix = "Array<"
	typeArraySuffix = ">"
)

// Element returns the element type of an array type, or "" for scalars.
func (t DataType) Element() DataType {
	s := string(t)
	if strings.HasPrefix(s, typeArrayPrefix) && strings.HasSuffix(s, typeArraySuffix) {
		return DataType(s[len(typeArrayPrefix) : len(s)-len(typeArraySuffix)])
	}
	return ""
}

// Parameter declares one named input of a node.
type Parameter struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	DataType    DataType     `json:"data_type,omitempty"`
	RefType     RefType      `json:"ref_type,omitempty"`
	Ref         string       `json:"ref,omitempty"`
	Value       string       `json:"value,omitempty"`
	Required    bool         `json:"required,omitempty"`
	Default     any          `json:"default,omitempty"`
	Enums       []any        `json:"enums,omitempty"`
	Children    []*Parameter `json:"children,omitempty"`

	// Selection lists the choices offered for an INPUT parameter while the
	// chain is suspended.
	Selection *Selection `json:"selection,omitempty"`
}

// Selection describes the choices a user picks from to supply an INPUT.
type Selection struct {
	Data        []any  `json:"data,omitempty"`
	DataType    string `json:"data_type,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Parameter) Clone() *Parameter {
	if p == nil {
		return nil
	}
	c := *p
	if p.Enums != nil {
		c.Enums = append([]any(nil), p.Enums...)
	}
	if p.Children != nil {
		c.Children = make([]*Parameter, len(p.Children))
		for i, child := range p.Children {
			c.Children[i] = child.Clone()
		}
	}
	if p.Selection != nil {
		sel := *p.Selection
		sel.Data = append([]any(nil), p.Selection.Data...)
		c.Selection = &sel
	}
	return &c
}

// Fixed declares a parameter with a literal (template) value.
func Fixed(name, value string) *Parameter {
	return &Parameter{Name: name, RefType: RefFixed, Value: value}
}

// Ref declares a parameter read from the variable at path.
func Ref(name, path string) *Parameter {
	return &Parameter{Name: name, RefType: RefRef, Ref: path}
}

// Input declares a required parameter the caller must supply.
func Input(name string) *Parameter {
	return &Parameter{Name: name, RefType: RefInput, Required: true}
}

// Typed sets the data type and returns p.
func (p *Parameter) Typed(t DataType) *Parameter {
	p.DataType = t
	return p
}

// Require marks p as required and returns it.
func (p *Parameter) Require() *Parameter {
	p.Required = true
	return p
}

// WithDefault sets the default value and returns p.
func (p *Parameter) WithDefault(v any) *Parameter {
	p.Default = v
	return p
}

// isMissing reports whether v counts as absent for a required parameter.
func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// coerce converts v to the parameter's data type. Strings are trimmed,
// Boolean accepts "true" or "1" (case-insensitive), Number parses integers.
// Array types coerce each element.
func coerce(t DataType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if elem := t.Element(); elem != "" {
		list, ok := v.([]any)
		if !ok {
			return v, nil
		}
		out := make([]any, len(list))
		for i, item := range list {
			c, err := coerce(elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	s, isString := v.(string)
	if !isString {
		if t == TypeNumber {
			if i, f, _, ok := expr.ToNumber(v); ok && float64(i) == f {
				return i, nil
			}
		}
		return v, nil
	}
	s = strings.TrimSpace(s)

	switch t {
	case TypeBoolean:
		return strings.EqualFold(s, "true") || s == "1", nil
	case TypeNumber:
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", s)
		}
		return n, nil
	default:
		return s, nil
	}
}
