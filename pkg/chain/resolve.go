package chain

import (
	"fmt"

	"github.com/randalmurphal/flowchain/pkg/chain/template"
)

// fixedExpander renders FIXED parameter values. Unresolved placeholders
// render empty so a required FIXED parameter built only from missing
// variables is reported as missing.
var fixedExpander = template.NewExpander(template.WithMissingAction(template.MissingEmpty))

// resolveParameters binds declared parameters to values.
//
// A required INPUT parameter that resolves to nothing is collected into the
// returned Suspension; resolution continues so every missing input is
// reported at once. A required FIXED or REF parameter that resolves to
// nothing is a ConfigurationError, which is never resumable.
func resolveParameters(nodeID string, params []*Parameter, lookup func(string) (any, bool)) (map[string]any, *Suspension, error) {
	values := make(map[string]any, len(params))
	var missing []*Parameter

	for _, p := range params {
		v, err := resolveOne(p, values, lookup)
		if err != nil {
			return nil, nil, &ConfigurationError{NodeID: nodeID, Parameter: p.Name, Err: err}
		}

		if len(p.Children) > 0 && isMissing(v) {
			nested, susp, err := resolveParameters(nodeID, p.Children, lookup)
			if err != nil {
				return nil, nil, err
			}
			if susp != nil {
				missing = append(missing, susp.Parameters...)
				continue
			}
			v = nested
		}

		if isMissing(v) && p.Default != nil {
			v = p.Default
		}

		if p.Required && isMissing(v) {
			if p.RefType == RefInput {
				missing = append(missing, p)
				continue
			}
			return nil, nil, &ConfigurationError{NodeID: nodeID, Parameter: p.Name, Err: ErrMissingParameter}
		}

		v, err = coerce(p.DataType, v)
		if err != nil {
			return nil, nil, &ConfigurationError{NodeID: nodeID, Parameter: p.Name, Err: err}
		}
		values[p.Name] = v
	}

	if len(missing) > 0 {
		return values, &Suspension{NodeID: nodeID, Parameters: missing}, nil
	}
	return values, nil, nil
}

// resolveOne looks up the raw value of p.
func resolveOne(p *Parameter, siblings map[string]any, lookup func(string) (any, bool)) (any, error) {
	switch p.RefType {
	case RefFixed:
		if p.Value == "" {
			return nil, nil
		}
		vars := func(path string) (any, bool) {
			if v, ok := siblings[path]; ok {
				return v, true
			}
			return lookup(path)
		}
		return fixedExpander.Value(p.Value, vars)
	case RefInput:
		v, _ := lookup(p.Name)
		return v, nil
	case RefRef, "":
		path := p.Ref
		if path == "" {
			path = p.Name
		}
		v, _ := lookup(path)
		return v, nil
	default:
		return nil, fmt.Errorf("unknown ref type %q", p.RefType)
	}
}
