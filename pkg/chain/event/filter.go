package event

import "strings"

// Filter selects the events a subscription receives. Empty fields match
// everything; non-empty fields must all match.
type Filter struct {
	// Types lists event types. A type also matches its dotted subtypes:
	// "node" receives "node.start" and "node.end".
	Types []string

	// ChainIDs restricts delivery to events raised by these chains. Events
	// from nested chains carry the nested chain's ID.
	ChainIDs []string

	// NodeIDs restricts delivery to events about these nodes.
	NodeIDs []string
}

// Types returns a filter on event types only.
func Types(types ...string) Filter {
	return Filter{Types: types}
}

// Matches reports whether evt passes the filter.
func (f Filter) Matches(evt Event) bool {
	return matchType(f.Types, evt.Type) &&
		matchExact(f.ChainIDs, evt.ChainID) &&
		matchExact(f.NodeIDs, evt.NodeID)
}

func matchType(types []string, typ string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == typ || strings.HasPrefix(typ, t+".") {
			return true
		}
	}
	return false
}

func matchExact(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if want == v {
			return true
		}
	}
	return false
}
