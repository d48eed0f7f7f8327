package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/flowchain/pkg/chain"
)

// Event is the serializable form of a chain lifecycle event.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	ChainID   string         `json:"chain_id"`
	NodeID    string         `json:"node_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Before    string         `json:"before,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Value     any            `json:"value,omitempty"`
	Awaiting  []string       `json:"awaiting,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New creates an event of the given type with a fresh ID.
func New(typ, chainID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		ChainID:   chainID,
		Timestamp: time.Now().UTC(),
	}
}

// FromChain converts a chain event.
func FromChain(evt chain.Event) Event {
	e := New(string(evt.Type), evt.ChainID)
	if !evt.Time.IsZero() {
		e.Timestamp = evt.Time.UTC()
	}
	e.NodeID = evt.NodeID
	e.Status = string(evt.Status)
	e.Before = string(evt.Before)
	e.Outputs = evt.Outputs
	e.Value = evt.Value
	if evt.Suspension != nil {
		e.Awaiting = evt.Suspension.Names()
	}
	if evt.Err != nil {
		e.Error = evt.Err.Error()
	}
	return e
}

// Bytes returns the JSON encoding of e.
func (e Event) Bytes() ([]byte, error) {
	return json.Marshal(e)
}
