package chain

import (
	"encoding/json"
	"sync"
)

// NodeContext records how often a node was triggered and executed and
// through which edges. It is safe for concurrent use.
type NodeContext struct {
	mu             sync.Mutex
	triggerCount   int
	triggerEdgeIDs []string
	executeCount   int
	executeEdgeIDs []string
	prevNodeID     string
	fromEdgeID     string
	// joinEdgeIDs are the inward edges that fired since the last completed
	// join.
	joinEdgeIDs []string
}

func newNodeContext() *NodeContext {
	return &NodeContext{}
}

// TriggerCount returns how many times the node was reached.
func (nc *NodeContext) TriggerCount() int {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.triggerCount
}

// ExecuteCount returns how many times the node body completed.
func (nc *NodeContext) ExecuteCount() int {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.executeCount
}

// TriggerEdgeIDs returns the inward edges that fired, in order, with repeats.
func (nc *NodeContext) TriggerEdgeIDs() []string {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return append([]string(nil), nc.triggerEdgeIDs...)
}

// ExecuteEdgeIDs returns the edges through which completed runs arrived.
func (nc *NodeContext) ExecuteEdgeIDs() []string {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return append([]string(nil), nc.executeEdgeIDs...)
}

// PrevNodeID returns the node that triggered the latest run.
func (nc *NodeContext) PrevNodeID() string {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.prevNodeID
}

// FromEdgeID returns the edge of the latest trigger.
func (nc *NodeContext) FromEdgeID() string {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.fromEdgeID
}

// IsUpstreamFullyExecuted reports whether every edge in inward has fired at
// least once.
func (nc *NodeContext) IsUpstreamFullyExecuted(inward []*Edge) bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	fired := make(map[string]struct{}, len(nc.triggerEdgeIDs))
	for _, id := range nc.triggerEdgeIDs {
		fired[id] = struct{}{}
	}
	for _, e := range inward {
		if _, ok := fired[e.ID]; !ok {
			return false
		}
	}
	return true
}

// recordTrigger records an arrival and reports whether it completes the
// join over inward. Exactly one arrival observes each completion; the pending
// set then starts over.
func (nc *NodeContext) recordTrigger(prevNodeID, edgeID string, inward []*Edge) bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.triggerCount++
	if edgeID != "" {
		nc.triggerEdgeIDs = append(nc.triggerEdgeIDs, edgeID)
		nc.joinEdgeIDs = append(nc.joinEdgeIDs, edgeID)
	}
	nc.prevNodeID = prevNodeID
	nc.fromEdgeID = edgeID

	fired := make(map[string]struct{}, len(nc.joinEdgeIDs))
	for _, id := range nc.joinEdgeIDs {
		fired[id] = struct{}{}
	}
	for _, e := range inward {
		if _, ok := fired[e.ID]; !ok {
			return false
		}
	}
	nc.joinEdgeIDs = nil
	return true
}

func (nc *NodeContext) recordExecute(edgeID string) int {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.executeCount++
	if edgeID != "" {
		nc.executeEdgeIDs = append(nc.executeEdgeIDs, edgeID)
	}
	return nc.executeCount
}

type nodeContextJSON struct {
	TriggerCount   int      `json:"trigger_count"`
	TriggerEdgeIDs []string `json:"trigger_edge_ids,omitempty"`
	ExecuteCount   int      `json:"execute_count"`
	ExecuteEdgeIDs []string `json:"execute_edge_ids,omitempty"`
	PrevNodeID     string   `json:"prev_node_id,omitempty"`
	FromEdgeID     string   `json:"from_edge_id,omitempty"`
	JoinEdgeIDs    []string `json:"join_edge_ids,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (nc *NodeContext) MarshalJSON() ([]byte, error) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return json.Marshal(nodeContextJSON{
		TriggerCount:   nc.triggerCount,
		TriggerEdgeIDs: nc.triggerEdgeIDs,
		ExecuteCount:   nc.executeCount,
		ExecuteEdgeIDs: nc.executeEdgeIDs,
		PrevNodeID:     nc.prevNodeID,
		FromEdgeID:     nc.fromEdgeID,
		JoinEdgeIDs:    nc.joinEdgeIDs,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (nc *NodeContext) UnmarshalJSON(data []byte) error {
	var raw nodeContextJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.triggerCount = raw.TriggerCount
	nc.triggerEdgeIDs = raw.TriggerEdgeIDs
	nc.executeCount = raw.ExecuteCount
	nc.executeEdgeIDs = raw.ExecuteEdgeIDs
	nc.prevNodeID = raw.PrevNodeID
	nc.fromEdgeID = raw.FromEdgeID
	nc.joinEdgeIDs = raw.JoinEdgeIDs
	return nil
}
