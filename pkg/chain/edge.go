package chain

// Edge is a directed connection between two nodes of the same chain.
type Edge struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Target    string     `json:"target"`
	Condition *Condition `json:"condition,omitempty"`
}
