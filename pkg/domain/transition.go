package domain

// EdgeInfo describes one routing link of a compiled graph.
type EdgeInfo struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Label is the branch label selecting this edge.
	// If empty, the edge is unconditional.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Conditional reports whether the edge is selected by a branch label.
func (e EdgeInfo) Conditional() bool {
	return e.Label != ""
}
