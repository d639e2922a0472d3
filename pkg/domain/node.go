package domain

// NodeKind constants define how the executor treats a node.
const (
	// NodeKindStep transforms state and continues immediately.
	NodeKindStep = "step"
	// NodeKindTool dispatches capability calls. While it runs the
	// run status is StatusAwaitingTools.
	NodeKindTool = "tool"
)

// NodeInfo describes a registered node for introspection and visualization.
type NodeInfo struct {
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// GraphInfo is the serializable shape of a compiled graph.
type GraphInfo struct {
	Name     string     `json:"name"`
	Entry    string     `json:"entry"`
	Nodes    []NodeInfo `json:"nodes"`
	Edges    []EdgeInfo `json:"edges"`
	Fields   []string   `json:"fields"`
	Warnings []string   `json:"warnings,omitempty"`
}
