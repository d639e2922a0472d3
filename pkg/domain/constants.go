package domain

// Reserved node names. They can appear in edges but never name a registered node.
const (
	// Start is the virtual source of the edge that designates the entry node.
	Start = "__start__"
	// End is the terminal marker. Routing to End completes the run.
	End = "__end__"
)

// Labels produced by the tool-call routing branch.
const (
	LabelHasToolCall = "has-tool-call"
	LabelDone        = "done"
)

// IsReserved reports whether name is one of the graph markers.
func IsReserved(name string) bool {
	return name == Start || name == End
}
