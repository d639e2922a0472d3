package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// GraphOverlay contains run data to highlight on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromResult highlights the path of a run. The last visited node is
// marked current when the run failed.
func OverlayFromResult(res *domain.Result) *GraphOverlay {
	if res == nil {
		return nil
	}
	o := &GraphOverlay{VisitedNodes: res.Path}
	if res.Status == domain.StatusFailed && len(res.Path) > 0 {
		o.CurrentNode = res.Path[len(res.Path)-1]
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of a compiled graph.
// Shapes: Start and End are circles, tool nodes are subroutines, other nodes
// rectangles. Conditional edges carry their branch label.
func GenerateMermaid(g *graph.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	fmt.Fprintf(&sb, "    %s((\"start\"))\n", sanitizeMermaidID(domain.Start))
	for _, node := range g.Nodes() {
		opener, closer := "[", "]"
		if node.Kind == domain.NodeKindTool {
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.Name), opener, node.Name, closer)
	}
	fmt.Fprintf(&sb, "    %s((\"end\"))\n", sanitizeMermaidID(domain.End))

	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Conditional() {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	switch id {
	case domain.Start:
		return "START"
	case domain.End:
		return "END"
	}
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
