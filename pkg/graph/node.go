package graph

import (
	"context"

	"github.com/aretw0/stategraph/pkg/domain"
)

// NodeFunc transforms state. It returns only the fields it changes.
// Implementations must not retain or mutate the State they receive.
type NodeFunc func(ctx context.Context, s domain.State) (domain.Partial, error)

// Node is a registered step of the graph.
type Node struct {
	name        string
	fn          NodeFunc
	kind        string
	description string
}

// NodeOption configures a node when it is added.
type NodeOption func(*Node)

// AsToolNode marks the node as a tool dispatch step: while it runs the
// run status is awaiting_tools.
func AsToolNode() NodeOption {
	return func(n *Node) {
		n.kind = domain.NodeKindTool
	}
}

// WithDescription attaches a human readable description used by introspection.
func WithDescription(desc string) NodeOption {
	return func(n *Node) {
		n.description = desc
	}
}

// Name returns the node identity.
func (n *Node) Name() string { return n.name }

// Kind returns domain.NodeKindStep or domain.NodeKindTool.
func (n *Node) Kind() string { return n.kind }

// Func returns the node implementation.
func (n *Node) Func() NodeFunc { return n.fn }

// Info returns the introspection view of the node.
func (n *Node) Info() domain.NodeInfo {
	return domain.NodeInfo{Name: n.name, Kind: n.kind, Description: n.description}
}
