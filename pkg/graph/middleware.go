package graph

import "github.com/aretw0/stategraph/pkg/domain"

// Middleware wraps the function of a node. It is applied once per node when
// an executor is built, so it may precompute per-node values (names, labels).
type Middleware func(node domain.NodeInfo, next NodeFunc) NodeFunc

// Chain applies middleware so that the first one is the outermost.
func Chain(node domain.NodeInfo, fn NodeFunc, mws ...Middleware) NodeFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			fn = mws[i](node, fn)
		}
	}
	return fn
}
