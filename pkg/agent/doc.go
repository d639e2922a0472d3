// Package agent provides the prebuilt pieces of a tool-using conversation:
// a chat node that asks a Generator for the next message, a tool node that
// dispatches requested calls to a capability registry, the routing branch
// between them, and constructors for the assembled graphs.
package agent
