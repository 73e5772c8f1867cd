package dag

import (
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// Capability enumerates the payload shapes and execution properties a node
// may expose, per spec.md §4.4's "capability set".
type Capability int

const (
	CapAudioIn Capability = iota
	CapTextIn
	CapJSONIn
	CapAudioOut
	CapTextOut
	CapJSONOut
	CapStreaming
	CapCancellable
)

// CapabilitySet is the set of capabilities a node declares.
type CapabilitySet map[Capability]bool

// Has reports whether cap is present in the set.
func (s CapabilitySet) Has(cap Capability) bool {
	return s[cap]
}

// NewCapabilitySet builds a CapabilitySet from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Node is the contract every compiled node object satisfies. Nodes are
// immutable: all mutable state lives in the execctx.Context or in provider
// objects created inside Execute, per spec.md §4.4.
type Node interface {
	// ID returns this node's stable identifier.
	ID() string

	// Type returns the wire type discriminant this node was built from.
	Type() string

	// Capabilities reports which payload variants this node accepts and
	// produces.
	Capabilities() CapabilitySet

	// Execute runs the node against payload p within ctx, returning the
	// node's output payload or an error. Implementations must respect
	// ctx's cancellation and deadline.
	Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error)
}

// NodeFactory constructs a Node from its definition. Registered per wire
// type string and supplied to Compile; pkg/nodes is the package that
// implements and registers the gateway's built-in node factories.
type NodeFactory func(def NodeDef) (Node, error)
