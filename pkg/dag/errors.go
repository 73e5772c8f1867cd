package dag

import "fmt"

// StructuralError reports a problem found during structural validation —
// before any node is instantiated or any condition compiled. Per spec.md
// §7, structural errors are surfaced at compile time; execution never
// starts.
type StructuralError struct {
	// Kind is a short machine-checkable category, e.g. "empty_dag",
	// "unknown_node_reference", "duplicate_id", "oversize_dag",
	// "missing_entry", "missing_exit".
	Kind string

	// NodeID names the offending node, when applicable.
	NodeID string

	Message string
}

func (e *StructuralError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("dag: %s (node %q): %s", e.Kind, e.NodeID, e.Message)
	}
	return fmt.Sprintf("dag: %s: %s", e.Kind, e.Message)
}

// CycleDetectedError reports that the graph contains a cycle reachable
// from nodeID. Which node in the cycle is named is implementation-chosen
// but stable for a given graph, per spec.md's end-to-end scenario 5.
type CycleDetectedError struct {
	NodeID string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dag: cycle detected at node %q", e.NodeID)
}

// UnknownNodeTypeError reports a node definition whose Type has no
// registered NodeFactory.
type UnknownNodeTypeError struct {
	NodeID, Type string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("dag: node %q: unknown node type %q", e.NodeID, e.Type)
}

// ConditionCompileError wraps a failure compiling an edge's condition,
// switch, or transform, carrying the offending edge for diagnostics.
type ConditionCompileError struct {
	From, To string
	Err      error
}

func (e *ConditionCompileError) Error() string {
	return fmt.Sprintf("dag: edge %s->%s: %v", e.From, e.To, e.Err)
}

func (e *ConditionCompileError) Unwrap() error { return e.Err }
