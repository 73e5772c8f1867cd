package dag

// validateStructure performs the structural checks spec.md §4.5 requires
// before any node is instantiated or condition compiled: non-emptiness,
// size limits, id uniqueness, and reference resolvability.
func validateStructure(doc Document) error {
	if len(doc.Nodes) == 0 {
		return &StructuralError{Kind: "empty_dag", Message: "document declares no nodes"}
	}
	if len(doc.Nodes) > MaxNodes {
		return &StructuralError{Kind: "oversize_dag", Message: "node count exceeds the compiler limit"}
	}
	if len(doc.Edges) > MaxEdges {
		return &StructuralError{Kind: "oversize_dag", Message: "edge count exceeds the compiler limit"}
	}

	ids := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return &StructuralError{Kind: "empty_node_id", Message: "a node definition has an empty id"}
		}
		if ids[n.ID] {
			return &StructuralError{Kind: "duplicate_id", NodeID: n.ID, Message: "node id is declared more than once"}
		}
		ids[n.ID] = true
	}

	for _, e := range doc.Edges {
		if !ids[e.From] {
			return &StructuralError{Kind: "unknown_node_reference", NodeID: e.From, Message: "edge references an undeclared source node"}
		}
		if !ids[e.To] {
			return &StructuralError{Kind: "unknown_node_reference", NodeID: e.To, Message: "edge references an undeclared target node"}
		}
		if e.Switch != nil {
			for _, target := range e.Switch.Cases {
				if !ids[target] {
					return &StructuralError{Kind: "unknown_node_reference", NodeID: target, Message: "switch case references an undeclared target node"}
				}
			}
			if e.Switch.HasDefault && e.Switch.Default != "" && !ids[e.Switch.Default] {
				return &StructuralError{Kind: "unknown_node_reference", NodeID: e.Switch.Default, Message: "switch default references an undeclared target node"}
			}
		}
	}

	if doc.EntryNode == "" {
		return &StructuralError{Kind: "missing_entry", Message: "document declares no entry node"}
	}
	if !ids[doc.EntryNode] {
		return &StructuralError{Kind: "missing_entry", NodeID: doc.EntryNode, Message: "entry node is not a declared node"}
	}

	if len(doc.ExitNodes) == 0 {
		return &StructuralError{Kind: "missing_exit", Message: "document declares no exit nodes"}
	}
	for _, id := range doc.ExitNodes {
		if !ids[id] {
			return &StructuralError{Kind: "missing_exit", NodeID: id, Message: "exit node is not a declared node"}
		}
	}

	return nil
}
