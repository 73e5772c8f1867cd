package dag_test

import (
	"errors"
	"testing"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type stubNode struct {
	id  string
	typ string
}

func (s stubNode) ID() string                   { return s.id }
func (s stubNode) Type() string                 { return s.typ }
func (s stubNode) Capabilities() dag.CapabilitySet { return dag.NewCapabilitySet() }
func (s stubNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	return p, nil
}

func stubFactory(def dag.NodeDef) (dag.Node, error) {
	return stubNode{id: def.ID, typ: def.Type}, nil
}

func passthroughDoc() dag.Document {
	return dag.Document{
		ID:   "doc-1",
		Name: "passthrough",
		Nodes: []dag.NodeDef{
			{ID: "in", Type: "text_input"},
			{ID: "out", Type: "text_output"},
		},
		Edges: []dag.EdgeDef{
			{From: "in", To: "out"},
		},
		EntryNode: "in",
		ExitNodes: []string{"out"},
	}
}

func factories() map[string]dag.NodeFactory {
	return map[string]dag.NodeFactory{
		"text_input":  stubFactory,
		"text_output": stubFactory,
		"router":      stubFactory,
		"join":        stubFactory,
	}
}

// ── structural validation ───────────────────────────────────────────────────

func TestCompileRejectsEmptyDocument(t *testing.T) {
	_, err := dag.Compile(dag.Document{}, factories())
	var structErr *dag.StructuralError
	if !errors.As(err, &structErr) || structErr.Kind != "empty_dag" {
		t.Fatalf("expected empty_dag structural error, got %v", err)
	}
}

func TestCompileRejectsDuplicateNodeID(t *testing.T) {
	doc := passthroughDoc()
	doc.Nodes = append(doc.Nodes, dag.NodeDef{ID: "in", Type: "text_input"})

	_, err := dag.Compile(doc, factories())
	var structErr *dag.StructuralError
	if !errors.As(err, &structErr) || structErr.Kind != "duplicate_id" {
		t.Fatalf("expected duplicate_id structural error, got %v", err)
	}
}

func TestCompileRejectsUnknownEdgeReference(t *testing.T) {
	doc := passthroughDoc()
	doc.Edges = append(doc.Edges, dag.EdgeDef{From: "in", To: "ghost"})

	_, err := dag.Compile(doc, factories())
	var structErr *dag.StructuralError
	if !errors.As(err, &structErr) || structErr.Kind != "unknown_node_reference" {
		t.Fatalf("expected unknown_node_reference structural error, got %v", err)
	}
}

func TestCompileRejectsMissingEntry(t *testing.T) {
	doc := passthroughDoc()
	doc.EntryNode = ""

	_, err := dag.Compile(doc, factories())
	var structErr *dag.StructuralError
	if !errors.As(err, &structErr) || structErr.Kind != "missing_entry" {
		t.Fatalf("expected missing_entry structural error, got %v", err)
	}
}

func TestCompileRejectsMissingExit(t *testing.T) {
	doc := passthroughDoc()
	doc.ExitNodes = nil

	_, err := dag.Compile(doc, factories())
	var structErr *dag.StructuralError
	if !errors.As(err, &structErr) || structErr.Kind != "missing_exit" {
		t.Fatalf("expected missing_exit structural error, got %v", err)
	}
}

// ── node instantiation ───────────────────────────────────────────────────────

func TestCompileRejectsUnknownNodeType(t *testing.T) {
	doc := passthroughDoc()
	doc.Nodes[1].Type = "mystery_node"

	_, err := dag.Compile(doc, factories())
	var typeErr *dag.UnknownNodeTypeError
	if !errors.As(err, &typeErr) || typeErr.NodeID != "out" {
		t.Fatalf("expected unknown node type error for 'out', got %v", err)
	}
}

// ── topological sort / cycle detection ──────────────────────────────────────

func TestCompileSucceedsOnSimplePassthrough(t *testing.T) {
	g, err := dag.Compile(passthroughDoc(), factories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.TopoOrder) != 2 {
		t.Fatalf("expected 2 nodes in topo order, got %d", len(g.TopoOrder))
	}
	if g.TopoOrder[0] != g.NodeIndex["in"] || g.TopoOrder[1] != g.NodeIndex["out"] {
		t.Fatalf("expected topo order [in, out], got %v (index: %v)", g.TopoOrder, g.NodeIndex)
	}
	if g.EntryIndex != g.NodeIndex["in"] {
		t.Error("expected entry index to resolve to 'in'")
	}
	if len(g.ExitIndices) != 1 || g.ExitIndices[0] != g.NodeIndex["out"] {
		t.Error("expected exit indices to resolve to ['out']")
	}
}

func TestCompileDetectsDirectCycle(t *testing.T) {
	doc := dag.Document{
		Nodes: []dag.NodeDef{
			{ID: "a", Type: "text_input"},
			{ID: "b", Type: "text_output"},
		},
		Edges: []dag.EdgeDef{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
		EntryNode: "a",
		ExitNodes: []string{"b"},
	}

	_, err := dag.Compile(doc, factories())
	var cycleErr *dag.CycleDetectedError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected a cycle detected error, got %v", err)
	}
}

func TestCompileDetectsIndirectCycle(t *testing.T) {
	doc := dag.Document{
		Nodes: []dag.NodeDef{
			{ID: "a", Type: "text_input"},
			{ID: "b", Type: "router"},
			{ID: "c", Type: "text_output"},
		},
		Edges: []dag.EdgeDef{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "b"},
		},
		EntryNode: "a",
		ExitNodes: []string{"c"},
	}

	_, err := dag.Compile(doc, factories())
	var cycleErr *dag.CycleDetectedError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected a cycle detected error, got %v", err)
	}
}

// ── edge priority ordering ──────────────────────────────────────────────────

func TestCompileOrdersOutgoingEdgesByDescendingPriority(t *testing.T) {
	doc := dag.Document{
		Nodes: []dag.NodeDef{
			{ID: "a", Type: "router"},
			{ID: "low", Type: "text_output"},
			{ID: "high", Type: "text_output"},
			{ID: "mid", Type: "text_output"},
		},
		Edges: []dag.EdgeDef{
			{From: "a", To: "low", Priority: 1},
			{From: "a", To: "high", Priority: 10},
			{From: "a", To: "mid", Priority: 5},
		},
		EntryNode: "a",
		ExitNodes: []string{"low", "high", "mid"},
	}

	g, err := dag.Compile(doc, factories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outgoing := g.OutgoingEdges[g.NodeIndex["a"]]
	if len(outgoing) != 3 {
		t.Fatalf("expected 3 outgoing edges, got %d", len(outgoing))
	}
	if g.Edges[outgoing[0]].To != g.NodeIndex["high"] {
		t.Error("expected highest-priority edge first")
	}
	if g.Edges[outgoing[2]].To != g.NodeIndex["low"] {
		t.Error("expected lowest-priority edge last")
	}
}

// ── api-key route resolution ─────────────────────────────────────────────────

func TestResolveEntryPrefersExactMatch(t *testing.T) {
	doc := dag.Document{
		Nodes: []dag.NodeDef{
			{ID: "default", Type: "text_input"},
			{ID: "premium", Type: "text_input"},
			{ID: "out", Type: "text_output"},
		},
		Edges: []dag.EdgeDef{
			{From: "default", To: "out"},
			{From: "premium", To: "out"},
		},
		EntryNode: "default",
		ExitNodes: []string{"out"},
		APIKeyRoutes: map[string]string{
			"key-123": "premium",
		},
	}

	g, err := dag.Compile(doc, factories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.ResolveEntry("key-123"); got != g.NodeIndex["premium"] {
		t.Errorf("expected exact match to resolve to 'premium', got index %d", got)
	}
	if got := g.ResolveEntry("unknown-key"); got != g.NodeIndex["default"] {
		t.Errorf("expected unmatched key to fall back to declared entry, got index %d", got)
	}
}

func TestResolveEntryPrefersLongestPrefix(t *testing.T) {
	doc := dag.Document{
		Nodes: []dag.NodeDef{
			{ID: "default", Type: "text_input"},
			{ID: "short", Type: "text_input"},
			{ID: "long", Type: "text_input"},
			{ID: "out", Type: "text_output"},
		},
		Edges: []dag.EdgeDef{
			{From: "default", To: "out"},
			{From: "short", To: "out"},
			{From: "long", To: "out"},
		},
		EntryNode: "default",
		ExitNodes: []string{"out"},
		APIKeyRoutes: map[string]string{
			"key-":  "short",
			"key-1": "long",
		},
	}

	g, err := dag.Compile(doc, factories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.ResolveEntry("key-1abc"); got != g.NodeIndex["long"] {
		t.Errorf("expected longest matching prefix 'key-1' to win, got index %d", got)
	}
}

func TestResolveEntryDropsRouteToUnknownNode(t *testing.T) {
	doc := passthroughDoc()
	doc.APIKeyRoutes = map[string]string{"key-1": "ghost"}

	g, err := dag.Compile(doc, factories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.APIKeyRoutes) != 0 {
		t.Errorf("expected route to an undeclared node to be dropped, got %v", g.APIKeyRoutes)
	}
}

// ── defaults ─────────────────────────────────────────────────────────────────

func TestCompileAppliesDocumentDefaults(t *testing.T) {
	g, err := dag.Compile(passthroughDoc(), factories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Config.NodeTimeoutMs != 30000 {
		t.Errorf("expected default node timeout 30000ms, got %d", g.Config.NodeTimeoutMs)
	}
	if g.Config.DefaultBufferCapacity != 4096 {
		t.Errorf("expected default buffer capacity 4096, got %d", g.Config.DefaultBufferCapacity)
	}
	if g.Edges[0].BufferCapacity != 4096 {
		t.Errorf("expected edge to inherit default buffer capacity, got %d", g.Edges[0].BufferCapacity)
	}
}
