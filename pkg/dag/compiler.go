package dag

import (
	"sort"

	"github.com/budecosystem/waav-gateway/pkg/script"
)

// CompiledEdge is an edge resolved to node indices with its condition and
// transform already compiled.
type CompiledEdge struct {
	From, To       int
	Condition      *CompiledCondition
	Transform      *script.Compiled
	Priority       int
	BufferCapacity int
}

// CompiledGraph is the result of compiling a Document: an integer-indexed
// graph ready for the executor to walk.
type CompiledGraph struct {
	ID, Name, Version string

	Nodes     []Node
	NodeIndex map[string]int

	Edges []CompiledEdge

	// OutgoingEdges[i] lists the indices into Edges that leave node i,
	// sorted by descending Priority (ties keep document order).
	OutgoingEdges [][]int
	IncomingEdges [][]int

	// TopoOrder lists node indices in a valid topological order.
	TopoOrder []int

	EntryIndex  int
	ExitIndices []int

	// APIKeyRoutes maps a resolved entry node index to the route patterns
	// that select it, already sorted by the longest-prefix-then-
	// lexicographic tie-break rule used at dispatch time.
	APIKeyRoutes []APIKeyRoute

	Config Config
}

// APIKeyRoute is one resolved api-key-prefix -> entry-node-index mapping.
type APIKeyRoute struct {
	Pattern    string
	EntryIndex int
}

// ResolveEntry selects the entry node index for an incoming session given
// its api key id, per spec.md §4.6: exact match first, then the longest
// matching prefix, ties broken lexicographically by pattern. Falls back
// to the document's declared EntryIndex when no route matches or apiKeyID
// is empty.
func (g *CompiledGraph) ResolveEntry(apiKeyID string) int {
	if apiKeyID == "" {
		return g.EntryIndex
	}
	for _, route := range g.APIKeyRoutes {
		if route.Pattern == apiKeyID {
			return route.EntryIndex
		}
		if len(route.Pattern) <= len(apiKeyID) && apiKeyID[:len(route.Pattern)] == route.Pattern {
			return route.EntryIndex
		}
	}
	return g.EntryIndex
}

// Compile validates doc structurally, then compiles every node and edge
// and computes a topological order, per spec.md §4.5's two-phase
// validation.
func Compile(doc Document, factories map[string]NodeFactory) (*CompiledGraph, error) {
	if err := validateStructure(doc); err != nil {
		return nil, err
	}

	cfg := doc.Config
	if cfg.NodeTimeoutMs == 0 {
		cfg.NodeTimeoutMs = DefaultConfig().NodeTimeoutMs
	}
	if cfg.MaxConcurrentExecutions == 0 {
		cfg.MaxConcurrentExecutions = DefaultConfig().MaxConcurrentExecutions
	}
	if cfg.DefaultBufferCapacity == 0 {
		cfg.DefaultBufferCapacity = DefaultConfig().DefaultBufferCapacity
	}

	index := make(map[string]int, len(doc.Nodes))
	for i, n := range doc.Nodes {
		index[n.ID] = i
	}

	nodes := make([]Node, len(doc.Nodes))
	for i, def := range doc.Nodes {
		factory, ok := factories[def.Type]
		if !ok {
			return nil, &UnknownNodeTypeError{NodeID: def.ID, Type: def.Type}
		}
		node, err := factory(def)
		if err != nil {
			return nil, &StructuralError{Kind: "node_init_failed", NodeID: def.ID, Message: err.Error()}
		}
		nodes[i] = node
	}

	edges := make([]CompiledEdge, len(doc.Edges))
	outgoing := make([][]int, len(doc.Nodes))
	incoming := make([][]int, len(doc.Nodes))
	for i, e := range doc.Edges {
		cond, err := CompileCondition(e.Condition, e.Switch)
		if err != nil {
			return nil, &ConditionCompileError{From: e.From, To: e.To, Err: err}
		}
		transform, err := CompileTransform(e.Transform)
		if err != nil {
			return nil, &ConditionCompileError{From: e.From, To: e.To, Err: err}
		}
		bufCap := e.BufferCapacity
		if bufCap == 0 {
			bufCap = cfg.DefaultBufferCapacity
		}
		from, to := index[e.From], index[e.To]
		edges[i] = CompiledEdge{
			From:           from,
			To:             to,
			Condition:      cond,
			Transform:      transform,
			Priority:       e.Priority,
			BufferCapacity: bufCap,
		}
		outgoing[from] = append(outgoing[from], i)
		incoming[to] = append(incoming[to], i)
	}

	for i := range outgoing {
		edgeList := outgoing[i]
		sort.SliceStable(edgeList, func(a, b int) bool {
			return edges[edgeList[a]].Priority > edges[edgeList[b]].Priority
		})
	}

	order, cycleIndex, ok := topoSort(len(doc.Nodes), edges)
	if !ok {
		return nil, &CycleDetectedError{NodeID: doc.Nodes[cycleIndex].ID}
	}

	exitIndices := make([]int, len(doc.ExitNodes))
	for i, id := range doc.ExitNodes {
		exitIndices[i] = index[id]
	}

	routes := resolveAPIKeyRoutes(doc.APIKeyRoutes, index)

	return &CompiledGraph{
		ID:            doc.ID,
		Name:          doc.Name,
		Version:       doc.Version,
		Nodes:         nodes,
		NodeIndex:     index,
		Edges:         edges,
		OutgoingEdges: outgoing,
		IncomingEdges: incoming,
		TopoOrder:     order,
		EntryIndex:    index[doc.EntryNode],
		ExitIndices:   exitIndices,
		APIKeyRoutes:  routes,
		Config:        cfg,
	}, nil
}

// resolveAPIKeyRoutes converts doc's pattern->node-id map into a
// pattern->node-index slice, dropping any pattern whose target node does
// not exist (per spec.md §4.5: unresolvable api-key targets are dropped,
// not a compile error), and sorts it by descending pattern length then
// ascending lexicographic order so ResolveEntry's scan only needs to keep
// the first eligible match among equal-length prefixes.
func resolveAPIKeyRoutes(raw map[string]string, index map[string]int) []APIKeyRoute {
	routes := make([]APIKeyRoute, 0, len(raw))
	for pattern, nodeID := range raw {
		nodeIdx, ok := index[nodeID]
		if !ok {
			continue
		}
		routes = append(routes, APIKeyRoute{Pattern: pattern, EntryIndex: nodeIdx})
	}
	sort.Slice(routes, func(i, j int) bool {
		if len(routes[i].Pattern) != len(routes[j].Pattern) {
			return len(routes[i].Pattern) > len(routes[j].Pattern)
		}
		return routes[i].Pattern < routes[j].Pattern
	})
	return routes
}
