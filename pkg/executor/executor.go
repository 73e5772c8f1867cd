package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/nodes"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// endpointNodeTypes names the wire types whose duration statistics are
// tracked in Metrics' per-endpoint series instead of the per-node
// series, per spec.md §4.7 step 6's "per-endpoint metrics
// are analogous" note.
var endpointNodeTypes = map[string]bool{
	"http_endpoint":      true,
	"grpc_endpoint":      true,
	"websocket_endpoint": true,
	"ipc_endpoint":       true,
	"livekit_endpoint":   true,
	"webhook_output":     true,
}

// brancher is satisfied by the split node, letting the executor read its
// declared branch ids without importing pkg/nodes' unexported type.
type brancher interface {
	Branches() []string
}

// Executor walks one compiled graph, once per call to Execute, following
// spec.md §4.7's six-step algorithm.
type Executor struct {
	graph *dag.CompiledGraph

	// Parallel enables the concurrent-join fork for splits with ≥2
	// branches, per spec.md §4.7 step 4 / §5's scheduling model. Disabled
	// only for deterministic tests.
	Parallel bool

	metrics *Metrics
}

// New builds an Executor over a compiled graph with metrics collection
// and concurrent split forking enabled.
func New(g *dag.CompiledGraph) *Executor {
	return &Executor{graph: g, Parallel: true, metrics: NewMetrics()}
}

// Metrics returns the executor's running metrics collector.
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// Execute runs one session execution over the compiled graph, per
// spec.md §4.7 steps 1-5. apiKeyID selects the entry node via the
// compiled api-key-route table (empty string falls back to the graph's
// declared entry).
func (e *Executor) Execute(ctx *execctx.Context, apiKeyID string, input payload.Payload) (payload.Payload, error) {
	start := time.Now()
	startIdx := e.graph.ResolveEntry(apiKeyID)

	out, err := e.runFrom(ctx, startIdx, input, false)

	e.metrics.recordTotal(time.Since(start), classifyOutcome(err))
	return out, err
}

// runFrom implements the main walk (spec.md §4.7 steps 2-5) starting at
// startIdx with seedInput as its effective input. When branch is true,
// the walk is a split-branch sub-execution: termination collects the
// outputs of local sinks (nodes in the reachable set with no
// still-reachable successor) instead of the graph's declared exit nodes.
func (e *Executor) runFrom(ctx *execctx.Context, startIdx int, seedInput payload.Payload, branch bool) (payload.Payload, error) {
	g := e.graph
	loopStart := time.Now()

	pos := topoPosition(g, startIdx)
	if pos == -1 {
		return nil, fmt.Errorf("executor: start node index %d not present in topological order", startIdx)
	}

	reachable := make(map[int]bool, len(g.TopoOrder)-pos)
	for _, idx := range g.TopoOrder[pos:] {
		reachable[idx] = true
	}

	outputs := make(map[int]payload.Payload, len(g.TopoOrder)-pos)
	outputs[startIdx] = seedInput

	for _, idx := range g.TopoOrder[pos:] {
		select {
		case <-ctx.Done():
			return nil, CancelledError{}
		default:
		}
		if d, ok := ctx.Deadline(); ok && !d.IsZero() && time.Now().After(d) {
			return nil, &TimeoutError{ElapsedMs: time.Since(loopStart).Milliseconds()}
		}

		if !reachable[idx] {
			continue
		}

		var in payload.Payload
		if idx == startIdx {
			in = seedInput
		} else {
			gathered, ok, err := gatherInput(g, ctx, idx, outputs)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			in = gathered
		}

		node := g.Nodes[idx]

		if node.Type() == "split" {
			sp, ok := node.(brancher)
			if !ok {
				return nil, fmt.Errorf("executor: node %q declares type split but does not implement Branches()", node.ID())
			}
			if _, err := node.Execute(ctx, in); err != nil {
				return nil, err
			}
			result, err := e.runBranches(ctx, sp.Branches(), in)
			if err != nil {
				return nil, err
			}
			outputs[idx] = payload.Multiple{Items: result}
			// The branch subtrees were fully executed inside runBranches;
			// remove them from the outer walk so it doesn't visit (and
			// re-execute) them a second time. A join consuming the split's
			// combined result must be wired directly from the split node,
			// not from individual branch leaves.
			pruneSplitBranches(g, sp.Branches(), reachable)
			continue
		}

		nodeStart := time.Now()
		out, err := node.Execute(ctx, in)
		nodeEnd := time.Now()
		ctx.RecordTiming(node.ID(), execctx.NodeTiming{Start: nodeStart, End: nodeEnd})
		e.metrics.recordNode(node.ID(), nodeEnd.Sub(nodeStart), err == nil, endpointNodeTypes[node.Type()])
		if err != nil {
			return nil, err
		}

		if node.Type() == "router" {
			if target, ok := ctx.Metadata(nodes.MetadataRouterTarget); ok {
				if targetID, ok := target.(string); ok {
					if targetIdx, ok := g.NodeIndex[targetID]; ok {
						pruneRouter(g, idx, targetIdx, reachable)
					}
				}
				ctx.DeleteMetadata(nodes.MetadataRouterTarget)
			}
		}

		outputs[idx] = out
	}

	var exits []int
	if branch {
		exits = localSinks(g, reachable)
	} else {
		exits = g.ExitIndices
	}
	return collectOutputs(exits, outputs), nil
}

// runBranches forks a split node's declared branches, each as an
// independent sub-execution over a forked context, per spec.md §4.7's
// split handling. With ≥2 branches and Parallel enabled, branches run
// concurrently under a concurrent-join; any branch failure aborts the
// whole join with SplitBranchError.
func (e *Executor) runBranches(parentCtx *execctx.Context, branchIDs []string, input payload.Payload) ([]payload.Payload, error) {
	g := e.graph
	indices := make([]int, len(branchIDs))
	for i, id := range branchIDs {
		idx, ok := g.NodeIndex[id]
		if !ok {
			return nil, &nodes.SplitBranchError{BranchID: id, Err: &UnknownBranchTargetError{BranchID: id}}
		}
		indices[i] = idx
	}

	results := make([]payload.Payload, len(branchIDs))

	if !e.Parallel || len(branchIDs) < 2 {
		for i, idx := range indices {
			out, err := e.runFrom(parentCtx.Fork(), idx, input, true)
			if err != nil {
				return nil, &nodes.SplitBranchError{BranchID: branchIDs[i], Err: err}
			}
			results[i] = out
		}
		return results, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(branchIDs))
	for i, idx := range indices {
		wg.Add(1)
		go func(i, idx int) {
			defer wg.Done()
			out, err := e.runFrom(parentCtx.Fork(), idx, input, true)
			if err != nil {
				errs[i] = &nodes.SplitBranchError{BranchID: branchIDs[i], Err: err}
				return
			}
			results[i] = out
		}(i, idx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// gatherInput implements spec.md §4.7 step 4's "gather inputs with edge
// transforms": for each incoming edge whose source already has an
// output, evaluate its condition and, if it passes, apply its transform.
// Zero passing edges means the node's effective input is absent (ok =
// false, the caller skips the node); one means it passes through; several
// are wrapped as Multiple.
func gatherInput(g *dag.CompiledGraph, ctx *execctx.Context, idx int, outputs map[int]payload.Payload) (payload.Payload, bool, error) {
	var collected []payload.Payload
	for _, edgeIdx := range g.IncomingEdges[idx] {
		edge := g.Edges[edgeIdx]
		src, ok := outputs[edge.From]
		if !ok {
			continue
		}
		passed, err := dag.Evaluate(edge.Condition, src, ctx)
		if err != nil {
			return nil, false, err
		}
		if !passed {
			continue
		}
		p := src
		if edge.Transform != nil {
			transformed, err := dag.RunTransform(edge.Transform, src, ctx)
			if err != nil {
				return nil, false, err
			}
			p = transformed
		}
		collected = append(collected, p)
	}
	switch len(collected) {
	case 0:
		return nil, false, nil
	case 1:
		return collected[0], true, nil
	default:
		return payload.Multiple{Items: collected}, true, nil
	}
}

// pruneSplitBranches removes every node reachable from any of a split
// node's declared branch roots (the branch root itself included) from the
// outer walk's reachable set, since runBranches has already executed that
// whole subtree as an independent sub-graph.
func pruneSplitBranches(g *dag.CompiledGraph, branchIDs []string, reachable map[int]bool) {
	queue := make([]int, 0, len(branchIDs))
	for _, id := range branchIDs {
		if idx, ok := g.NodeIndex[id]; ok {
			queue = append(queue, idx)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !reachable[n] {
			continue
		}
		delete(reachable, n)
		for _, edgeIdx := range g.OutgoingEdges[n] {
			queue = append(queue, g.Edges[edgeIdx].To)
		}
	}
}

// pruneRouter implements spec.md §4.7 step 4's router-pruning rule: every
// direct successor of the router other than target is removed from
// reachable if it has no other currently-reachable incoming edge and
// cannot itself reach target through the currently-reachable set;
// removal cascades to such a node's own successors.
func pruneRouter(g *dag.CompiledGraph, routerIdx, targetIdx int, reachable map[int]bool) {
	queue := make([]int, 0, len(g.OutgoingEdges[routerIdx]))
	for _, edgeIdx := range g.OutgoingEdges[routerIdx] {
		to := g.Edges[edgeIdx].To
		if to != targetIdx {
			queue = append(queue, to)
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == targetIdx || !reachable[n] {
			continue
		}
		if hasOtherReachableIncoming(g, n, routerIdx, reachable) {
			continue
		}
		if canReachWithin(g, n, targetIdx, reachable) {
			continue
		}
		delete(reachable, n)
		for _, edgeIdx := range g.OutgoingEdges[n] {
			queue = append(queue, g.Edges[edgeIdx].To)
		}
	}
}

// hasOtherReachableIncoming reports whether n has an incoming edge from a
// currently-reachable source other than excludeSrc (the router itself).
func hasOtherReachableIncoming(g *dag.CompiledGraph, n, excludeSrc int, reachable map[int]bool) bool {
	for _, edgeIdx := range g.IncomingEdges[n] {
		src := g.Edges[edgeIdx].From
		if src == excludeSrc {
			continue
		}
		if reachable[src] {
			return true
		}
	}
	return false
}

// canReachWithin reports whether target is reachable from n by following
// outgoing edges whose destinations are currently reachable.
func canReachWithin(g *dag.CompiledGraph, n, target int, reachable map[int]bool) bool {
	visited := make(map[int]bool)
	stack := []int{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, edgeIdx := range g.OutgoingEdges[cur] {
			to := g.Edges[edgeIdx].To
			if to == target || reachable[to] {
				stack = append(stack, to)
			}
		}
	}
	return false
}

// localSinks returns, in topological order, every node in reachable that
// has no outgoing edge whose destination is also in reachable — the
// terminal nodes of a split-branch sub-execution, which has no separately
// declared exit set of its own.
func localSinks(g *dag.CompiledGraph, reachable map[int]bool) []int {
	var sinks []int
	for _, idx := range g.TopoOrder {
		if !reachable[idx] {
			continue
		}
		isSink := true
		for _, edgeIdx := range g.OutgoingEdges[idx] {
			if reachable[g.Edges[edgeIdx].To] {
				isSink = false
				break
			}
		}
		if isSink {
			sinks = append(sinks, idx)
		}
	}
	return sinks
}

// collectOutputs implements spec.md §4.7 step 5's termination rule:
// outputs of the selected node indices, in order, collapsed to a single
// payload, a Multiple, or Empty.
func collectOutputs(indices []int, outputs map[int]payload.Payload) payload.Payload {
	var collected []payload.Payload
	for _, idx := range indices {
		if out, ok := outputs[idx]; ok {
			collected = append(collected, out)
		}
	}
	switch len(collected) {
	case 0:
		return payload.Empty{}
	case 1:
		return collected[0]
	default:
		return payload.Multiple{Items: collected}
	}
}

func topoPosition(g *dag.CompiledGraph, idx int) int {
	for i, n := range g.TopoOrder {
		if n == idx {
			return i
		}
	}
	return -1
}
