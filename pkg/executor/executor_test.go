package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/executor"
	"github.com/budecosystem/waav-gateway/pkg/nodes"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

func newCtx(streamID string) *execctx.Context {
	return execctx.New(context.Background(), streamID, time.Time{})
}

func compileOrFatal(t *testing.T, doc dag.Document) *dag.CompiledGraph {
	t.Helper()
	g, err := dag.Compile(doc, nodes.Factories(registry.New()))
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return g
}

func TestExecuteSingleNodeReturnsInputUnchanged(t *testing.T) {
	doc := dag.Document{
		ID:        "single",
		Nodes:     []dag.NodeDef{{ID: "n", Type: "passthrough"}},
		EntryNode: "n",
		ExitNodes: []string{"n"},
	}
	g := compileOrFatal(t, doc)
	exec := executor.New(g)

	out, err := exec.Execute(newCtx("s1"), "", payload.Text{Value: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(payload.Text).Value != "hi" {
		t.Fatalf("expected Text{hi}, got %#v", out)
	}
}

func TestExecuteRouterPrunesUnselectedBranch(t *testing.T) {
	doc := dag.Document{
		ID: "routed",
		Nodes: []dag.NodeDef{
			{ID: "in", Type: "passthrough"},
			{ID: "r", Type: "router", Config: map[string]any{
				"routes": []any{
					map[string]any{"target": "final_handler", "condition": "is_final == true", "priority": 1},
					map[string]any{"target": "interim_handler", "default": true},
				},
			}},
			{ID: "final_handler", Type: "passthrough"},
			{ID: "interim_handler", Type: "passthrough"},
		},
		Edges: []dag.EdgeDef{
			{From: "in", To: "r"},
			{From: "r", To: "final_handler"},
			{From: "r", To: "interim_handler"},
		},
		EntryNode: "in",
		ExitNodes: []string{"final_handler", "interim_handler"},
	}
	g := compileOrFatal(t, doc)
	exec := executor.New(g)

	out, err := exec.Execute(newCtx("s1"), "", payload.STTResult{Transcript: "hello", IsFinal: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, ok := out.(payload.STTResult)
	if !ok || result.Transcript != "hello" {
		t.Fatalf("expected the final_handler path's output, got %#v", out)
	}
}

func TestExecuteSplitJoinAll(t *testing.T) {
	doc := dag.Document{
		ID: "split-join",
		Nodes: []dag.NodeDef{
			{ID: "in", Type: "passthrough"},
			{ID: "sp", Type: "split", Config: map[string]any{"branches": []any{"a", "b"}}},
			{ID: "a", Type: "passthrough"},
			{ID: "b", Type: "passthrough"},
			{ID: "j", Type: "join", Config: map[string]any{"strategy": "all"}},
		},
		Edges: []dag.EdgeDef{
			{From: "sp", To: "a"},
			{From: "sp", To: "b"},
			{From: "in", To: "sp"},
			{From: "sp", To: "j"},
		},
		EntryNode: "in",
		ExitNodes: []string{"j"},
	}
	g := compileOrFatal(t, doc)
	exec := executor.New(g)
	exec.Parallel = false

	out, err := exec.Execute(newCtx("s1"), "", payload.Text{Value: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	multi, ok := out.(payload.Multiple)
	if !ok || len(multi.Items) != 2 {
		t.Fatalf("expected join(all) to wrap both branch outputs, got %#v", out)
	}
	for _, item := range multi.Items {
		if item.(payload.Text).Value != "x" {
			t.Fatalf("expected each branch to pass the input through unchanged, got %#v", item)
		}
	}
}

func TestExecuteRecordsNodeMetrics(t *testing.T) {
	doc := dag.Document{
		ID:        "metrics",
		Nodes:     []dag.NodeDef{{ID: "n", Type: "passthrough"}},
		EntryNode: "n",
		ExitNodes: []string{"n"},
	}
	g := compileOrFatal(t, doc)
	exec := executor.New(g)

	if _, err := exec.Execute(newCtx("s1"), "", payload.Text{Value: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, ok := exec.Metrics().NodeSnapshot("n")
	if !ok || snap.Count != 1 || snap.Successes != 1 {
		t.Fatalf("expected one recorded success for node n, got %#v (ok=%v)", snap, ok)
	}

	success, failure, cancelled, timeout := exec.Metrics().TotalCounts()
	if success != 1 || failure != 0 || cancelled != 0 || timeout != 0 {
		t.Fatalf("expected 1 success total, got success=%d failure=%d cancelled=%d timeout=%d", success, failure, cancelled, timeout)
	}
}

func TestExecuteReturnsCancelledWhenContextCancelledBeforeStart(t *testing.T) {
	doc := dag.Document{
		ID:        "cancel",
		Nodes:     []dag.NodeDef{{ID: "n", Type: "passthrough"}},
		EntryNode: "n",
		ExitNodes: []string{"n"},
	}
	g := compileOrFatal(t, doc)
	exec := executor.New(g)

	cancelledGoCtx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := execctx.New(cancelledGoCtx, "s1", time.Time{})

	_, err := exec.Execute(ctx, "", payload.Text{Value: "hi"})
	if _, ok := err.(executor.CancelledError); !ok {
		t.Fatalf("expected a CancelledError, got %v", err)
	}
}

// cancelingNode simulates an stt/tts/realtime provider node that selects on
// ctx.Done() and returns the bare stdlib sentinel, as pkg/nodes' provider
// nodes do, rather than the executor's own CancelledError.
type cancelingNode struct{ id string }

func (n cancelingNode) ID() string   { return n.id }
func (n cancelingNode) Type() string { return "canceling" }
func (n cancelingNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet()
}
func (n cancelingNode) Execute(*execctx.Context, payload.Payload) (payload.Payload, error) {
	return nil, context.Canceled
}

func TestExecuteClassifiesProviderContextCancelledAsCancelled(t *testing.T) {
	doc := dag.Document{
		ID:        "provider-cancel",
		Nodes:     []dag.NodeDef{{ID: "n", Type: "canceling"}},
		EntryNode: "n",
		ExitNodes: []string{"n"},
	}
	factories := map[string]dag.NodeFactory{
		"canceling": func(def dag.NodeDef) (dag.Node, error) {
			return cancelingNode{id: def.ID}, nil
		},
	}
	g, err := dag.Compile(doc, factories)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	exec := executor.New(g)

	if _, err := exec.Execute(newCtx("s1"), "", payload.Text{Value: "hi"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	success, failure, cancelled, timeout := exec.Metrics().TotalCounts()
	if cancelled != 1 || failure != 0 {
		t.Fatalf("expected the bare context.Canceled error to be tallied as cancelled, not failure: success=%d failure=%d cancelled=%d timeout=%d", success, failure, cancelled, timeout)
	}
}

func TestExecuteResolvesEntryByAPIKeyRoute(t *testing.T) {
	doc := dag.Document{
		ID: "api-key-routed",
		Nodes: []dag.NodeDef{
			{ID: "default_handler", Type: "passthrough"},
			{ID: "handler_a", Type: "passthrough"},
		},
		EntryNode:    "default_handler",
		ExitNodes:    []string{"default_handler", "handler_a"},
		APIKeyRoutes: map[string]string{"tenant_a": "handler_a"},
	}
	g := compileOrFatal(t, doc)
	exec := executor.New(g)

	out, err := exec.Execute(newCtx("s1"), "tenant_a", payload.Text{Value: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(payload.Text).Value != "hi" {
		t.Fatalf("expected handler_a's passthrough output, got %#v", out)
	}
}
