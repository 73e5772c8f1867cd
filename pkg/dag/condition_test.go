package dag_test

import (
	"context"
	"testing"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

func newCtx(streamID string) *execctx.Context {
	return execctx.New(context.Background(), streamID, time.Time{})
}

func TestCompileConditionAlwaysWhenUnset(t *testing.T) {
	cond, err := dag.CompileCondition("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := dag.Evaluate(cond, payload.Text{Value: "hi"}, newCtx("s1"))
	if err != nil || !ok {
		t.Fatalf("expected an unconditional edge to always pass, got (%v, %v)", ok, err)
	}
}

func TestCompileConditionExpressionEvaluatesAgainstScope(t *testing.T) {
	cond, err := dag.CompileCondition("stream_id == 'abc'", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := dag.Evaluate(cond, payload.Empty{}, newCtx("abc"))
	if err != nil || !ok {
		t.Fatalf("expected matching stream_id to pass, got (%v, %v)", ok, err)
	}

	ok, err = dag.Evaluate(cond, payload.Empty{}, newCtx("xyz"))
	if err != nil || ok {
		t.Fatalf("expected mismatched stream_id to fail, got (%v, %v)", ok, err)
	}
}

func TestCompileConditionRejectsLoops(t *testing.T) {
	_, err := dag.CompileCondition("while (true) {}", nil)
	if err == nil {
		t.Fatal("expected a compile error for a looping condition expression")
	}
}

func TestCompileConditionSwitchResolvesTarget(t *testing.T) {
	cond, err := dag.CompileCondition("", &dag.SwitchDef{
		Field: "intent",
		Cases: map[string]string{
			"billing": "billing_node",
			"support": "support_node",
		},
		Default:    "fallback_node",
		HasDefault: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := payload.JSON{Value: map[string]any{"intent": "billing"}}
	target, ok := dag.ResolveTarget(cond, p, newCtx("s1"))
	if !ok || target != "billing_node" {
		t.Fatalf("expected target billing_node, got (%q, %v)", target, ok)
	}

	p = payload.JSON{Value: map[string]any{"intent": "unknown"}}
	target, ok = dag.ResolveTarget(cond, p, newCtx("s1"))
	if !ok || target != "fallback_node" {
		t.Fatalf("expected default target on unmatched case, got (%q, %v)", target, ok)
	}
}

func TestCompileConditionSwitchWithoutDefaultFailsOnMiss(t *testing.T) {
	cond, err := dag.CompileCondition("", &dag.SwitchDef{
		Field: "intent",
		Cases: map[string]string{"billing": "billing_node"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := payload.JSON{Value: map[string]any{"intent": "unknown"}}
	ok, err := dag.Evaluate(cond, p, newCtx("s1"))
	if err != nil || ok {
		t.Fatalf("expected an unmatched switch with no default to fail evaluation, got (%v, %v)", ok, err)
	}
}

func TestRunTransformConvertsStringResultToText(t *testing.T) {
	transform, err := dag.CompileTransform("data_transcript + '!'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := dag.RunTransform(transform, payload.STTResult{Transcript: "hello"}, newCtx("s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, ok := out.(payload.Text)
	if !ok || text.Value != "hello!" {
		t.Fatalf("expected Text{\"hello!\"}, got %#v", out)
	}
}

func TestRunTransformConvertsByteArrayResultToBinary(t *testing.T) {
	transform, err := dag.CompileTransform("[72, 73]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := dag.RunTransform(transform, payload.Empty{}, newCtx("s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bin, ok := out.(payload.Binary)
	if !ok || string(bin.Data) != "HI" {
		t.Fatalf("expected Binary{\"HI\"}, got %#v", out)
	}
}

func TestRunTransformConvertsNonByteArrayResultToJSON(t *testing.T) {
	transform, err := dag.CompileTransform("[1, 2, 999]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := dag.RunTransform(transform, payload.Empty{}, newCtx("s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.(payload.JSON); !ok {
		t.Fatalf("expected a JSON payload for an out-of-range array, got %#v", out)
	}
}
