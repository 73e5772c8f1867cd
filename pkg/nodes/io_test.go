package nodes_test

import (
	"testing"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/nodes"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

func TestAudioInputPassesThroughUnchanged(t *testing.T) {
	n, err := nodes.NewAudioInput(dag.NodeDef{ID: "in1", Type: "audio_input"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := payload.Audio{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 1}
	out, err := n.Execute(newCtx("s1"), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != payload.Payload(in) {
		t.Fatalf("expected identity passthrough, got %#v", out)
	}
}

func TestTextOutputPassesThroughUnchanged(t *testing.T) {
	n, err := nodes.NewTextOutput(dag.NodeDef{ID: "out1", Type: "text_output", Config: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Type() != "text_output" {
		t.Fatalf("expected type text_output, got %q", n.Type())
	}
	out, err := n.Execute(newCtx("s1"), payload.Text{Value: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(payload.Text).Value != "hi" {
		t.Fatalf("expected passthrough, got %#v", out)
	}
}
