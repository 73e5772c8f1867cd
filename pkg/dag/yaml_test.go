package dag_test

import (
	"strings"
	"testing"

	"github.com/budecosystem/waav-gateway/pkg/dag"
)

const sampleDocumentYAML = `
id: doc-1
name: sample pipeline
nodes:
  - id: in
    type: audio_input
  - id: stt
    type: stt_provider
    config:
      provider: deepgram
  - id: out
    type: text_output
    config:
      destination: web_socket
edges:
  - from: in
    to: stt
  - from: stt
    to: out
    condition: "is_final == true"
entry_node: in
exit_nodes:
  - out
config:
  node_timeout_ms: 5000
  enable_metrics: true
`

func TestParseDocumentAppliesWireDefaults(t *testing.T) {
	t.Parallel()
	doc, err := dag.ParseDocument(strings.NewReader(sampleDocumentYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Version != "1.0.0" {
		t.Errorf("expected version to default to 1.0.0, got %q", doc.Version)
	}
	if len(doc.Nodes) != 3 || doc.Nodes[1].Type != "stt_provider" {
		t.Fatalf("unexpected nodes: %+v", doc.Nodes)
	}
	if doc.EntryNode != "in" || len(doc.ExitNodes) != 1 || doc.ExitNodes[0] != "out" {
		t.Fatalf("unexpected entry/exit: entry=%q exit=%v", doc.EntryNode, doc.ExitNodes)
	}
	if doc.Config.NodeTimeoutMs != 5000 {
		t.Errorf("expected node_timeout_ms=5000, got %d", doc.Config.NodeTimeoutMs)
	}
	if doc.Config.DefaultBufferCapacity != 4096 {
		t.Errorf("expected default_buffer_capacity to fall back to 4096, got %d", doc.Config.DefaultBufferCapacity)
	}
	if !doc.Config.EnableMetrics {
		t.Error("expected enable_metrics to be true")
	}
	if doc.Edges[1].Condition != "is_final == true" {
		t.Errorf("unexpected condition on edge 1: %q", doc.Edges[1].Condition)
	}
}

func TestParseDocumentConvertsSwitchDefault(t *testing.T) {
	t.Parallel()
	yamlSrc := `
id: doc-2
nodes:
  - id: a
    type: passthrough
  - id: b
    type: passthrough
  - id: c
    type: passthrough
edges:
  - from: a
    to: b
    switch:
      field: lang
      cases:
        en: b
      default: c
entry_node: a
exit_nodes: [b, c]
`
	doc, err := dag.ParseDocument(strings.NewReader(yamlSrc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sw := doc.Edges[0].Switch
	if sw == nil || !sw.HasDefault || sw.Default != "c" {
		t.Fatalf("expected switch default %q with HasDefault=true, got %+v", "c", sw)
	}
}

func TestParseDocumentRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yamlSrc := `
id: doc-3
bogus_top_level_field: true
`
	if _, err := dag.ParseDocument(strings.NewReader(yamlSrc)); err == nil {
		t.Fatal("expected an error for an unknown top-level field, got nil")
	}
}

func TestLoadDocumentReturnsErrorForMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := dag.LoadDocument("/nonexistent/pipeline.yaml"); err == nil {
		t.Fatal("expected an error for a nonexistent file, got nil")
	}
}
