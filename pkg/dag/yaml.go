package dag

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// wireDocument is the YAML/JSON wire shape a DAG document is authored in,
// per spec.md §6. ParseDocument decodes into this and converts to the
// compiler-facing [Document].
type wireDocument struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Nodes []wireNode `yaml:"nodes"`
	Edges []wireEdge `yaml:"edges"`

	EntryNode    string            `yaml:"entry_node"`
	ExitNodes    []string          `yaml:"exit_nodes"`
	APIKeyRoutes map[string]string `yaml:"api_key_routes"`

	Config wireConfig `yaml:"config"`
}

type wireNode struct {
	ID             string         `yaml:"id"`
	Type           string         `yaml:"type"`
	Config         map[string]any `yaml:"config"`
	TimeoutMs      int            `yaml:"timeout_ms"`
	RetryOnFailure bool           `yaml:"retry_on_failure"`
	MaxRetries     int            `yaml:"max_retries"`
}

type wireSwitch struct {
	Field   string            `yaml:"field"`
	Cases   map[string]string `yaml:"cases"`
	Default string            `yaml:"default"`
}

type wireEdge struct {
	From           string      `yaml:"from"`
	To             string      `yaml:"to"`
	Condition      string      `yaml:"condition"`
	Switch         *wireSwitch `yaml:"switch"`
	Priority       int         `yaml:"priority"`
	BufferCapacity int         `yaml:"buffer_capacity"`
	Transform      string      `yaml:"transform"`
}

type wireConfig struct {
	NodeTimeoutMs           int            `yaml:"node_timeout_ms"`
	MaxConcurrentExecutions int            `yaml:"max_concurrent_executions"`
	EnableMetrics           bool           `yaml:"enable_metrics"`
	EnableTracing           bool           `yaml:"enable_tracing"`
	DefaultBufferCapacity   int            `yaml:"default_buffer_capacity"`
	Variables               map[string]any `yaml:"variables"`
}

// LoadDocument reads and parses the DAG document at path.
func LoadDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("dag: open %q: %w", path, err)
	}
	defer f.Close()

	doc, err := ParseDocument(f)
	if err != nil {
		return Document{}, fmt.Errorf("dag: parse %q: %w", path, err)
	}
	return doc, nil
}

// ParseDocument decodes a DAG document from r and fills in the
// wire-format defaults spec.md §6 names (version "1.0.0",
// [DefaultConfig]'s zero-value fields).
func ParseDocument(r io.Reader) (Document, error) {
	w := wireDocument{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil {
		return Document{}, fmt.Errorf("dag: decode yaml: %w", err)
	}
	return w.toDocument(), nil
}

func (w wireDocument) toDocument() Document {
	version := w.Version
	if version == "" {
		version = "1.0.0"
	}

	nodes := make([]NodeDef, len(w.Nodes))
	for i, n := range w.Nodes {
		nodes[i] = NodeDef{
			ID:             n.ID,
			Type:           n.Type,
			Config:         n.Config,
			TimeoutMs:      n.TimeoutMs,
			RetryOnFailure: n.RetryOnFailure,
			MaxRetries:     n.MaxRetries,
		}
	}

	edges := make([]EdgeDef, len(w.Edges))
	for i, e := range w.Edges {
		edges[i] = EdgeDef{
			From:           e.From,
			To:             e.To,
			Condition:      e.Condition,
			Priority:       e.Priority,
			BufferCapacity: e.BufferCapacity,
			Transform:      e.Transform,
		}
		if e.Switch != nil {
			edges[i].Switch = &SwitchDef{
				Field:      e.Switch.Field,
				Cases:      e.Switch.Cases,
				Default:    e.Switch.Default,
				HasDefault: e.Switch.Default != "",
			}
		}
	}

	cfg := DefaultConfig()
	if w.Config.NodeTimeoutMs != 0 {
		cfg.NodeTimeoutMs = w.Config.NodeTimeoutMs
	}
	if w.Config.MaxConcurrentExecutions != 0 {
		cfg.MaxConcurrentExecutions = w.Config.MaxConcurrentExecutions
	}
	if w.Config.DefaultBufferCapacity != 0 {
		cfg.DefaultBufferCapacity = w.Config.DefaultBufferCapacity
	}
	cfg.EnableMetrics = w.Config.EnableMetrics
	cfg.EnableTracing = w.Config.EnableTracing
	cfg.Variables = w.Config.Variables

	return Document{
		ID:           w.ID,
		Name:         w.Name,
		Version:      version,
		Nodes:        nodes,
		Edges:        edges,
		EntryNode:    w.EntryNode,
		ExitNodes:    w.ExitNodes,
		APIKeyRoutes: w.APIKeyRoutes,
		Config:       cfg,
	}
}
