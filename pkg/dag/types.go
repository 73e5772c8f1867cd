// Package dag defines the DAG document schema (the YAML/JSON wire shape a
// session's dataflow graph is authored in) and the compiler that turns a
// validated document into a CompiledGraph: an integer-indexed graph with a
// precomputed topological order, compiled edge conditions/transforms, and
// instantiated node objects ready for the executor to walk.
//
// Validation proceeds in the two phases spec.md describes: Compile first
// checks structural well-formedness (duplicate ids, unresolved references,
// size limits, emptiness), then performs semantic compilation (condition
// and transform compilation, node instantiation, topological sort).
package dag

// NodeDef is one node entry in a DAG document.
type NodeDef struct {
	// ID is this node's unique identifier within the document.
	ID string

	// Type is the wire type discriminant (e.g. "stt_provider", "router",
	// "split"), used to select the NodeFactory that instantiates it.
	Type string

	// Config is the node's free-form, type-specific configuration.
	Config map[string]any

	// TimeoutMs is the per-call timeout in milliseconds. Zero means "use
	// the document's default node_timeout_ms".
	TimeoutMs int

	// RetryOnFailure is parsed from retry_on_failure and carried on the
	// definition. The executor does not retry failed nodes.
	RetryOnFailure bool

	// MaxRetries is parsed from max_retries. No default is applied and no
	// code reads it.
	MaxRetries int
}

// SwitchDef is an edge's `switch{field, cases, default}` clause.
type SwitchDef struct {
	Field      string
	Cases      map[string]string
	Default    string
	HasDefault bool
}

// EdgeDef is one edge entry in a DAG document. An edge carries at most one
// of Condition or Switch; both empty means the edge is unconditionally
// true ("Always").
type EdgeDef struct {
	From string
	To   string

	// Condition is a compiled-as-boolean expression string. Mutually
	// exclusive with Switch.
	Condition string

	// Switch routes to one of several named targets based on a field path.
	// Mutually exclusive with Condition. It is a pointer so that nil means
	// "not set", since a zero-value SwitchDef is indistinguishable from it.
	Switch         *SwitchDef
	Priority       int
	BufferCapacity int

	// Transform is an optional script run on the source payload before
	// delivery to the target node.
	Transform string
}

// Config holds document-wide execution defaults.
type Config struct {
	NodeTimeoutMs           int
	MaxConcurrentExecutions int
	EnableMetrics           bool
	EnableTracing           bool
	DefaultBufferCapacity   int
	Variables               map[string]any
}

// DefaultConfig returns the document-level defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		NodeTimeoutMs:           30000,
		MaxConcurrentExecutions: 10,
		DefaultBufferCapacity:   4096,
	}
}

// Document is the top-level DAG definition as authored in YAML/JSON.
type Document struct {
	ID      string
	Name    string
	Version string // semver, defaults to "1.0.0"

	Nodes []NodeDef
	Edges []EdgeDef

	EntryNode string
	ExitNodes []string

	// APIKeyRoutes maps an api-key id (or id prefix) to a target node id,
	// resolved at compile time into the api-key route table (§4.6).
	APIKeyRoutes map[string]string

	Config Config
}

// Size limits enforced during structural validation. These are the
// compiler's own sanity ceiling (spec.md requires "size limits" without
// naming exact figures) chosen generously enough to never bind a
// legitimate session graph while still catching pathological or
// adversarial documents before they reach the topological sort.
const (
	MaxNodes = 4096
	MaxEdges = 16384
)
