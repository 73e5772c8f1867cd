// Package nodes implements the built-in DAG node types (§4.4): thin
// input/output nodes, provider nodes (stt, tts, realtime, processor),
// endpoint nodes (http, grpc, websocket, ipc, livekit/room, webhook), and
// flow-control nodes (split, join, router, transform, passthrough). Every
// exported constructor here is a dag.NodeFactory, meant to be handed to
// dag.Compile's factories map.
package nodes

import "fmt"

// ProviderError reports a failure originating inside an stt/tts/realtime
// provider call, per spec.md §7's Provider error classification.
type ProviderError struct {
	Kind     string // "stt", "tts", or "realtime"
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider %q: %v", e.Kind, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// EndpointError reports a failure reaching an external endpoint (http,
// grpc, websocket, ipc, livekit), per spec.md §7's Endpoint classification.
type EndpointError struct {
	Kind   string // "http", "grpc", "websocket", "ipc", "livekit"
	Target string
	Err    error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s endpoint %q: %v", e.Kind, e.Target, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// ResourceError reports a resource-exhaustion or node-protocol violation:
// buffer full, split branch failure, empty join, no matching route, or an
// unsupported payload type at a node, per spec.md §7's Resource
// classification.
type ResourceError struct {
	Kind    string
	NodeID  string
	Message string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s at node %q: %s", e.Kind, e.NodeID, e.Message)
}

// ConfigurationError reports a failure to construct a node: invalid IPC
// socket name, unknown provider, missing api key, and similar, per spec.md
// §7's Configuration classification. These always fail at factory time.
type ConfigurationError struct {
	NodeID  string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("node %q: invalid configuration: %s", e.NodeID, e.Message)
}

// SplitBranchError reports a failure inside one branch of a split node's
// fork, aborting the whole split.
type SplitBranchError struct {
	BranchID string
	Err      error
}

func (e *SplitBranchError) Error() string {
	return fmt.Sprintf("split branch %q failed: %v", e.BranchID, e.Err)
}

func (e *SplitBranchError) Unwrap() error { return e.Err }

// errEmptyJoin builds the error a join node returns when it receives no
// inputs.
func errEmptyJoin(nodeID string) error {
	return &ResourceError{Kind: "empty_join", NodeID: nodeID, Message: "join node received no inputs"}
}

// errNoMatchingRoute builds the error a router node returns when no route
// matches and no default route is configured.
func errNoMatchingRoute(nodeID string) error {
	return &ResourceError{Kind: "no_matching_route", NodeID: nodeID, Message: "no route matched and no default route is configured"}
}
