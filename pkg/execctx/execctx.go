// Package execctx provides the per-session execution context threaded
// through every node's Execute call: a cancellation-aware wrapper over
// context.Context carrying the stream id, authentication identity, a
// free-form metadata map, a resource-handle bag, and per-node timing used
// for diagnostics and metrics.
//
// A Context is created once per top-level execution (§6's "session context
// population") and cloned for each forked split branch: forked contexts
// share the parent's cancellation token and deadline but own their
// metadata map, so that sibling branches never race on each other's writes
// (§5's "single-writer" requirement applies per-branch, not across
// branches).
package execctx

import (
	"context"
	"sync"
	"time"
)

// Context is the session-scoped execution context passed to every node's
// Execute method. All methods are safe for concurrent use.
type Context struct {
	ctx context.Context

	// StreamID identifies the client session this execution belongs to.
	StreamID string

	// AuthToken is the caller-supplied authentication token, if any.
	AuthToken string

	// AuthTokenID identifies AuthToken for api-key routing and logging
	// without exposing the token itself.
	AuthTokenID string

	deadline time.Time

	mu       sync.RWMutex
	metadata map[string]any

	// resources is a pointer shared by all forked descendants of the same
	// root Context, so that concurrent split branches reading or writing
	// the bag itself (not the handles it stores) never race.
	resources *resourceBag

	timingMu sync.Mutex
	timing   map[string]NodeTiming
}

// resourceBag is the mutex-guarded map backing the resource-handle bag,
// shared by pointer across a Context and all of its forked descendants.
type resourceBag struct {
	mu sync.RWMutex
	m  map[string]any
}

// NodeTiming records when a node started and finished executing, for
// diagnostics and metrics.
type NodeTiming struct {
	Start time.Time
	End   time.Time
}

// Duration returns End minus Start.
func (t NodeTiming) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// New creates a root execution Context. deadline is the absolute wall-clock
// time by which the execution must complete; pass the zero Time for no
// deadline.
func New(ctx context.Context, streamID string, deadline time.Time) *Context {
	return &Context{
		ctx:       ctx,
		StreamID:  streamID,
		deadline:  deadline,
		metadata:  make(map[string]any),
		resources: &resourceBag{m: make(map[string]any)},
		timing:    make(map[string]NodeTiming),
	}
}

// Ctx returns the underlying context.Context, whose cancellation is the
// shared cancellation token polled at every suspension point.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Done returns the channel closed when the execution is cancelled.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the cancellation cause, or nil if still active.
func (c *Context) Err() error {
	return c.ctx.Err()
}

// Deadline returns the absolute deadline and whether one was set.
func (c *Context) Deadline() (time.Time, bool) {
	return c.deadline, !c.deadline.IsZero()
}

// Remaining returns the time left until Deadline, or the largest
// representable duration if no deadline was set.
func (c *Context) Remaining() time.Duration {
	if c.deadline.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Until(c.deadline)
}

// NodeDeadline returns min(nodeTimeout, c.Remaining()), the effective
// per-node deadline spec.md §5 describes.
func (c *Context) NodeDeadline(nodeTimeout time.Duration) time.Duration {
	remaining := c.Remaining()
	if nodeTimeout <= 0 || remaining < nodeTimeout {
		return remaining
	}
	return nodeTimeout
}

// SetMetadata stores a metadata value under key, visible to subsequent
// nodes and to script evaluation scope injection.
func (c *Context) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Metadata returns the value stored under key, if any.
func (c *Context) Metadata(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// DeleteMetadata removes key from the metadata map. Used by the executor to
// clear router_target after processing a router node.
func (c *Context) DeleteMetadata(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metadata, key)
}

// MetadataSnapshot returns a shallow copy of the current metadata map, for
// scope injection into script/condition evaluation.
func (c *Context) MetadataSnapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// Well-known resource-bag keys.
const (
	// ResourceRoomClient is the key under which a room/real-time client
	// handle (e.g. a LiveKit room connection) is stored for room endpoint
	// nodes to retrieve.
	ResourceRoomClient = "room_client"
)

// SetResource stores a resource handle under key (e.g. ResourceRoomClient).
// The handle itself is responsible for its own internal synchronization if
// shared across concurrent split branches.
func (c *Context) SetResource(key string, handle any) {
	c.resources.mu.Lock()
	defer c.resources.mu.Unlock()
	c.resources.m[key] = handle
}

// Resource returns the handle stored under key, if any.
func (c *Context) Resource(key string) (any, bool) {
	c.resources.mu.RLock()
	defer c.resources.mu.RUnlock()
	v, ok := c.resources.m[key]
	return v, ok
}

// RecordTiming stores the start/end timestamps for nodeID, used by the
// executor to populate per-node metrics.
func (c *Context) RecordTiming(nodeID string, t NodeTiming) {
	c.timingMu.Lock()
	defer c.timingMu.Unlock()
	c.timing[nodeID] = t
}

// Timing returns the recorded NodeTiming for nodeID, if any.
func (c *Context) Timing(nodeID string) (NodeTiming, bool) {
	c.timingMu.Lock()
	defer c.timingMu.Unlock()
	t, ok := c.timing[nodeID]
	return t, ok
}

// Fork returns a child Context for a split branch: it shares this
// Context's underlying context.Context (and therefore its cancellation
// token and deadline) but owns an independent metadata map, so that
// concurrent sibling branches never race on each other's metadata writes.
// The resource bag and auth identity are shared by reference, matching
// §5's statement that resource handles "may be shared" across parallel
// branches and must provide their own synchronization.
func (c *Context) Fork() *Context {
	c.mu.RLock()
	inherited := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		inherited[k] = v
	}
	c.mu.RUnlock()

	return &Context{
		ctx:         c.ctx,
		StreamID:    c.StreamID,
		AuthToken:   c.AuthToken,
		AuthTokenID: c.AuthTokenID,
		deadline:    c.deadline,
		metadata:    inherited,
		resources:   c.resources,
		timing:      make(map[string]NodeTiming),
	}
}
