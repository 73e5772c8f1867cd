package nodes

import (
	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/script"
)

// MetadataSplitBranches is the execctx metadata key a split node writes
// its branch-id list under. The executor forks on the list returned by
// the node's Branches method, not on this key.
const MetadataSplitBranches = "split_branches"

// MetadataRouterTarget is the execctx metadata key a router node writes
// its chosen target node id under, for the executor to prune on.
const MetadataRouterTarget = "router_target"

// passthroughNode is the identity node, used as a clean join point for
// fan-in/fan-out patterns.
type passthroughNode struct{ id string }

func (n passthroughNode) ID() string   { return n.id }
func (n passthroughNode) Type() string { return "passthrough" }
func (n passthroughNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapTextOut, dag.CapJSONOut)
}
func (n passthroughNode) Execute(_ *execctx.Context, p payload.Payload) (payload.Payload, error) {
	return p, nil
}

// NewPassthrough builds the passthrough node factory output.
func NewPassthrough(def dag.NodeDef) (dag.Node, error) {
	return passthroughNode{id: def.ID}, nil
}

// transformNode runs a compiled script against its input payload and
// converts the result back to a payload, per spec.md §4.4.
type transformNode struct {
	id        string
	transform *script.Compiled
}

func (n transformNode) ID() string   { return n.id }
func (n transformNode) Type() string { return "transform" }
func (n transformNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapTextOut, dag.CapJSONOut)
}
func (n transformNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	return dag.RunTransform(n.transform, p, ctx)
}

// NewTransform builds the transform node factory output. The script
// source is read from def.Config["script"].
func NewTransform(def dag.NodeDef) (dag.Node, error) {
	source, _ := def.Config["script"].(string)
	if source == "" {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "transform node requires a non-empty \"script\" config field"}
	}
	compiled, err := dag.CompileTransform(source)
	if err != nil {
		return nil, &ConfigurationError{NodeID: def.ID, Message: err.Error()}
	}
	return transformNode{id: def.ID, transform: compiled}, nil
}

// splitNode declares a set of branch node ids. Its Execute only records
// the branch list into context metadata and passes the payload through;
// the executor performs the actual fork, per spec.md §4.4/§4.7.
type splitNode struct {
	id       string
	branches []string
}

func (n splitNode) ID() string   { return n.id }
func (n splitNode) Type() string { return "split" }
func (n splitNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapTextOut, dag.CapJSONOut)
}
func (n splitNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	ctx.SetMetadata(MetadataSplitBranches, n.branches)
	return p, nil
}

// Branches returns the node's declared branch ids, for the executor.
func (n splitNode) Branches() []string { return n.branches }

// NewSplit builds the split node factory output. Branch ids are read from
// def.Config["branches"] as a []string or []any of strings.
func NewSplit(def dag.NodeDef) (dag.Node, error) {
	branches, err := stringSlice(def.Config["branches"])
	if err != nil {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "split node \"branches\": " + err.Error()}
	}
	if len(branches) == 0 {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "split node requires at least one branch"}
	}
	return splitNode{id: def.ID, branches: branches}, nil
}

// routerRoute is one compiled route of a router node.
type routerRoute struct {
	targetID string
	cond     *dag.CompiledCondition
	priority int
	isDflt   bool
}

// routerNode holds an ordered (by descending priority) list of compiled
// routes and writes the chosen target id to context metadata for the
// executor to prune on.
type routerNode struct {
	id     string
	routes []routerRoute
}

func (n routerNode) ID() string   { return n.id }
func (n routerNode) Type() string { return "router" }
func (n routerNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapTextOut, dag.CapJSONOut)
}

func (n routerNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	var fallback *routerRoute
	for i := range n.routes {
		route := &n.routes[i]
		if route.isDflt {
			if fallback == nil {
				fallback = route
			}
			continue
		}
		ok, err := dag.Evaluate(route.cond, p, ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			ctx.SetMetadata(MetadataRouterTarget, route.targetID)
			return p, nil
		}
	}
	if fallback != nil {
		ctx.SetMetadata(MetadataRouterTarget, fallback.targetID)
		return p, nil
	}
	return nil, errNoMatchingRoute(n.id)
}

// routeDef mirrors the free-form shape of one entry in a router node's
// "routes" config list: {target, condition?, priority?, default?}.
type routeDef struct {
	Target    string
	Condition string
	Priority  int
	Default   bool
}

// NewRouter builds the router node factory output. Routes are read from
// def.Config["routes"], sorted by descending priority at construction.
func NewRouter(def dag.NodeDef) (dag.Node, error) {
	raw, ok := def.Config["routes"].([]any)
	if !ok || len(raw) == 0 {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "router node requires a non-empty \"routes\" config list"}
	}

	routes := make([]routerRoute, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "router node route entries must be objects"}
		}
		rd := parseRouteDef(entry)
		if rd.Target == "" {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "router node route entry is missing \"target\""}
		}
		cond, err := dag.CompileCondition(rd.Condition, nil)
		if err != nil {
			return nil, &ConfigurationError{NodeID: def.ID, Message: err.Error()}
		}
		routes = append(routes, routerRoute{
			targetID: rd.Target,
			cond:     cond,
			priority: rd.Priority,
			isDflt:   rd.Default,
		})
	}

	sortRoutesByPriorityDesc(routes)
	return routerNode{id: def.ID, routes: routes}, nil
}

func parseRouteDef(entry map[string]any) routeDef {
	rd := routeDef{}
	if v, ok := entry["target"].(string); ok {
		rd.Target = v
	}
	if v, ok := entry["condition"].(string); ok {
		rd.Condition = v
	}
	if v, ok := entry["priority"].(float64); ok {
		rd.Priority = int(v)
	} else if v, ok := entry["priority"].(int); ok {
		rd.Priority = v
	}
	if v, ok := entry["default"].(bool); ok {
		rd.Default = v
	}
	return rd
}

func sortRoutesByPriorityDesc(routes []routerRoute) {
	for i := 1; i < len(routes); i++ {
		for j := i; j > 0 && routes[j].priority > routes[j-1].priority; j-- {
			routes[j], routes[j-1] = routes[j-1], routes[j]
		}
	}
}

func stringSlice(v any) ([]string, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, errNotAStringList
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errNotAStringList
	}
}

var errNotAStringList = configValueError("expected a list of strings")

type configValueError string

func (e configValueError) Error() string { return string(e) }
