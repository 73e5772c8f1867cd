package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/script"
)

// JoinStrategy selects how a join node combines its gathered inputs.
type JoinStrategy string

const (
	JoinFirst JoinStrategy = "first"
	JoinAll   JoinStrategy = "all"
	JoinBest  JoinStrategy = "best"
	JoinMerge JoinStrategy = "merge"
)

// joinNode combines Multiple(...) (or a single payload) produced by the
// executor's gathering step, per spec.md §4.4.
type joinNode struct {
	id       string
	strategy JoinStrategy
	selector *script.Compiled // Best
	merge    *script.Compiled // Merge
}

func (n joinNode) ID() string   { return n.id }
func (n joinNode) Type() string { return "join" }
func (n joinNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapTextOut, dag.CapJSONOut)
}

func (n joinNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	items := inputsOf(p)
	if len(items) == 0 {
		return nil, errEmptyJoin(n.id)
	}

	switch n.strategy {
	case JoinFirst:
		for _, item := range items {
			if !item.IsEmpty() {
				return item, nil
			}
		}
		return items[0], nil

	case JoinAll:
		return payload.Multiple{Items: items}, nil

	case JoinBest:
		return n.runBest(items)

	case JoinMerge:
		return n.runMerge(ctx, items)

	default:
		return nil, &ResourceError{Kind: "unknown_join_strategy", NodeID: n.id, Message: string(n.strategy)}
	}
}

func inputsOf(p payload.Payload) []payload.Payload {
	if m, ok := p.(payload.Multiple); ok {
		return m.Items
	}
	return []payload.Payload{p}
}

// runBest evaluates the selector script against a scope holding `results`
// (the inputs projected to JSON) and interprets its return value per
// spec.md §4.4: an integer index into the array, a map equal by JSON
// equality to one of the inputs, or any other value wrapped in Json.
func (n joinNode) runBest(items []payload.Payload) (payload.Payload, error) {
	results := make([]any, len(items))
	for i, item := range items {
		j, err := payload.ToJSON(item)
		if err != nil {
			return nil, err
		}
		results[i] = j
	}

	result, err := n.selector.Evaluate(script.Scope{"results": results})
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case int:
		return indexInto(items, v, n.id)
	case int64:
		return indexInto(items, int(v), n.id)
	case float64:
		return indexInto(items, int(v), n.id)
	case map[string]any:
		for i, candidate := range results {
			if jsonEqual(candidate, v) {
				return items[i], nil
			}
		}
		return payload.JSON{Value: v}, nil
	default:
		return payload.JSON{Value: v}, nil
	}
}

func indexInto(items []payload.Payload, idx int, nodeID string) (payload.Payload, error) {
	if idx < 0 || idx >= len(items) {
		return nil, &ResourceError{Kind: "join_index_out_of_range", NodeID: nodeID, Message: "selector script returned an out-of-range index"}
	}
	return items[idx], nil
}

// jsonEqual compares two decoded-JSON values for deep equality by
// re-marshaling, avoiding reflect.DeepEqual's sensitivity to map key
// ordering and numeric representation mismatches.
func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

func (n joinNode) runMerge(ctx *execctx.Context, items []payload.Payload) (payload.Payload, error) {
	results := make([]any, len(items))
	for i, item := range items {
		j, err := payload.ToJSON(item)
		if err != nil {
			return nil, err
		}
		results[i] = j
	}
	scope, err := script.BuildScope(ctx.StreamID, ctx.AuthToken, ctx.AuthTokenID, stringifyMetadata(ctx), payload.Empty{})
	if err != nil {
		return nil, err
	}
	scope["results"] = results

	result, err := n.merge.Evaluate(scope)
	if err != nil {
		return nil, err
	}
	return dag.ConvertScriptResult(result), nil
}

func stringifyMetadata(ctx *execctx.Context) map[string]string {
	snapshot := ctx.MetadataSnapshot()
	out := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// NewJoin builds the join node factory output. Config fields: "strategy"
// (first|all|best|merge), "selector" (script, required for best), "merge"
// (script, required for merge).
func NewJoin(def dag.NodeDef) (dag.Node, error) {
	strategy, _ := def.Config["strategy"].(string)
	n := joinNode{id: def.ID, strategy: JoinStrategy(strategy)}

	switch n.strategy {
	case JoinFirst, JoinAll:
		// no script required
	case JoinBest:
		source, _ := def.Config["selector"].(string)
		if source == "" {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "join node with strategy \"best\" requires a \"selector\" script"}
		}
		compiled, err := script.Compile(source, script.DefaultScriptLimits())
		if err != nil {
			return nil, &ConfigurationError{NodeID: def.ID, Message: err.Error()}
		}
		n.selector = compiled
	case JoinMerge:
		source, _ := def.Config["merge"].(string)
		if source == "" {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "join node with strategy \"merge\" requires a \"merge\" script"}
		}
		compiled, err := script.Compile(source, script.DefaultScriptLimits())
		if err != nil {
			return nil, &ConfigurationError{NodeID: def.ID, Message: err.Error()}
		}
		n.merge = compiled
	default:
		return nil, &ConfigurationError{NodeID: def.ID, Message: "join node has unknown or missing \"strategy\" (must be first|all|best|merge)"}
	}

	return n, nil
}
