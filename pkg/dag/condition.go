package dag

import (
	"fmt"

	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/script"
)

// ConditionKind discriminates the compiled-condition variants named in
// spec.md §4.3.
type ConditionKind int

const (
	// ConditionAlways is trivially true (an edge with neither Condition
	// nor Switch set).
	ConditionAlways ConditionKind = iota

	// ConditionExpression wraps a compiled boolean script expression.
	ConditionExpression

	// ConditionSwitch wraps a compiled dot-path match table.
	ConditionSwitch
)

// CompiledCondition is the result of compiling one edge's Condition or
// Switch field.
type CompiledCondition struct {
	Kind ConditionKind

	// Expr is set when Kind == ConditionExpression.
	Expr *script.Compiled

	// Source is the original expression string, kept for diagnostics.
	Source string

	// Switch is set when Kind == ConditionSwitch.
	Switch *script.Switch
}

// CompileCondition compiles an edge's Condition or Switch field (at most
// one of which should be set) into a CompiledCondition. An edge with
// neither set compiles to ConditionAlways.
func CompileCondition(condition string, sw *SwitchDef) (*CompiledCondition, error) {
	if sw != nil {
		compiled := script.CompileSwitch(sw.Field, sw.Cases, sw.Default, sw.HasDefault)
		return &CompiledCondition{Kind: ConditionSwitch, Switch: compiled}, nil
	}
	if condition == "" {
		return &CompiledCondition{Kind: ConditionAlways}, nil
	}
	compiled, err := script.Compile(condition, script.DefaultConditionLimits())
	if err != nil {
		return nil, err
	}
	return &CompiledCondition{Kind: ConditionExpression, Expr: compiled, Source: condition}, nil
}

// CompileTransform compiles an edge's Transform field, permitted loops
// under the script (not condition) op budget. An empty source returns nil
// (no transform).
func CompileTransform(source string) (*script.Compiled, error) {
	if source == "" {
		return nil, nil
	}
	return script.Compile(source, script.DefaultScriptLimits())
}

// Evaluate runs cond against the source payload p and ctx, returning
// whether the edge passes. ConditionSwitch and ConditionAlways conditions
// never fail evaluation; only ConditionExpression can return an error.
func Evaluate(cond *CompiledCondition, p payload.Payload, ctx *execctx.Context) (bool, error) {
	switch cond.Kind {
	case ConditionAlways:
		return true, nil
	case ConditionSwitch:
		_, ok := ResolveTarget(cond, p, ctx)
		return ok, nil
	case ConditionExpression:
		scope, err := buildScope(p, ctx)
		if err != nil {
			return false, err
		}
		return cond.Expr.EvaluateBool(scope)
	default:
		return false, fmt.Errorf("dag: unknown condition kind %d", cond.Kind)
	}
}

// ResolveTarget resolves a switch condition's target node id against p. ok
// is false if cond is not a switch condition, or if no case matched and no
// default was configured.
func ResolveTarget(cond *CompiledCondition, p payload.Payload, ctx *execctx.Context) (target string, ok bool) {
	if cond.Kind != ConditionSwitch {
		return "", false
	}
	data, err := payload.ToJSON(p)
	if err != nil {
		return "", false
	}
	return cond.Switch.Resolve(data)
}

// buildScope assembles the script.Scope used for expression/transform
// evaluation: the stream id, auth identity, stringified metadata, and the
// payload projection.
func buildScope(p payload.Payload, ctx *execctx.Context) (script.Scope, error) {
	metadata := ctx.MetadataSnapshot()
	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMeta[k] = fmt.Sprint(v)
	}
	return script.BuildScope(ctx.StreamID, ctx.AuthToken, ctx.AuthTokenID, strMeta, p)
}

// RunTransform evaluates a compiled transform against the source payload
// and converts its result back into a payload, per spec.md §4.4's
// transform-node conversion rules: strings become Text, numbers/booleans
// become Json, byte-range integer arrays become Binary, other
// arrays/maps become Json.
func RunTransform(transform *script.Compiled, p payload.Payload, ctx *execctx.Context) (payload.Payload, error) {
	scope, err := buildScope(p, ctx)
	if err != nil {
		return nil, err
	}
	result, err := transform.Evaluate(scope)
	if err != nil {
		return nil, err
	}
	return ConvertScriptResult(result), nil
}

// ConvertScriptResult implements the transform-node return-value
// conversion rules from spec.md §4.4.
func ConvertScriptResult(v any) payload.Payload {
	switch val := v.(type) {
	case []int64:
		arr := make([]any, len(val))
		for i, n := range val {
			arr[i] = n
		}
		return ConvertScriptResult(arr)
	case []float64:
		arr := make([]any, len(val))
		for i, n := range val {
			arr[i] = n
		}
		return ConvertScriptResult(arr)
	case string:
		return payload.Text{Value: val}
	case bool:
		return payload.JSON{Value: val}
	case float64, int, int64:
		return payload.JSON{Value: val}
	case []any:
		if bytes, ok := asByteArray(val); ok {
			return payload.Binary{Data: bytes}
		}
		return payload.JSON{Value: val}
	case nil:
		return payload.Empty{}
	default:
		return payload.JSON{Value: val}
	}
}

// asByteArray reports whether every element of arr is an integer in
// [0, 255], and if so returns it converted to a byte slice.
func asByteArray(arr []any) ([]byte, bool) {
	out := make([]byte, len(arr))
	for i, elem := range arr {
		n, ok := asInRangeInt(elem)
		if !ok {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

func asInRangeInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if f < 0 || f > 255 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
