package nodes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// websocketEndpointNode is a one-shot request/response client: connect,
// send one message, await the first reply, close — per spec.md §4.4's
// WebSocket-client endpoint node.
type websocketEndpointNode struct {
	id      string
	url     string
	headers map[string]string
	bearer  string
	timeout time.Duration
}

func (n websocketEndpointNode) ID() string   { return n.id }
func (n websocketEndpointNode) Type() string { return "websocket_endpoint" }
func (n websocketEndpointNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapJSONIn, dag.CapTextIn, dag.CapAudioIn, dag.CapJSONOut, dag.CapTextOut)
}

func (n websocketEndpointNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	timeout := minDuration(n.timeout, ctx.Remaining())
	callCtx, cancel := context.WithTimeout(ctx.Ctx(), timeout)
	defer cancel()

	header := httpHeaderOf(n.headers, n.bearer, ctx.StreamID)
	conn, _, err := websocket.Dial(callCtx, n.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, &EndpointError{Kind: "websocket", Target: n.url, Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := n.send(callCtx, conn, p); err != nil {
		return nil, &EndpointError{Kind: "websocket", Target: n.url, Err: err}
	}

	msgType, data, err := conn.Read(callCtx)
	if err != nil {
		return nil, &EndpointError{Kind: "websocket", Target: n.url, Err: err}
	}

	if msgType == websocket.MessageBinary {
		var decoded any
		if json.Unmarshal(data, &decoded) == nil {
			return payload.JSON{Value: decoded}, nil
		}
		return payload.Binary{Data: data}, nil
	}

	var decoded any
	if json.Unmarshal(data, &decoded) == nil {
		return payload.JSON{Value: decoded}, nil
	}
	return payload.Text{Value: string(data)}, nil
}

func (n websocketEndpointNode) send(ctx context.Context, conn *websocket.Conn, p payload.Payload) error {
	switch v := p.(type) {
	case payload.Audio:
		return conn.Write(ctx, websocket.MessageBinary, v.Data)
	case payload.Binary:
		return conn.Write(ctx, websocket.MessageBinary, v.Data)
	case payload.Text:
		return conn.Write(ctx, websocket.MessageText, []byte(v.Value))
	default:
		body, err := payload.MarshalJSON(p)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, body)
	}
}

func httpHeaderOf(headers map[string]string, bearer, streamID string) map[string][]string {
	h := make(map[string][]string, len(headers)+2)
	for k, v := range headers {
		h[k] = []string{v}
	}
	h["X-Stream-Id"] = []string{streamID}
	if bearer != "" {
		h["Authorization"] = []string{"Bearer " + bearer}
	}
	return h
}

// NewWebSocketEndpoint builds the websocket_endpoint node factory output.
// Config fields: "url" (required), "headers" (map[string]string),
// "bearer_token".
func NewWebSocketEndpoint(def dag.NodeDef) (dag.Node, error) {
	url, _ := def.Config["url"].(string)
	if url == "" {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "websocket_endpoint requires a \"url\" config field"}
	}

	headers := map[string]string{}
	if raw, ok := def.Config["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	bearer, _ := def.Config["bearer_token"].(string)

	timeoutMs := def.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = int(defaultProviderTimeout / time.Millisecond)
	}

	return websocketEndpointNode{
		id:      def.ID,
		url:     url,
		headers: headers,
		bearer:  bearer,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}
