package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

const (
	maxHTTPErrorBodyExcerpt = 2048
	maxHTTPResponseBytes    = 32 << 20
)

// httpEndpointNode owns one pooled *http.Client for its lifetime, per
// spec.md §4.4's HTTP endpoint node.
type httpEndpointNode struct {
	id      string
	client  *http.Client
	url     string
	method  string
	headers map[string]string
	bearer  string
	timeout time.Duration
}

func (n httpEndpointNode) ID() string   { return n.id }
func (n httpEndpointNode) Type() string { return "http_endpoint" }
func (n httpEndpointNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapJSONIn, dag.CapJSONOut)
}

func (n httpEndpointNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	body, err := payload.MarshalJSON(p)
	if err != nil {
		return nil, &EndpointError{Kind: "http", Target: n.url, Err: err}
	}

	timeout := minDuration(n.timeout, ctx.Remaining())
	callCtx, cancel := context.WithTimeout(ctx.Ctx(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, n.method, n.url, bytes.NewReader(body))
	if err != nil {
		return nil, &EndpointError{Kind: "http", Target: n.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Stream-Id", ctx.StreamID)
	if n.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+n.bearer)
	}
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, &EndpointError{Kind: "http", Target: n.url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return nil, &EndpointError{Kind: "http", Target: n.url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := respBody
		if len(excerpt) > maxHTTPErrorBodyExcerpt {
			excerpt = excerpt[:maxHTTPErrorBodyExcerpt]
		}
		return nil, &EndpointError{
			Kind:   "http",
			Target: n.url,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, excerpt),
		}
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &EndpointError{Kind: "http", Target: n.url, Err: fmt.Errorf("decoding JSON response: %w", err)}
	}
	return payload.JSON{Value: decoded}, nil
}

// NewHTTPEndpoint builds the http_endpoint node factory output. Config
// fields: "url" (required), "method" (default POST), "headers"
// (map[string]string), "bearer_token".
func NewHTTPEndpoint(def dag.NodeDef) (dag.Node, error) {
	url, _ := def.Config["url"].(string)
	if url == "" {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "http_endpoint requires a \"url\" config field"}
	}

	method, _ := def.Config["method"].(string)
	switch method {
	case "", "POST":
		method = http.MethodPost
	case "GET", "PUT", "PATCH", "DELETE":
		// already a valid http.Method* constant string
	default:
		return nil, &ConfigurationError{NodeID: def.ID, Message: "http_endpoint \"method\" must be one of POST|GET|PUT|PATCH|DELETE"}
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

	return httpEndpointNode{
		id:      def.ID,
		client:  &http.Client{},
		url:     url,
		method:  method,
		headers: headers,
		bearer:  bearer,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}
