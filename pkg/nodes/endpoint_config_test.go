package nodes_test

import (
	"testing"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/nodes"
)

func TestNewHTTPEndpointRequiresURL(t *testing.T) {
	_, err := nodes.NewHTTPEndpoint(dag.NodeDef{ID: "h1", Type: "http_endpoint", Config: map[string]any{}})
	if err == nil {
		t.Fatal("expected a configuration error for a missing url")
	}
}

func TestNewHTTPEndpointRejectsUnknownMethod(t *testing.T) {
	_, err := nodes.NewHTTPEndpoint(dag.NodeDef{
		ID:     "h1",
		Type:   "http_endpoint",
		Config: map[string]any{"url": "https://example.com", "method": "TRACE"},
	})
	if err == nil {
		t.Fatal("expected a configuration error for an unsupported method")
	}
}

func TestNewGRPCEndpointRequiresTargetServiceMethod(t *testing.T) {
	if _, err := nodes.NewGRPCEndpoint(dag.NodeDef{ID: "g1", Type: "grpc_endpoint", Config: map[string]any{}}); err == nil {
		t.Fatal("expected a configuration error for a missing target")
	}
	if _, err := nodes.NewGRPCEndpoint(dag.NodeDef{
		ID:     "g1",
		Type:   "grpc_endpoint",
		Config: map[string]any{"target": "example.com:443"},
	}); err == nil {
		t.Fatal("expected a configuration error for a missing service/method")
	}
}

func TestNewGRPCEndpointRejectsInsecureTLSAgainstLocalhost(t *testing.T) {
	_, err := nodes.NewGRPCEndpoint(dag.NodeDef{
		ID:   "g1",
		Type: "grpc_endpoint",
		Config: map[string]any{
			"target":       "localhost:9000",
			"service":      "svc",
			"method":       "Call",
			"insecure_tls": true,
		},
	})
	if err == nil {
		t.Fatal("expected a configuration error rejecting insecure_tls against localhost")
	}
}

func TestNewWebSocketEndpointRequiresURL(t *testing.T) {
	_, err := nodes.NewWebSocketEndpoint(dag.NodeDef{ID: "w1", Type: "websocket_endpoint", Config: map[string]any{}})
	if err == nil {
		t.Fatal("expected a configuration error for a missing url")
	}
}

func TestNewIPCEndpointValidatesSocketName(t *testing.T) {
	if _, err := nodes.NewIPCEndpoint(dag.NodeDef{ID: "i1", Type: "ipc_endpoint", Config: map[string]any{}}); err == nil {
		t.Fatal("expected a configuration error for a missing socket_name")
	}
	if _, err := nodes.NewIPCEndpoint(dag.NodeDef{
		ID:     "i1",
		Type:   "ipc_endpoint",
		Config: map[string]any{"socket_name": "../escape"},
	}); err == nil {
		t.Fatal("expected a configuration error for a socket_name containing path traversal characters")
	}
	n, err := nodes.NewIPCEndpoint(dag.NodeDef{
		ID:     "i1",
		Type:   "ipc_endpoint",
		Config: map[string]any{"socket_name": "valid_name-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error for a valid socket name: %v", err)
	}
	if n.ID() != "i1" {
		t.Fatalf("expected node id i1, got %q", n.ID())
	}
}

func TestNewWebhookOutputReusesHTTPValidation(t *testing.T) {
	_, err := nodes.NewWebhookOutput(dag.NodeDef{ID: "wh1", Type: "webhook_output", Config: map[string]any{}})
	if err == nil {
		t.Fatal("expected a configuration error for a missing url")
	}
}
