package nodes

import (
	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// RoomClient is the narrow capability a room endpoint node needs from a
// live real-time room connection, retrieved from the execution context's
// resource bag under execctx.ResourceRoomClient. Kept as an interface so
// the node stays testable without a live room connection. This module
// contains no implementation of it; without one in the resource bag the
// node fails with an endpoint error.
type RoomClient interface {
	// PublishAudioTrack sends raw PCM audio bytes as a published track.
	PublishAudioTrack(data []byte, sampleRate, channels int) error

	// PublishMessage sends a typed text/JSON message to the room, tagged
	// with kind (e.g. "text", "json", "transcriptions").
	PublishMessage(kind string, data []byte) error
}

// roomEndpointNode sends payloads into an external real-time room using
// the session's room client handle, per spec.md §4.4's Room endpoint node.
type roomEndpointNode struct {
	id string
}

func (n roomEndpointNode) ID() string   { return n.id }
func (n roomEndpointNode) Type() string { return "livekit_endpoint" }
func (n roomEndpointNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapJSONIn)
}

func (n roomEndpointNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	handle, ok := ctx.Resource(execctx.ResourceRoomClient)
	if !ok {
		return nil, &EndpointError{Kind: "livekit", Target: n.id, Err: errNoRoomClient}
	}
	client, ok := handle.(RoomClient)
	if !ok {
		return nil, &EndpointError{Kind: "livekit", Target: n.id, Err: errNoRoomClient}
	}

	if err := n.deliver(client, p); err != nil {
		return nil, &EndpointError{Kind: "livekit", Target: n.id, Err: err}
	}
	return p, nil
}

func (n roomEndpointNode) deliver(client RoomClient, p payload.Payload) error {
	switch v := p.(type) {
	case payload.Audio:
		return client.PublishAudioTrack(v.Data, v.SampleRate, v.Channels)
	case payload.Text:
		return client.PublishMessage("text", []byte(v.Value))
	case payload.JSON:
		body, err := payload.MarshalJSON(v)
		if err != nil {
			return err
		}
		return client.PublishMessage("json", body)
	case payload.STTResult:
		body, err := payload.MarshalJSON(v)
		if err != nil {
			return err
		}
		return client.PublishMessage("transcriptions", body)
	case payload.Multiple:
		for _, item := range v.Items {
			if err := n.deliver(client, item); err != nil {
				return err
			}
		}
		return nil
	case payload.Empty:
		return nil
	default:
		return &ResourceError{Kind: "unsupported_payload", NodeID: n.id, Message: "livekit_endpoint cannot deliver " + payload.Describe(p)}
	}
}

var errNoRoomClient = configValueError("no room client resource bound under execctx.ResourceRoomClient")

// NewRoomEndpoint builds the livekit_endpoint node factory output.
func NewRoomEndpoint(def dag.NodeDef) (dag.Node, error) {
	return roomEndpointNode{id: def.ID}, nil
}

// webhookOutputNode delivers a payload to an external HTTP webhook,
// fire-and-forget style, distinct from http_endpoint in that it never
// returns a transformed payload — it passes the input through and only
// surfaces delivery failure as an error.
type webhookOutputNode struct {
	http httpEndpointNode
}

func (n webhookOutputNode) ID() string   { return n.http.id }
func (n webhookOutputNode) Type() string { return "webhook_output" }
func (n webhookOutputNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapJSONIn, dag.CapTextIn, dag.CapAudioIn)
}

func (n webhookOutputNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	if _, err := n.http.Execute(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// NewWebhookOutput builds the webhook_output node factory output, reusing
// http_endpoint's client/request machinery with method forced to POST.
func NewWebhookOutput(def dag.NodeDef) (dag.Node, error) {
	def.Config["method"] = "POST"
	httpNode, err := NewHTTPEndpoint(def)
	if err != nil {
		return nil, err
	}
	return webhookOutputNode{http: httpNode.(httpEndpointNode)}, nil
}
