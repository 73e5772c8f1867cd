package nodes

import (
	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// Destination names the conventional sink an output node hands its payload
// to; the surrounding server, not the node itself, interprets it.
type Destination string

const (
	DestinationWebSocket Destination = "web_socket"
	DestinationLiveKit   Destination = "live_kit"
	DestinationEndpoint  Destination = "endpoint"
	DestinationBroadcast Destination = "broadcast"
	DestinationDiscard   Destination = "discard"
)

// audioInputNode and textInputNode are identity nodes: the executor seeds
// node_outputs[start] with the incoming payload directly, so these nodes
// only need to exist structurally and pass through whatever they're given.
type audioInputNode struct{ id string }

func (n audioInputNode) ID() string   { return n.id }
func (n audioInputNode) Type() string { return "audio_input" }
func (n audioInputNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapAudioOut, dag.CapStreaming)
}
func (n audioInputNode) Execute(_ *execctx.Context, p payload.Payload) (payload.Payload, error) {
	return p, nil
}

type textInputNode struct{ id string }

func (n textInputNode) ID() string   { return n.id }
func (n textInputNode) Type() string { return "text_input" }
func (n textInputNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapTextIn, dag.CapTextOut, dag.CapJSONOut)
}
func (n textInputNode) Execute(_ *execctx.Context, p payload.Payload) (payload.Payload, error) {
	return p, nil
}

// outputNode is shared by audio_output and text_output: it names a
// destination and passes its payload through unchanged, leaving delivery
// to whatever component owns the session's client connection.
type outputNode struct {
	id          string
	typ         string
	destination Destination
	endpointID  string
}

func (n outputNode) ID() string   { return n.id }
func (n outputNode) Type() string { return n.typ }
func (n outputNode) Capabilities() dag.CapabilitySet {
	if n.typ == "audio_output" {
		return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapStreaming)
	}
	return dag.NewCapabilitySet(dag.CapTextIn, dag.CapJSONIn)
}
func (n outputNode) Execute(_ *execctx.Context, p payload.Payload) (payload.Payload, error) {
	return p, nil
}

// NewAudioInput builds the audio_input node factory output.
func NewAudioInput(def dag.NodeDef) (dag.Node, error) {
	return audioInputNode{id: def.ID}, nil
}

// NewTextInput builds the text_input node factory output.
func NewTextInput(def dag.NodeDef) (dag.Node, error) {
	return textInputNode{id: def.ID}, nil
}

// NewAudioOutput builds the audio_output node factory output.
func NewAudioOutput(def dag.NodeDef) (dag.Node, error) {
	return outputNode{id: def.ID, typ: "audio_output", destination: destinationOf(def)}, nil
}

// NewTextOutput builds the text_output node factory output.
func NewTextOutput(def dag.NodeDef) (dag.Node, error) {
	return outputNode{id: def.ID, typ: "text_output", destination: destinationOf(def)}, nil
}

func destinationOf(def dag.NodeDef) Destination {
	raw, _ := def.Config["destination"].(string)
	switch Destination(raw) {
	case DestinationWebSocket, DestinationLiveKit, DestinationEndpoint, DestinationBroadcast, DestinationDiscard:
		return Destination(raw)
	default:
		return DestinationDiscard
	}
}
