package nodes

import (
	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// Factories returns the complete set of wire node-type constructors, keyed
// by the node "type" string as it appears in a flow document, ready to
// hand to dag.Compile. Provider-backed node types close over reg to
// resolve a plugin by name at construction time.
func Factories(reg *registry.Registry) map[string]dag.NodeFactory {
	return map[string]dag.NodeFactory{
		"audio_input":        NewAudioInput,
		"text_input":         NewTextInput,
		"audio_output":       NewAudioOutput,
		"text_output":        NewTextOutput,
		"stt_provider":       NewSTTProvider(reg),
		"tts_provider":       NewTTSProvider(reg),
		"realtime_provider":  NewRealtimeProvider(reg),
		"processor":          NewProcessor(reg),
		"http_endpoint":      NewHTTPEndpoint,
		"grpc_endpoint":      NewGRPCEndpoint,
		"websocket_endpoint": NewWebSocketEndpoint,
		"ipc_endpoint":       NewIPCEndpoint,
		"livekit_endpoint":   NewRoomEndpoint,
		"webhook_output":     NewWebhookOutput,
		"split":              NewSplit,
		"join":               NewJoin,
		"router":             NewRouter,
		"transform":          NewTransform,
		"passthrough":        NewPassthrough,
	}
}
