package nodes

import (
	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/provider/processor"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// MetadataVADEvent is the execctx metadata key a processor node writes
// the detected speech-boundary event type under, so downstream router
// conditions can branch on endpointing without an extra round trip.
const MetadataVADEvent = "vad_event"

// processorNode wraps a registered frame processor (built-in: Silero
// VAD), feeding it one audio frame per call and surfacing its boundary
// event via both the returned payload and context metadata.
type processorNode struct {
	id       string
	reg      *registry.Registry
	pluginID string
	cfg      processor.Config
}

func (n processorNode) ID() string   { return n.id }
func (n processorNode) Type() string { return "processor" }
func (n processorNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapJSONOut)
}

func (n processorNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	audio, ok := p.(payload.Audio)
	if !ok {
		return nil, &ResourceError{Kind: "unsupported_payload", NodeID: n.id, Message: "processor requires an Audio payload, got " + payload.Describe(p)}
	}

	engine, err := n.reg.CreateProcessor(registry.PluginConfig{Name: n.pluginID})
	if err != nil {
		return nil, &ProviderError{Kind: "processor", Provider: n.pluginID, Err: err}
	}

	sessionKey := "processor_session:" + n.id
	handle, ok := ctx.Resource(sessionKey)
	var session processor.SessionHandle
	if ok {
		session, ok = handle.(processor.SessionHandle)
	}
	if !ok {
		session, err = engine.NewSession(n.cfg)
		if err != nil {
			return nil, &ProviderError{Kind: "processor", Provider: n.pluginID, Err: err}
		}
		ctx.SetResource(sessionKey, session)
	}

	event, err := session.ProcessFrame(audio.Data)
	if err != nil {
		return nil, &ProviderError{Kind: "processor", Provider: n.pluginID, Err: err}
	}

	ctx.SetMetadata(MetadataVADEvent, event.Type.String())
	return payload.JSON{Value: map[string]any{
		"event":       event.Type.String(),
		"probability": event.Probability,
	}}, nil
}

// NewProcessor builds the processor node factory output. Config fields:
// "provider" (default "silero"), "sample_rate" (default 16000),
// "frame_size_ms" (default 32), "speech_threshold" (default 0.5),
// "silence_threshold" (default 0.35), "min_speech_frames" (default 3),
// "min_silence_frames" (default 8).
func NewProcessor(reg *registry.Registry) dag.NodeFactory {
	return func(def dag.NodeDef) (dag.Node, error) {
		providerID, _ := def.Config["provider"].(string)
		if providerID == "" {
			providerID = "silero"
		}

		return processorNode{
			id:       def.ID,
			reg:      reg,
			pluginID: providerID,
			cfg: processor.Config{
				SampleRate:       intConfig(def.Config, "sample_rate", 16000),
				FrameSizeMs:      intConfig(def.Config, "frame_size_ms", 32),
				SpeechThreshold:  floatConfig(def.Config, "speech_threshold", 0.5),
				SilenceThreshold: floatConfig(def.Config, "silence_threshold", 0.35),
				MinSpeechFrames:  intConfig(def.Config, "min_speech_frames", 3),
				MinSilenceFrames: intConfig(def.Config, "min_silence_frames", 8),
			},
		}, nil
	}
}

func floatConfig(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
