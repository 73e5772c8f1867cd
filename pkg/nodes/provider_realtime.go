package nodes

import (
	"context"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/provider/realtime"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// realtimeProviderNode wraps a registered realtime (full-duplex
// speech-to-speech) provider, per spec.md §4.4's realtime provider node.
type realtimeProviderNode struct {
	id       string
	reg      *registry.Registry
	pluginID string
	apiKey   string
	cfg      realtime.SessionConfig
	timeout  time.Duration
}

func (n realtimeProviderNode) ID() string   { return n.id }
func (n realtimeProviderNode) Type() string { return "realtime_provider" }
func (n realtimeProviderNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapTextIn, dag.CapAudioOut, dag.CapTextOut, dag.CapCancellable, dag.CapStreaming)
}

func (n realtimeProviderNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	provider, err := n.reg.CreateRealtime(registry.PluginConfig{Name: n.pluginID, APIKey: n.apiKey})
	if err != nil {
		return nil, &ProviderError{Kind: "realtime", Provider: n.pluginID, Err: err}
	}

	timeout := minDuration(n.timeout, ctx.Remaining())
	callCtx, cancel := context.WithTimeout(ctx.Ctx(), timeout)
	defer cancel()

	session, err := provider.Connect(callCtx, n.cfg)
	if err != nil {
		return nil, &ProviderError{Kind: "realtime", Provider: n.pluginID, Err: err}
	}
	defer session.Close()

	inputIsAudio := false
	switch v := p.(type) {
	case payload.Audio:
		inputIsAudio = true
		if err := session.SendAudio(v.Data); err != nil {
			return nil, &ProviderError{Kind: "realtime", Provider: n.pluginID, Err: err}
		}
		if err := session.CommitAudioBuffer(); err != nil {
			// logged-and-continue, per spec.md §7's local recovery note
			_ = err
		}
	default:
		text, ok := payload.TextOf(p)
		if !ok {
			return nil, &ResourceError{Kind: "unsupported_payload", NodeID: n.id, Message: "realtime_provider requires audio or text-bearing input, got " + payload.Describe(p)}
		}
		if err := session.SendText(text); err != nil {
			return nil, &ProviderError{Kind: "realtime", Provider: n.pluginID, Err: err}
		}
	}

	if err := session.CreateResponse(); err != nil {
		return nil, &ProviderError{Kind: "realtime", Provider: n.pluginID, Err: err}
	}

	var transcript payload.STTResult
	haveTranscript := false
	var audioData []byte
	haveAudio := false

	for {
		complete := haveTranscript && (!inputIsAudio || haveAudio)
		if complete {
			break
		}
		select {
		case <-ctx.Done():
			return nil, context.Canceled
		case <-callCtx.Done():
			goto done
		case t, ok := <-session.Transcripts():
			if !ok {
				goto done
			}
			if t.IsFinal {
				transcript = t
				haveTranscript = true
			}
		case chunk, ok := <-session.AudioOutput():
			if !ok {
				goto done
			}
			audioData = append(audioData, chunk...)
			haveAudio = true
		case <-session.Done():
			goto done
		}
	}

done:
	if haveAudio {
		return payload.TTSAudio{Data: audioData, SampleRate: 24000, Format: "pcm16", IsFinal: true}, nil
	}
	if haveTranscript {
		return payload.Text{Value: transcript.Transcript}, nil
	}
	return payload.Empty{}, nil
}

// NewRealtimeProvider builds the realtime_provider node factory output.
// Config fields: "provider" (required), "voice", "instructions",
// "sample_rate" (default 24000), "api_key".
func NewRealtimeProvider(reg *registry.Registry) dag.NodeFactory {
	return func(def dag.NodeDef) (dag.Node, error) {
		providerID, _ := def.Config["provider"].(string)
		if providerID == "" {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "realtime_provider requires a \"provider\" config field"}
		}

		voice, _ := def.Config["voice"].(string)
		instructions, _ := def.Config["instructions"].(string)
		apiKey, _ := def.Config["api_key"].(string)
		sampleRate := intConfig(def.Config, "sample_rate", 24000)

		timeoutMs := def.TimeoutMs
		if timeoutMs == 0 {
			timeoutMs = int(defaultProviderTimeout / time.Millisecond)
		}
		timeout := time.Duration(timeoutMs) * time.Millisecond
		if timeout > maxProviderTimeout {
			timeout = maxProviderTimeout
		}

		return realtimeProviderNode{
			id:       def.ID,
			reg:      reg,
			pluginID: providerID,
			apiKey:   apiKey,
			timeout:  timeout,
			cfg: realtime.SessionConfig{
				Voice:        voice,
				Instructions: instructions,
				SampleRate:   sampleRate,
			},
		}, nil
	}
}
