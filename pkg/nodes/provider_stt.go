package nodes

import (
	"context"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/provider/stt"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

const (
	defaultProviderTimeout = 30 * time.Second
	maxProviderTimeout     = 300 * time.Second
)

// sttProviderNode wraps a registered STT provider, per spec.md §4.4's
// STT provider node.
type sttProviderNode struct {
	id       string
	reg      *registry.Registry
	pluginID string
	model    string
	cfg      stt.StreamConfig
	apiKey   string
	timeout  time.Duration
}

func (n sttProviderNode) ID() string   { return n.id }
func (n sttProviderNode) Type() string { return "stt_provider" }
func (n sttProviderNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapJSONOut, dag.CapCancellable)
}

func (n sttProviderNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	audio, ok := p.(payload.Audio)
	if !ok {
		return nil, &ResourceError{Kind: "unsupported_payload", NodeID: n.id, Message: "stt_provider requires an Audio payload, got " + payload.Describe(p)}
	}

	provider, err := n.reg.CreateSTT(registry.PluginConfig{Name: n.pluginID, APIKey: n.apiKey, Model: n.model})
	if err != nil {
		return nil, &ProviderError{Kind: "stt", Provider: n.pluginID, Err: err}
	}

	timeout := minDuration(n.timeout, ctx.Remaining())
	callCtx, cancel := context.WithTimeout(ctx.Ctx(), timeout)
	defer cancel()

	session, err := provider.StartStream(callCtx, n.cfg)
	if err != nil {
		return nil, &ProviderError{Kind: "stt", Provider: n.pluginID, Err: err}
	}

	if err := session.SendAudio(audio.Data); err != nil {
		_ = session.Close()
		return nil, &ProviderError{Kind: "stt", Provider: n.pluginID, Err: err}
	}

	var lastInterim payload.STTResult
	haveInterim := false
	var final payload.STTResult
	haveFinal := false

	for !haveFinal {
		select {
		case <-ctx.Done():
			_ = session.Close()
			return nil, context.Canceled
		case <-callCtx.Done():
			goto done
		case result, ok := <-session.Partials():
			if !ok {
				goto done
			}
			lastInterim = result
			haveInterim = true
			if result.IsFinal || result.IsSpeechFinal {
				final = result
				haveFinal = true
			}
		case result, ok := <-session.Finals():
			if !ok {
				goto done
			}
			final = result
			haveFinal = true
		}
	}

done:
	if err := session.Close(); err != nil {
		// disconnect failures on teardown are logged and swallowed, per
		// spec.md §7's local-recovery note.
		_ = err
	}

	if haveFinal {
		return final, nil
	}
	if haveInterim {
		return lastInterim, nil
	}
	return payload.STTResult{Transcript: "", IsFinal: true, Confidence: 0.0, SpeechDetected: false}, nil
}

// NewSTTProvider builds the stt_provider node factory output. Config
// fields: "provider" (required), "model", "language", "api_key",
// "sample_rate" (default 16000), "channels" (default 1), "keywords"
// ([]string). The call timeout is def.TimeoutMs (30000 when zero), capped
// at 300000 ms.
func NewSTTProvider(reg *registry.Registry) dag.NodeFactory {
	return func(def dag.NodeDef) (dag.Node, error) {
		providerID, _ := def.Config["provider"].(string)
		if providerID == "" {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "stt_provider requires a \"provider\" config field"}
		}

		sampleRate := intConfig(def.Config, "sample_rate", 16000)
		channels := intConfig(def.Config, "channels", 1)
		language, _ := def.Config["language"].(string)
		model, _ := def.Config["model"].(string)
		apiKey, _ := def.Config["api_key"].(string)
		keywords, _ := stringSlice(def.Config["keywords"])

		timeoutMs := def.TimeoutMs
		if timeoutMs == 0 {
			timeoutMs = int(defaultProviderTimeout / time.Millisecond)
		}
		timeout := time.Duration(timeoutMs) * time.Millisecond
		if timeout > maxProviderTimeout {
			timeout = maxProviderTimeout
		}

		return sttProviderNode{
			id:       def.ID,
			reg:      reg,
			pluginID: providerID,
			model:    model,
			apiKey:   apiKey,
			timeout:  timeout,
			cfg: stt.StreamConfig{
				SampleRate: sampleRate,
				Channels:   channels,
				Language:   language,
				Keywords:   keywords,
			},
		}, nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func intConfig(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
