package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/provider/tts"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

const defaultMaxTTSBytes = 100 << 20 // 100 MiB

// ttsProviderNode wraps a registered TTS provider, per spec.md §4.4's TTS
// provider node.
type ttsProviderNode struct {
	id       string
	reg      *registry.Registry
	pluginID string
	apiKey   string
	model    string
	opts     tts.SynthesizeOptions
	maxBytes int
	timeout  time.Duration
}

func (n ttsProviderNode) ID() string   { return n.id }
func (n ttsProviderNode) Type() string { return "tts_provider" }
func (n ttsProviderNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapTextIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapCancellable)
}

func (n ttsProviderNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	text, ok := payload.TextOf(p)
	if !ok {
		return nil, &ResourceError{Kind: "unsupported_payload", NodeID: n.id, Message: "tts_provider requires text-bearing input, got " + payload.Describe(p)}
	}

	provider, err := n.reg.CreateTTS(registry.PluginConfig{Name: n.pluginID, APIKey: n.apiKey, Model: n.model})
	if err != nil {
		return nil, &ProviderError{Kind: "tts", Provider: n.pluginID, Err: err}
	}

	timeout := minDuration(n.timeout, ctx.Remaining())
	callCtx, cancel := context.WithTimeout(ctx.Ctx(), timeout)
	defer cancel()

	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	audioCh, err := provider.SynthesizeStream(callCtx, textCh, n.opts)
	if err != nil {
		return nil, &ProviderError{Kind: "tts", Provider: n.pluginID, Err: err}
	}

	var data []byte
	sampleRate, format := 0, ""
	var durationMs int64
	gotChunk := false

	for {
		select {
		case <-ctx.Done():
			return nil, context.Canceled
		case chunk, ok := <-audioCh:
			if !ok {
				return n.finalResult(data, sampleRate, format, durationMs, gotChunk), nil
			}
			if n.maxBytes > 0 && len(data)+len(chunk.Data) > n.maxBytes {
				return nil, &ProviderError{Kind: "tts", Provider: n.pluginID, Err: fmt.Errorf("size limit exceeded: synthesized audio exceeded the configured %d byte cap", n.maxBytes)}
			}
			data = append(data, chunk.Data...)
			sampleRate = chunk.SampleRate
			format = chunk.Format
			durationMs += chunk.DurationMs
			gotChunk = true
			if chunk.IsFinal {
				return n.finalResult(data, sampleRate, format, durationMs, gotChunk), nil
			}
		}
	}
}

func (n ttsProviderNode) finalResult(data []byte, sampleRate int, format string, durationMs int64, gotChunk bool) payload.Payload {
	if !gotChunk {
		return payload.Empty{}
	}
	return payload.TTSAudio{
		Data:       data,
		SampleRate: sampleRate,
		Format:     format,
		DurationMs: durationMs,
		IsFinal:    true,
	}
}

// NewTTSProvider builds the tts_provider node factory output. Config
// fields: "provider" (required), "voice", "model", "api_key",
// "max_bytes" (default 100 MiB).
func NewTTSProvider(reg *registry.Registry) dag.NodeFactory {
	return func(def dag.NodeDef) (dag.Node, error) {
		providerID, _ := def.Config["provider"].(string)
		if providerID == "" {
			return nil, &ConfigurationError{NodeID: def.ID, Message: "tts_provider requires a \"provider\" config field"}
		}

		voice, _ := def.Config["voice"].(string)
		model, _ := def.Config["model"].(string)
		apiKey, _ := def.Config["api_key"].(string)
		maxBytes := intConfig(def.Config, "max_bytes", defaultMaxTTSBytes)

		timeoutMs := def.TimeoutMs
		if timeoutMs == 0 {
			timeoutMs = int(defaultProviderTimeout / time.Millisecond)
		}
		timeout := time.Duration(timeoutMs) * time.Millisecond
		if timeout > maxProviderTimeout {
			timeout = maxProviderTimeout
		}

		return ttsProviderNode{
			id:       def.ID,
			reg:      reg,
			pluginID: providerID,
			apiKey:   apiKey,
			model:    model,
			maxBytes: maxBytes,
			timeout:  timeout,
			opts:     tts.SynthesizeOptions{Voice: voice, Model: model},
		}, nil
	}
}
