package main

import (
	"log/slog"

	"github.com/budecosystem/waav-gateway/internal/config"
	"github.com/budecosystem/waav-gateway/pkg/provider/processor"
	"github.com/budecosystem/waav-gateway/pkg/provider/processor/silero"
	"github.com/budecosystem/waav-gateway/pkg/provider/realtime"
	"github.com/budecosystem/waav-gateway/pkg/provider/realtime/gemini"
	"github.com/budecosystem/waav-gateway/pkg/provider/stt"
	"github.com/budecosystem/waav-gateway/pkg/provider/stt/deepgram"
	"github.com/budecosystem/waav-gateway/pkg/provider/tts"
	"github.com/budecosystem/waav-gateway/pkg/provider/tts/elevenlabs"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// registerBuiltins registers every built-in provider factory this binary
// ships with. A factory only touches the network once a pipeline actually
// instantiates it via the registry's Create* methods, so registering a
// factory for a provider the operator never configures costs nothing.
func registerBuiltins(reg *registry.Registry) {
	reg.RegisterSTT("deepgram", registry.Metadata{
		DisplayName: "Deepgram",
		Description: "Deepgram streaming speech-to-text",
		Features:    []string{"streaming", "interim-results"},
		Models:      []string{"nova-2", "nova-3"},
	}, func(cfg registry.PluginConfig) (stt.Provider, error) {
		opts := []deepgram.Option{}
		if cfg.Model != "" {
			opts = append(opts, deepgram.WithModel(cfg.Model))
		}
		if lang, ok := cfg.Options["language"].(string); ok && lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if rate, ok := cfg.Options["sample_rate"].(int); ok && rate != 0 {
			opts = append(opts, deepgram.WithSampleRate(rate))
		}
		return deepgram.New(cfg.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", registry.Metadata{
		DisplayName: "ElevenLabs",
		Description: "ElevenLabs text-to-speech",
		Features:    []string{"streaming"},
	}, func(cfg registry.PluginConfig) (tts.Provider, error) {
		opts := []elevenlabs.Option{}
		if cfg.Model != "" {
			opts = append(opts, elevenlabs.WithModel(cfg.Model))
		}
		if format, ok := cfg.Options["output_format"].(string); ok && format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(cfg.APIKey, opts...)
	})

	reg.RegisterRealtime("gemini", registry.Metadata{
		DisplayName: "Gemini Live",
		Description: "Google Gemini realtime speech-to-speech",
		Features:    []string{"speech-to-speech", "streaming"},
		Models:      []string{"gemini-2.0-flash-live-001"},
	}, func(cfg registry.PluginConfig) (realtime.Provider, error) {
		opts := []gemini.Option{}
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		return gemini.New(cfg.APIKey, opts...), nil
	})

	reg.RegisterProcessor("silero", registry.Metadata{
		DisplayName: "Silero VAD",
		Description: "Silero voice-activity-detection ONNX model",
		Features:    []string{"vad"},
		RequiredConfig: []string{
			"model_path",
		},
		OptionalConfig: []string{
			"shared_library_path",
		},
	}, func(cfg registry.PluginConfig) (processor.Engine, error) {
		opts := silero.Options{}
		if p, ok := cfg.Options["model_path"].(string); ok {
			opts.ModelPath = p
		}
		if p, ok := cfg.Options["shared_library_path"].(string); ok {
			opts.SharedLibraryPath = p
		}
		return silero.NewEngine(opts)
	})

	slog.Debug("built-in provider factories registered", "stt", []string{"deepgram"}, "tts", []string{"elevenlabs"}, "realtime", []string{"gemini"}, "processor", []string{"silero"})
}

// logConfiguredProviders logs, at startup, every provider slot the loaded
// configuration names, so an operator can see at a glance what the gateway
// will attempt to construct.
func logConfiguredProviders(cfg *config.Config) {
	logSlot := func(kind string, entries []config.ProviderEntry) {
		for _, e := range entries {
			slog.Info("provider configured", "kind", kind, "name", e.Name, "model", e.Model)
		}
	}
	logSlot("stt", cfg.Providers.STT)
	logSlot("tts", cfg.Providers.TTS)
	logSlot("realtime", cfg.Providers.Realtime)
	logSlot("processor", cfg.Providers.Processor)
}
