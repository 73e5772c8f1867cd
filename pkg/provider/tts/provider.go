// Package tts defines the Provider interface for Text-to-Speech backends
// consumed by the DAG's tts_provider node (see the gateway specification's
// provider node section).
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents a uniform streaming interface. The primary entry point is
// SynthesizeStream, which accepts a channel of text fragments and returns a
// channel of [payload.TTSAudio] chunks as they become available — enabling
// low-latency pipelining between upstream text and the audio mixer.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}

// SynthesizeOptions configures a single synthesis stream.
type SynthesizeOptions struct {
	// Voice selects the voice profile to speak with. Required by most
	// providers; see each implementation's documentation.
	Voice string

	// Model optionally overrides the provider's default synthesis model.
	Model string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel across independent streams.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits [payload.TTSAudio] chunks as they are
	// synthesised. This design allows the caller to pipe streaming text
	// directly into synthesis without waiting for the full utterance to be
	// available.
	//
	// The returned audio channel is closed by the implementation when all
	// text has been synthesised (the last chunk has IsFinal set) or when ctx
	// is cancelled. The caller must drain the audio channel to avoid
	// blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// encountered during synthesis are signalled by closing the audio
	// channel early; callers should check ctx.Err() to distinguish
	// cancellation from provider errors.
	SynthesizeStream(ctx context.Context, text <-chan string, opts SynthesizeOptions) (<-chan payload.TTSAudio, error)

	// ListVoices returns all voice profiles available from this provider.
	// The list reflects the provider's current catalogue and may change
	// between calls if the underlying service adds or removes voices.
	//
	// Returns an error if the provider cannot be reached or if ctx is
	// cancelled before the list is retrieved.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
