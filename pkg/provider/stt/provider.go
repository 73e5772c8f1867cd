// Package stt defines the Provider interface for Speech-to-Text backends
// consumed by the DAG's stt node (see spec.md §4.4).
//
// An STT provider wraps a real-time transcription service and exposes a
// uniform streaming interface. The central abstraction is SessionHandle: once
// opened, a session accepts raw PCM audio frames and emits two streams of
// [payload.STTResult] values — low-latency partials for responsiveness and
// authoritative finals for downstream nodes.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// StreamConfig describes the audio format and recognition hints for a new STT
// session. All fields must be compatible with what the underlying provider
// supports; see each provider's documentation for valid ranges.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Common values: 16000, 48000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// STT providers). Implementors may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect, if supported.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for uncommon or domain-specific words.
	Keywords []string
}

// SessionHandle represents an open STT streaming session. It is an interface
// so that test code can provide mock implementations without requiring a
// live provider connection.
//
// Callers must call Close when the session is no longer needed. Failing to
// do so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel that emits low-latency interim
	// results as the provider makes preliminary guesses. The channel is
	// closed when the session ends.
	Partials() <-chan payload.STTResult

	// Finals returns a read-only channel that emits authoritative results
	// once the provider has committed to a recognition. The channel is
	// closed when the session ends.
	Finals() <-chan payload.STTResult

	// Close terminates the session, flushes any pending audio, and releases
	// all associated resources. After Close returns, the Partials and
	// Finals channels will be closed. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously (e.g., one per concurrent caller session).
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format and recognition configuration. The returned SessionHandle
	// is ready to accept audio immediately.
	//
	// Returns an error if the provider cannot establish the session (e.g.,
	// authentication failure, unsupported configuration, or ctx already
	// cancelled). The caller owns the SessionHandle and must call Close when
	// done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
