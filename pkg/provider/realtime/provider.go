// Package realtime defines the Provider interface for full-duplex
// speech-to-speech backends consumed by the DAG's realtime_provider node.
//
// A realtime provider wraps a voice AI service that accepts audio or text
// input and returns synthesised audio and/or text output in a single,
// stateful session — bypassing the separate STT -> transform -> TTS
// pipeline entirely. Examples include the Gemini Live API and the OpenAI
// Realtime API.
//
// The central abstraction is SessionHandle: a bidirectional, multiplexed
// channel that carries audio, transcripts, and speech events concurrently.
// Sessions are designed to be short-lived, one per node execution, but the
// underlying connection may be kept warm by the provider across calls.
//
// All implementations must be safe for concurrent use.
package realtime

import (
	"context"

	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// SessionConfig is the initial configuration for a new realtime session.
type SessionConfig struct {
	// Voice selects the voice profile the model uses for synthesised speech
	// output. Empty lets the provider use its default voice.
	Voice string

	// Instructions is the system-level prompt steering the model's behaviour
	// for the session.
	Instructions string

	// SampleRate is the audio sample rate in Hz expected for both input and
	// output PCM audio. Providers conventionally emit 24 kHz PCM16.
	SampleRate int
}

// SpeechEventType enumerates the kinds of speech activity events a realtime
// session can surface.
type SpeechEventType int

const (
	// SpeechStarted indicates the provider detected the start of user speech.
	SpeechStarted SpeechEventType = iota
	// SpeechStopped indicates the provider detected the end of user speech.
	SpeechStopped
)

// String returns a human-readable name for the event type.
func (t SpeechEventType) String() string {
	switch t {
	case SpeechStarted:
		return "speech_started"
	case SpeechStopped:
		return "speech_stopped"
	default:
		return "unknown"
	}
}

// SpeechEvent reports a speech-activity transition detected by the provider
// during a session, used to support interruption (barge-in) handling.
type SpeechEvent struct {
	Type SpeechEventType
}

// SessionHandle represents an open realtime session. It is an interface so
// that test code can supply mock implementations without a live provider
// connection.
//
// The session is on the hot path of the gateway's voice pipeline — every
// method must return quickly. Audio I/O is channel-based to avoid blocking
// the caller. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM audio chunk to the provider's input audio
	// buffer. The chunk must match the audio format negotiated when the
	// session was opened. Returns an error if the session is closed or the
	// provider cannot accept the chunk.
	SendAudio(chunk []byte) error

	// CommitAudioBuffer signals that no more audio will be appended for the
	// current input and the provider should begin processing what has been
	// buffered. Providers that auto-commit may treat this as a no-op.
	CommitAudioBuffer() error

	// SendText delivers a text input to the session in place of audio.
	SendText(text string) error

	// CreateResponse asks the provider to begin generating a response to the
	// input accumulated so far (via SendAudio/CommitAudioBuffer or SendText).
	CreateResponse() error

	// Transcripts returns a read-only channel that emits STT results as the
	// provider transcribes user speech. Results may arrive as interim
	// updates (IsFinal=false) followed by one final result. Closed when the
	// session ends.
	Transcripts() <-chan payload.STTResult

	// AudioOutput returns a read-only channel that emits raw PCM audio byte
	// slices as the model synthesises its spoken response. Closed when the
	// session ends or a mid-stream error occurs. Consumers must drain this
	// channel promptly to prevent backpressure from stalling the provider's
	// receive loop.
	AudioOutput() <-chan []byte

	// SpeechEvents returns a read-only channel that emits speech-activity
	// transitions detected by the provider. Closed when the session ends.
	SpeechEvents() <-chan SpeechEvent

	// Done returns a channel that is closed when the provider signals the
	// current response is complete.
	Done() <-chan struct{}

	// Err returns the error that caused the session to end prematurely, or
	// nil if it ended cleanly. Callers should check Err after Done closes.
	Err() error

	// Interrupt signals the provider to stop generating the current
	// response and discard any buffered audio. Returns an error if the
	// provider does not support interruption.
	Interrupt() error

	// Close terminates the session, releases all resources, and closes
	// Transcripts, AudioOutput, and SpeechEvents. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime (speech-to-speech) backend.
//
// Implementations must be safe for concurrent use. The gateway may open
// multiple concurrent sessions, for example one per active stream.
type Provider interface {
	// Connect establishes a new realtime session with the given
	// configuration. The returned SessionHandle is ready to accept audio or
	// text immediately.
	//
	// Returns an error if the session cannot be established (e.g.,
	// authentication failure, invalid voice, or ctx already cancelled). The
	// caller owns the SessionHandle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
