// Package processor defines the Engine interface for audio-processor
// backends consumed by the DAG's processor node (see SPEC_FULL.md's
// gap-fill on the processor node type).
//
// An audio processor wraps a frame-level analyser — most commonly a voice
// activity detector — and surfaces it as a stateful, per-stream session.
// Each session maintains its own internal state (smoothing history, speech
// boundary counters) so that multiple concurrent audio streams can be
// processed independently.
//
// Processing is synchronous by design: ProcessFrame returns immediately
// with a detection result, making it suitable for low-latency pipeline
// stages that gate STT input or drive realtime-session interruption.
//
// Implementations must be safe for concurrent use across different
// sessions. A single SessionHandle should not be shared across goroutines
// unless the implementation explicitly documents thread safety for that
// type.
package processor

// Config holds the parameters for a processor session. All numeric
// thresholds are expressed in the model's native scale; see each Engine's
// documentation for recommended starting values.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most
	// engines operate on fixed frame sizes (e.g., 10, 20, or 30 ms).
	// Whether ProcessFrame rejects a frame of another size depends on the
	// engine; the silero engine accepts any even-length PCM16 frame.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified
	// as speech. Range: [0.0, 1.0]. Higher values reduce false positives at
	// the cost of increased speech-start latency. Typical: 0.5.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame is classified
	// as silence and an active speech segment is considered ended. Range:
	// [0.0, 1.0]. Must be <= SpeechThreshold. Typical: 0.35.
	SilenceThreshold float64

	// MinSpeechFrames is the number of consecutive above-threshold frames
	// required before a speech-start transition is confirmed. Debounces
	// transient spikes.
	MinSpeechFrames int

	// MinSilenceFrames is the number of consecutive below-threshold frames
	// required before a speech-end transition is confirmed.
	MinSilenceFrames int
}

// EventType enumerates detection states for a processed frame.
type EventType int

const (
	// EventSpeechStart indicates speech has just begun (boundary transition).
	EventSpeechStart EventType = iota

	// EventSpeechContinue indicates ongoing speech.
	EventSpeechContinue

	// EventSpeechEnd indicates speech has just ended (boundary transition).
	EventSpeechEnd

	// EventSilence indicates no speech detected.
	EventSilence
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechContinue:
		return "speech_continue"
	case EventSpeechEnd:
		return "speech_end"
	case EventSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// Event represents a detection result for a single processed audio frame.
// The processor node writes Type.String() to context metadata under the
// "vad_event" key and returns both fields as a JSON payload.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Probability is the speech probability score (0.0-1.0).
	Probability float64
}

// SessionHandle represents an active processor session for a single audio
// stream. It is an interface so that test code can supply mock
// implementations without a live engine. Each session maintains its own
// detection state; Reset clears this state without closing the session.
//
// A SessionHandle should not be shared between goroutines unless the
// implementation explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. The frame must be raw little-endian PCM at the SampleRate and
	// FrameSizeMs configured when the session was created. Returns an error
	// if the engine rejects the frame (which checks apply depends on the
	// engine) or encounters an internal failure.
	//
	// This method is designed to be called synchronously in the audio
	// pipeline loop; it must not block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears all accumulated detection state (smoothing history,
	// boundary counters) without closing the session. Use this when the
	// audio stream is interrupted or restarted to avoid stale state from
	// the previous segment affecting subsequent frames.
	Reset()

	// Close releases all resources associated with the session. After
	// Close, ProcessFrame and Reset must return errors or be no-ops.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for processor sessions. It is the top-level
// interface implemented by each audio-processor backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new processor session with the given
	// configuration. The session is immediately ready to accept audio
	// frames.
	//
	// Returns an error if the configuration is invalid (e.g., unsupported
	// sample rate, frame size, or threshold out of range) or if the engine
	// cannot allocate resources for the session.
	NewSession(cfg Config) (SessionHandle, error)
}
