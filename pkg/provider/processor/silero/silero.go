// Package silero is a built-in processor.Engine backed by the Silero VAD
// ONNX graph, run through github.com/yalue/onnxruntime_go.
//
// Detection combines three techniques, grounded on the reference Silero VAD
// detector this gateway's dataflow engine was originally modelled on:
//   - raw per-window speech probability from the ONNX graph's own recurrent
//     state (no external smoothing state is needed between windows other
//     than what the graph itself carries),
//   - an exponential moving average over the raw probability to damp
//     single-window noise spikes,
//   - a frame-count hysteresis boundary detector so that speech-start and
//     speech-end transitions only fire after MinSpeechFrames /
//     MinSilenceFrames consecutive frames agree, rather than on every
//     threshold crossing.
//
// The ONNX graph only accepts 16kHz mono audio in fixed 512-sample (32ms)
// windows. ProcessFrame accepts any FrameSizeMs configured by the caller and
// internally accumulates samples into a rolling buffer, running inference
// once a full window is available; callers that configure FrameSizeMs below
// 32ms will see EventSilence, carrying the last smoothed probability (zero
// before the first window), on frames that don't yet complete a window.
package silero

import (
	"fmt"
	"sync"

	"github.com/budecosystem/waav-gateway/pkg/provider/processor"
)

// Options configures the Engine at construction time.
type Options struct {
	// ModelPath is the filesystem path to the Silero VAD ONNX model
	// (silero_vad.onnx). Required.
	ModelPath string

	// SharedLibraryPath is the filesystem path to the ONNX Runtime shared
	// library (libonnxruntime.so / .dylib / .dll). Optional; when empty,
	// onnxruntime_go falls back to its platform default search path.
	SharedLibraryPath string
}

// Engine is a processor.Engine backed by the Silero VAD ONNX graph. Each
// session loads its own model instance so that recurrent state and
// smoothing history are never shared between concurrent streams.
type Engine struct {
	opts Options
}

// NewEngine initializes the ONNX Runtime environment (once per process) and
// returns an Engine ready to create sessions.
func NewEngine(opts Options) (*Engine, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("silero: ModelPath is required")
	}
	if err := initEnvironment(opts.SharedLibraryPath); err != nil {
		return nil, fmt.Errorf("silero: initialize onnxruntime environment: %w", err)
	}
	return &Engine{opts: opts}, nil
}

// NewSession loads a fresh model instance and returns a ready session.
func (e *Engine) NewSession(cfg processor.Config) (processor.SessionHandle, error) {
	if cfg.SampleRate != sileroSampleRate {
		return nil, fmt.Errorf("silero: sample rate %d unsupported, only %d is supported", cfg.SampleRate, sileroSampleRate)
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("silero: SpeechThreshold must be in (0, 1], got %f", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("silero: SilenceThreshold must be <= SpeechThreshold")
	}

	m, err := newModel(e.opts.ModelPath)
	if err != nil {
		return nil, err
	}

	minSpeechFrames := cfg.MinSpeechFrames
	if minSpeechFrames < 1 {
		minSpeechFrames = 1
	}
	minSilenceFrames := cfg.MinSilenceFrames
	if minSilenceFrames < 1 {
		minSilenceFrames = 1
	}

	return &session{
		model:            m,
		cfg:              cfg,
		smoothingFactor:  0.7,
		minSpeechFrames:  minSpeechFrames,
		minSilenceFrames: minSilenceFrames,
	}, nil
}

// Ensure Engine implements processor.Engine at compile time.
var _ processor.Engine = (*Engine)(nil)

// session is a single stream's Silero VAD state: the ONNX model instance,
// the EMA-smoothed probability, the hysteresis boundary counters, and a
// rolling buffer of not-yet-inferred PCM samples.
type session struct {
	mu sync.Mutex

	model *model
	cfg   processor.Config

	closed bool

	// pending holds PCM16 samples, converted to float32, not yet consumed
	// by a full sileroFrameSamples-sized inference window.
	pending []float32

	smoothedProbability float32
	smoothingFactor     float32

	inSpeech         bool
	speechFrames     int
	silenceFrames    int
	minSpeechFrames  int
	minSilenceFrames int
}

// ProcessFrame converts the incoming PCM16LE frame to float32 samples,
// appends it to the pending buffer, and runs inference on every complete
// 512-sample window contained in the buffer. The Event returned reflects
// the boundary state after the LAST window consumed from this call; if no
// window completed, EventSilence is returned with the last smoothed
// probability, whatever the current boundary state.
func (s *session) ProcessFrame(frame []byte) (processor.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return processor.Event{}, fmt.Errorf("silero: session closed")
	}
	if len(frame)%2 != 0 {
		return processor.Event{}, fmt.Errorf("silero: frame has odd byte length %d, PCM16 requires 2 bytes per sample", len(frame))
	}

	s.pending = append(s.pending, pcm16ToFloat32(frame)...)

	evt := processor.Event{Type: processor.EventSilence, Probability: float64(s.smoothedProbability)}
	for len(s.pending) >= sileroFrameSamples {
		window := s.pending[:sileroFrameSamples]
		s.pending = s.pending[sileroFrameSamples:]

		raw, err := s.model.predict(window)
		if err != nil {
			return processor.Event{}, err
		}

		s.smoothedProbability = s.smoothingFactor*s.smoothedProbability + (1-s.smoothingFactor)*raw
		evt = s.classify(float64(s.smoothedProbability))
	}

	return evt, nil
}

// classify applies the speech/silence threshold and hysteresis boundary
// detection, mirroring the reference detector's state machine.
func (s *session) classify(probability float64) processor.Event {
	isSpeechFrame := probability >= s.cfg.SpeechThreshold || (s.inSpeech && probability >= s.cfg.SilenceThreshold)

	if isSpeechFrame {
		s.speechFrames++
		s.silenceFrames = 0
	} else {
		s.silenceFrames++
		s.speechFrames = 0
	}

	switch {
	case !s.inSpeech && isSpeechFrame && s.speechFrames >= s.minSpeechFrames:
		s.inSpeech = true
		return processor.Event{Type: processor.EventSpeechStart, Probability: probability}
	case s.inSpeech && !isSpeechFrame && s.silenceFrames >= s.minSilenceFrames:
		s.inSpeech = false
		return processor.Event{Type: processor.EventSpeechEnd, Probability: probability}
	case s.inSpeech:
		return processor.Event{Type: processor.EventSpeechContinue, Probability: probability}
	default:
		return processor.Event{Type: processor.EventSilence, Probability: probability}
	}
}

// Reset clears smoothing history, boundary counters, the pending sample
// buffer, and the model's recurrent state.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.smoothedProbability = 0
	s.inSpeech = false
	s.speechFrames = 0
	s.silenceFrames = 0
	if s.model != nil {
		s.model.reset()
	}
}

// Close releases the underlying ONNX session and tensors. Safe to call
// more than once.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.model.close()
}

// Ensure session implements processor.SessionHandle at compile time.
var _ processor.SessionHandle = (*session)(nil)

// pcm16ToFloat32 converts little-endian signed 16-bit PCM samples to
// float32 samples in [-1.0, 1.0], the format the Silero graph expects.
func pcm16ToFloat32(frame []byte) []float32 {
	out := make([]float32, len(frame)/2)
	for i := range out {
		v := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out
}
