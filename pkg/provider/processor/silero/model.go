package silero

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// sileroSampleRate is the only sample rate the published Silero VAD ONNX
// graph accepts.
const sileroSampleRate = 16000

// sileroFrameSamples is the window size (in samples) the v4/v5 Silero graph
// expects per inference call at 16kHz: 512 samples == 32ms.
const sileroFrameSamples = 512

// stateShape is the shape of Silero's recurrent state tensor: [2, 1, 128].
var stateShape = ort.NewShape(2, 1, 128)

// model wraps a single loaded Silero VAD ONNX session. It is not safe for
// concurrent use by multiple goroutines — each processor session owns its
// own model instance so that the recurrent state tensor isn't shared.
type model struct {
	session *ort.AdvancedSession

	input    *ort.Tensor[float32]
	srInput  *ort.Tensor[int64]
	state    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	outState *ort.Tensor[float32]
}

// sharedLibOnce guards onnxruntime_go's process-global environment and
// shared-library path setup, which must happen exactly once per process.
var sharedLibOnce sync.Once
var sharedLibErr error

// initEnvironment wires the ONNX Runtime shared library and initializes the
// runtime environment. sharedLibPath points at the runtime's shared object
// (e.g. libonnxruntime.so); the VAD graph itself is loaded per-model below.
func initEnvironment(sharedLibPath string) error {
	sharedLibOnce.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		sharedLibErr = ort.InitializeEnvironment()
	})
	return sharedLibErr
}

// newModel loads the Silero VAD graph from modelPath and allocates its
// input/output/state tensors.
func newModel(modelPath string) (*model, error) {
	inputShape := ort.NewShape(1, sileroFrameSamples)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("silero: allocate input tensor: %w", err)
	}

	sr, err := ort.NewTensor(ort.NewShape(1), []int64{sileroSampleRate})
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("silero: allocate sample-rate tensor: %w", err)
	}

	state, err := ort.NewEmptyTensor[float32](stateShape)
	if err != nil {
		input.Destroy()
		sr.Destroy()
		return nil, fmt.Errorf("silero: allocate state tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		sr.Destroy()
		state.Destroy()
		return nil, fmt.Errorf("silero: allocate output tensor: %w", err)
	}

	outState, err := ort.NewEmptyTensor[float32](stateShape)
	if err != nil {
		input.Destroy()
		sr.Destroy()
		state.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("silero: allocate output-state tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "sr", "state"},
		[]string{"output", "stateN"},
		[]ort.ArbitraryTensor{input, sr, state},
		[]ort.ArbitraryTensor{output, outState},
		nil,
	)
	if err != nil {
		input.Destroy()
		sr.Destroy()
		state.Destroy()
		output.Destroy()
		outState.Destroy()
		return nil, fmt.Errorf("silero: load model %q: %w", modelPath, err)
	}

	return &model{
		session:  session,
		input:    input,
		srInput:  sr,
		state:    state,
		output:   output,
		outState: outState,
	}, nil
}

// predict runs one inference step over a frame of sileroFrameSamples
// float32 PCM samples in [-1.0, 1.0] and returns the raw speech
// probability. The recurrent state tensor is fed back for the next call.
func (m *model) predict(frame []float32) (float32, error) {
	if len(frame) != sileroFrameSamples {
		return 0, fmt.Errorf("silero: expected %d samples, got %d", sileroFrameSamples, len(frame))
	}
	copy(m.input.GetData(), frame)

	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("silero: inference: %w", err)
	}

	prob := m.output.GetData()[0]
	copy(m.state.GetData(), m.outState.GetData())
	return prob, nil
}

// reset clears the recurrent state tensor, discarding memory of any prior
// audio segment.
func (m *model) reset() {
	data := m.state.GetData()
	for i := range data {
		data[i] = 0
	}
}

// close releases the session and all tensors. Safe to call once.
func (m *model) close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.session != nil {
		record(m.session.Destroy())
	}
	record(m.input.Destroy())
	record(m.srInput.Destroy())
	record(m.state.Destroy())
	record(m.output.Destroy())
	record(m.outState.Destroy())
	return firstErr
}
