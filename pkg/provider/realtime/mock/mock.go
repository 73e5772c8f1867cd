// Package mock provides test doubles for the realtime package interfaces.
//
// Use Provider to verify Connect calls and feed controlled realtime sessions.
// Use Session to drive the audio/transcript/speech-event streams and inspect
// which methods were invoked by the node under test.
//
// Example:
//
//	sess := &mock.Session{
//	    AudioCh:       make(chan []byte, 8),
//	    TranscriptsCh: make(chan payload.STTResult, 4),
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/budecosystem/waav-gateway/pkg/payload"
	"github.com/budecosystem/waav-gateway/pkg/provider/realtime"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg realtime.SessionConfig
}

// Provider is a mock implementation of realtime.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a new default Session with buffered channels.
	Session realtime.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg realtime.SessionConfig) (realtime.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{
		AudioCh:       make(chan []byte, 64),
		TranscriptsCh: make(chan payload.STTResult, 16),
		SpeechCh:      make(chan realtime.SpeechEvent, 8),
		DoneCh:        make(chan struct{}),
	}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements realtime.Provider at compile time.
var _ realtime.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of realtime.SessionHandle.
// Callers should pre-populate AudioCh, TranscriptsCh, SpeechCh, and DoneCh,
// then close them to signal end-of-session.
type Session struct {
	mu sync.Mutex

	// AudioCh is the channel returned by AudioOutput(). Callers own this channel.
	AudioCh chan []byte

	// TranscriptsCh is the channel returned by Transcripts(). Callers own this
	// channel.
	TranscriptsCh chan payload.STTResult

	// SpeechCh is the channel returned by SpeechEvents(). Callers own this channel.
	SpeechCh chan realtime.SpeechEvent

	// DoneCh is the channel returned by Done(). Callers close this to signal
	// turn completion.
	DoneCh chan struct{}

	// --- Configurable errors ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CommitAudioBufferErr, if non-nil, is returned by every CommitAudioBuffer call.
	CommitAudioBufferErr error

	// SendTextErr, if non-nil, is returned by every SendText call.
	SendTextErr error

	// CreateResponseErr, if non-nil, is returned by every CreateResponse call.
	CreateResponseErr error

	// InterruptErr, if non-nil, is returned by every Interrupt call.
	InterruptErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ErrVal is returned by Err.
	ErrVal error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SendTextCalls records every call to SendText in order.
	SendTextCalls []string

	// CommitAudioBufferCallCount is the number of times CommitAudioBuffer was called.
	CommitAudioBufferCallCount int

	// CreateResponseCallCount is the number of times CreateResponse was called.
	CreateResponseCallCount int

	// InterruptCallCount is the number of times Interrupt was called.
	InterruptCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// CommitAudioBuffer records the call and returns CommitAudioBufferErr.
func (s *Session) CommitAudioBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CommitAudioBufferCallCount++
	return s.CommitAudioBufferErr
}

// SendText records the call and returns SendTextErr.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendTextCalls = append(s.SendTextCalls, text)
	return s.SendTextErr
}

// CreateResponse records the call and returns CreateResponseErr.
func (s *Session) CreateResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateResponseCallCount++
	return s.CreateResponseErr
}

// AudioOutput returns AudioCh.
func (s *Session) AudioOutput() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioCh
}

// Transcripts returns TranscriptsCh.
func (s *Session) Transcripts() <-chan payload.STTResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TranscriptsCh
}

// SpeechEvents returns SpeechCh.
func (s *Session) SpeechEvents() <-chan realtime.SpeechEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SpeechCh
}

// Done returns DoneCh.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DoneCh
}

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// Interrupt records the call and returns InterruptErr.
func (s *Session) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InterruptCallCount++
	return s.InterruptErr
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SendTextCalls = nil
	s.CommitAudioBufferCallCount = 0
	s.CreateResponseCallCount = 0
	s.InterruptCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Session implements realtime.SessionHandle at compile time.
var _ realtime.SessionHandle = (*Session)(nil)
