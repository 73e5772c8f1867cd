// Package payload defines the tagged-union value that flows along every edge
// of a compiled DAG.
//
// A [Payload] is one of eight variants: [Audio], [Text], [JSON], [Binary],
// [STTResult], [TTSAudio], [Empty], or [Multiple]. All variants are cheap to
// copy — byte-bearing variants share their underlying backing array rather
// than duplicating it, which is safe because a payload's bytes are never
// mutated once placed on an edge (see the DAG invariants). [Empty] means
// "this edge did not fire"; [Multiple] represents fan-in from a join or
// fan-out to several matching successors.
package payload

import "fmt"

// Kind discriminates the variant held by a [Payload] value.
type Kind int

const (
	KindEmpty Kind = iota
	KindAudio
	KindText
	KindJSON
	KindBinary
	KindSTTResult
	KindTTSAudio
	KindMultiple
)

// String returns the wire-friendly name of the kind, used in error messages
// and log fields.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	case KindSTTResult:
		return "stt_result"
	case KindTTSAudio:
		return "tts_audio"
	case KindMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// Payload is the value carried on a DAG edge. Implementations are the eight
// variants in this package; the set is closed — node and edge code should
// switch on [Payload.Kind] rather than type-asserting against unknown
// implementations.
type Payload interface {
	// Kind reports which variant this value holds.
	Kind() Kind

	// Clone returns a shallow copy safe to hand to a second consumer (e.g. a
	// split fan-out). Byte slices and nested values are shared, not
	// duplicated; this is sound only because payload bytes are never mutated
	// in place after being placed on an edge.
	Clone() Payload

	// IsEmpty reports whether this value represents "no data" for the
	// purposes of gather_inputs: always for Empty, and for the other
	// variants when they carry no content (empty data, text or transcript,
	// a nil JSON value, or a Multiple with no items).
	IsEmpty() bool
}

// Audio carries raw PCM audio bytes. SampleRate is implicit-by-convention
// when zero: callers should assume 16kHz mono PCM16 unless SampleRate is set
// explicitly, per the context in which the payload travels.
type Audio struct {
	Data       []byte
	SampleRate int
	Channels   int
}

func (Audio) Kind() Kind      { return KindAudio }
func (a Audio) Clone() Payload { return a }
func (a Audio) IsEmpty() bool  { return len(a.Data) == 0 }

// Text carries UTF-8 text.
type Text struct {
	Value string
}

func (Text) Kind() Kind       { return KindText }
func (t Text) Clone() Payload { return t }
func (t Text) IsEmpty() bool  { return t.Value == "" }

// JSON carries an arbitrary decoded JSON tree: map[string]any, []any, string,
// float64, bool, or nil, as produced by encoding/json.Unmarshal into `any`.
type JSON struct {
	Value any
}

func (JSON) Kind() Kind       { return KindJSON }
func (j JSON) Clone() Payload { return j }
func (j JSON) IsEmpty() bool  { return j.Value == nil }

// Binary carries an opaque byte blob with no implied encoding.
type Binary struct {
	Data []byte
}

func (Binary) Kind() Kind      { return KindBinary }
func (b Binary) Clone() Payload { return b }
func (b Binary) IsEmpty() bool  { return len(b.Data) == 0 }

// Word holds per-word recognition detail, when the STT provider supplies it.
type Word struct {
	Text       string
	StartMs    int64
	EndMs      int64
	Confidence float64
}

// STTResult is the output of a speech-to-text provider node.
type STTResult struct {
	Transcript     string
	IsFinal        bool
	IsSpeechFinal  bool
	Confidence     float64
	Language       string
	Words          []Word
	Metadata       map[string]string
	SpeechDetected bool
}

func (STTResult) Kind() Kind { return KindSTTResult }
func (s STTResult) Clone() Payload {
	cp := s
	if s.Words != nil {
		cp.Words = append([]Word(nil), s.Words...)
	}
	if s.Metadata != nil {
		cp.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
func (s STTResult) IsEmpty() bool { return s.Transcript == "" }

// TTSAudio is the output of a text-to-speech or realtime provider node.
type TTSAudio struct {
	Data       []byte
	SampleRate int
	Format     string
	DurationMs int64
	IsFinal    bool
}

func (TTSAudio) Kind() Kind      { return KindTTSAudio }
func (t TTSAudio) Clone() Payload { return t }
func (t TTSAudio) IsEmpty() bool  { return len(t.Data) == 0 }

// Empty means "this edge did not fire". It is the zero result of gathering
// inputs when no predecessor produced a value.
type Empty struct{}

func (Empty) Kind() Kind       { return KindEmpty }
func (e Empty) Clone() Payload { return e }
func (e Empty) IsEmpty() bool  { return true }

// Multiple represents fan-in (a join gathering several predecessor outputs)
// or fan-out (several edges matching from one node). Order is significant
// for strategies that rely on source order (see the join node's All strategy).
type Multiple struct {
	Items []Payload
}

func (Multiple) Kind() Kind { return KindMultiple }
func (m Multiple) Clone() Payload {
	items := make([]Payload, len(m.Items))
	for i, it := range m.Items {
		items[i] = it.Clone()
	}
	return Multiple{Items: items}
}
func (m Multiple) IsEmpty() bool { return len(m.Items) == 0 }

// Wrap builds the effective payload from a slice of passing edge values,
// following the gather_inputs rule: zero values produce Empty, one value
// passes through unchanged, several are wrapped as Multiple.
func Wrap(values []Payload) Payload {
	switch len(values) {
	case 0:
		return Empty{}
	case 1:
		return values[0]
	default:
		return Multiple{Items: values}
	}
}

// TextOf returns the variant's best-effort textual content: Text.Value,
// STTResult.Transcript, or the "text"/"content"/"message" field of a JSON
// object, in that order. ok is false if no textual content was found.
func TextOf(p Payload) (string, bool) {
	switch v := p.(type) {
	case Text:
		return v.Value, v.Value != ""
	case STTResult:
		return v.Transcript, v.Transcript != ""
	case JSON:
		if obj, ok := v.Value.(map[string]any); ok {
			for _, key := range []string{"text", "content", "message"} {
				if s, ok := obj[key].(string); ok && s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

// Describe returns a short human-readable summary of p, suitable for log
// fields and error messages. It never includes payload bytes.
func Describe(p Payload) string {
	switch v := p.(type) {
	case Audio:
		return fmt.Sprintf("audio(%d bytes @ %dHz)", len(v.Data), v.SampleRate)
	case Text:
		return fmt.Sprintf("text(%d runes)", len([]rune(v.Value)))
	case JSON:
		return "json"
	case Binary:
		return fmt.Sprintf("binary(%d bytes)", len(v.Data))
	case STTResult:
		return fmt.Sprintf("stt_result(final=%v, speech=%v)", v.IsFinal, v.SpeechDetected)
	case TTSAudio:
		return fmt.Sprintf("tts_audio(%d bytes @ %dHz)", len(v.Data), v.SampleRate)
	case Multiple:
		return fmt.Sprintf("multiple(%d)", len(v.Items))
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}
