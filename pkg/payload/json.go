package payload

import "encoding/json"

// ToJSON converts p into a plain JSON-marshalable value: map[string]any for
// structured variants, a bare string/number/bool for scalar variants. It is
// used to build HTTP/gRPC/WebSocket request bodies and expression-sandbox
// scope values. Byte-bearing variants (Audio, Binary, TTSAudio) are encoded
// as base64 strings under a "data" key so they survive a JSON round trip.
func ToJSON(p Payload) (any, error) {
	switch v := p.(type) {
	case Text:
		return v.Value, nil
	case JSON:
		return v.Value, nil
	case Audio:
		return map[string]any{
			"data":        v.Data,
			"sample_rate": v.SampleRate,
			"channels":    v.Channels,
		}, nil
	case Binary:
		return map[string]any{"data": v.Data}, nil
	case STTResult:
		return map[string]any{
			"transcript":       v.Transcript,
			"is_final":         v.IsFinal,
			"is_speech_final":  v.IsSpeechFinal,
			"confidence":       v.Confidence,
			"language":         v.Language,
			"speech_detected":  v.SpeechDetected,
			"metadata":         v.Metadata,
		}, nil
	case TTSAudio:
		return map[string]any{
			"data":        v.Data,
			"sample_rate": v.SampleRate,
			"format":      v.Format,
			"duration_ms": v.DurationMs,
			"is_final":    v.IsFinal,
		}, nil
	case Multiple:
		out := make([]any, len(v.Items))
		for i, it := range v.Items {
			j, err := ToJSON(it)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case Empty:
		return nil, nil
	default:
		return nil, nil
	}
}

// MarshalJSON encodes p's JSON projection as bytes, for use as an HTTP/gRPC
// request body.
func MarshalJSON(p Payload) ([]byte, error) {
	v, err := ToJSON(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// FromJSONBytes parses data as JSON and wraps the result as a JSON payload.
// Returns an error if data is not valid JSON.
func FromJSONBytes(data []byte) (Payload, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return JSON{Value: v}, nil
}
