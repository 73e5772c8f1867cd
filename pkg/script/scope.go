package script

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// raisedSTTFields are the STT fields promoted to scope roots (rather than
// left under their data_ prefix) whenever the evaluated payload is an
// [payload.STTResult], per the evaluation contract.
var raisedSTTFields = []string{"transcript", "is_final", "is_speech_final", "confidence"}

// BuildScope assembles the variable scope injected into a single
// expression/condition/transform evaluation: the stream id, api key material
// (when present), every metadata entry, and a flattened projection of the
// payload. Top-level string/bool/number fields of the payload's JSON view are
// pushed as data_<key>; common STT fields are additionally raised to scope
// roots when the payload carries them.
func BuildScope(streamID, apiKey, apiKeyID string, metadata map[string]string, p payload.Payload) (Scope, error) {
	scope := make(Scope, len(metadata)+8)
	scope["stream_id"] = streamID
	if apiKey != "" {
		scope["api_key"] = apiKey
	}
	if apiKeyID != "" {
		scope["api_key_id"] = apiKeyID
	}
	for k, v := range metadata {
		scope[k] = v
	}

	data, err := payload.ToJSON(p)
	if err != nil {
		return nil, err
	}
	raw, err := marshalForFlatten(data)
	if err != nil {
		return nil, err
	}

	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			scope["data_"+key.String()] = value.Value()
		}
		return true
	})

	if stt, ok := p.(payload.STTResult); ok {
		for _, field := range raisedSTTFields {
			if v, present := scope["data_"+field]; present {
				scope[field] = v
			}
		}
		// STTResult's boolean fields are not always surfaced as JSON scalars
		// by ToJSON's map construction quirks, so raise them directly too.
		scope["transcript"] = stt.Transcript
		scope["is_final"] = stt.IsFinal
		scope["is_speech_final"] = stt.IsSpeechFinal
		scope["confidence"] = stt.Confidence
	}

	return scope, nil
}

func marshalForFlatten(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}
