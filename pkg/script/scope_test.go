package script

import (
	"testing"

	"github.com/budecosystem/waav-gateway/pkg/payload"
)

func TestBuildScopeFlattensJSONPayload(t *testing.T) {
	p := payload.JSON{Value: map[string]any{
		"greeting": "hi",
		"count":    float64(3),
		"nested":   map[string]any{"skip": "me"},
	}}

	scope, err := BuildScope("stream-1", "key", "key-id", map[string]string{"region": "us"}, p)
	if err != nil {
		t.Fatalf("BuildScope() error: %v", err)
	}

	if scope["stream_id"] != "stream-1" {
		t.Errorf("stream_id = %v, want stream-1", scope["stream_id"])
	}
	if scope["api_key"] != "key" || scope["api_key_id"] != "key-id" {
		t.Errorf("api key fields = %v / %v", scope["api_key"], scope["api_key_id"])
	}
	if scope["region"] != "us" {
		t.Errorf("metadata region = %v, want us", scope["region"])
	}
	if scope["data_greeting"] != "hi" {
		t.Errorf("data_greeting = %v, want hi", scope["data_greeting"])
	}
	if scope["data_count"] != float64(3) {
		t.Errorf("data_count = %v, want 3", scope["data_count"])
	}
	if _, present := scope["data_nested"]; present {
		t.Error("data_nested should not be flattened: only top-level scalars are projected")
	}
}

func TestBuildScopeRaisesSTTFields(t *testing.T) {
	p := payload.STTResult{
		Transcript:    "turn it up",
		IsFinal:       true,
		IsSpeechFinal: false,
		Confidence:    0.91,
	}

	scope, err := BuildScope("stream-1", "", "", nil, p)
	if err != nil {
		t.Fatalf("BuildScope() error: %v", err)
	}
	if scope["transcript"] != "turn it up" {
		t.Errorf("transcript = %v, want 'turn it up'", scope["transcript"])
	}
	if scope["is_final"] != true {
		t.Errorf("is_final = %v, want true", scope["is_final"])
	}
	if scope["confidence"] != 0.91 {
		t.Errorf("confidence = %v, want 0.91", scope["confidence"])
	}
}

func TestBuildScopeOmitsBlankAPIKey(t *testing.T) {
	scope, err := BuildScope("stream-1", "", "", nil, payload.Empty{})
	if err != nil {
		t.Fatalf("BuildScope() error: %v", err)
	}
	if _, present := scope["api_key"]; present {
		t.Error("api_key should be omitted when blank")
	}
}
