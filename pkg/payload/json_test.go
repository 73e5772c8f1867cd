package payload

import "testing"

func TestToJSON(t *testing.T) {
	v, err := ToJSON(Text{Value: "hi"})
	if err != nil || v != "hi" {
		t.Errorf("ToJSON(Text) = (%v, %v), want (hi, nil)", v, err)
	}

	v, err = ToJSON(Multiple{Items: []Payload{Text{Value: "a"}, Text{Value: "b"}}})
	if err != nil {
		t.Fatalf("ToJSON(Multiple) error: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		t.Errorf("ToJSON(Multiple) = %v, want 2-element slice", v)
	}

	v, err = ToJSON(Empty{})
	if err != nil || v != nil {
		t.Errorf("ToJSON(Empty) = (%v, %v), want (nil, nil)", v, err)
	}
}

func TestFromJSONBytesRoundTrip(t *testing.T) {
	p, err := FromJSONBytes([]byte(`{"a":1,"b":"two"}`))
	if err != nil {
		t.Fatalf("FromJSONBytes error: %v", err)
	}
	j, ok := p.(JSON)
	if !ok {
		t.Fatalf("FromJSONBytes kind = %T, want JSON", p)
	}
	obj, ok := j.Value.(map[string]any)
	if !ok || obj["b"] != "two" {
		t.Errorf("FromJSONBytes decoded = %v", j.Value)
	}

	if _, err := FromJSONBytes([]byte(`not json`)); err == nil {
		t.Error("FromJSONBytes(invalid) expected error, got nil")
	}
}
