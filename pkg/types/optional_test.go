package types

import (
	"encoding/json"
	"testing"
)

func TestOptionalUnmarshal(t *testing.T) {
	type payload struct {
		Picture Optional[string] `json:"profile_picture"`
	}

	var got payload
	if err := json.Unmarshal([]byte(`{"profile_picture": "https://cdn.example/a.png"}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !got.Picture.Set || got.Picture.Value == nil || *got.Picture.Value != "https://cdn.example/a.png" {
		t.Fatalf("expected set value, got %+v", got.Picture)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{"profile_picture": null}`), &got); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !got.Picture.Set || got.Picture.Value != nil {
		t.Fatalf("expected explicit null, got %+v", got.Picture)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{}`), &got); err != nil {
		t.Fatalf("unmarshal missing: %v", err)
	}
	if got.Picture.Set {
		t.Fatalf("expected omitted field to stay unset, got %+v", got.Picture)
	}

	if err := json.Unmarshal([]byte(`{"profile_picture": 12}`), &got); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}
