package stt

import (
	"testing"
)

func TestParseWhisperJSON(t *testing.T) {
	raw := []byte(`{
		"transcription": [
			{"text": " Hello Chronos.", "offsets": {"from": 0, "to": 2100}},
			{"text": " Send the survey drone.", "offsets": {"from": 2100, "to": 5400}},
			{"text": "   ", "offsets": {"from": 5400, "to": 5600}}
		]
	}`)

	res, err := parseWhisperJSON(raw)
	if err != nil {
		t.Fatalf("parseWhisperJSON() error = %v", err)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2 (blank segment dropped)", len(res.Segments))
	}
	if res.Segments[0].Start != 0 || res.Segments[0].End != 2.1 {
		t.Fatalf("first segment offsets: %+v", res.Segments[0])
	}
	if res.Segments[1].Text != "Send the survey drone." {
		t.Fatalf("second segment text = %q", res.Segments[1].Text)
	}
	if res.FullText != "Hello Chronos. Send the survey drone." {
		t.Fatalf("FullText = %q", res.FullText)
	}
}

func TestParseWhisperJSONRejectsGarbage(t *testing.T) {
	if _, err := parseWhisperJSON([]byte("not json")); err == nil {
		t.Fatalf("parseWhisperJSON() should reject malformed output")
	}
}

func TestNewWhisperCLIEngineMissingModel(t *testing.T) {
	_, err := NewWhisperCLIEngine(WhisperCLIConfig{CLI: "true", ModelPath: "/does/not/exist.bin"})
	if err == nil {
		t.Fatalf("NewWhisperCLIEngine() should fail for a missing model")
	}
}
