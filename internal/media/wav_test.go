package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProbeWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	// One second of silence at 8kHz mono PCM16.
	pcm := make([]byte, 16000)
	if err := WriteWAVPCM16LEFile(path, pcm, 8000); err != nil {
		t.Fatalf("WriteWAVPCM16LEFile() error = %v", err)
	}

	dur, err := ProbeWAV(path)
	if err != nil {
		t.Fatalf("ProbeWAV() error = %v", err)
	}
	if dur < 0.99 || dur > 1.01 {
		t.Fatalf("duration = %v, want ~1s", dur)
	}
}

func TestProbeWAVRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := ProbeWAV(path); !errors.Is(err, ErrBadMedia) {
		t.Fatalf("ProbeWAV() error = %v, want ErrBadMedia", err)
	}
}

func TestProbeWAVRejectsNonWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-audio.wav")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := ProbeWAV(path); !errors.Is(err, ErrBadMedia) {
		t.Fatalf("ProbeWAV() error = %v, want ErrBadMedia", err)
	}
}

func TestProbeWAVMissingFile(t *testing.T) {
	if _, err := ProbeWAV(filepath.Join(t.TempDir(), "absent.wav")); err == nil {
		t.Fatalf("ProbeWAV() should fail for a missing file")
	} else if errors.Is(err, ErrBadMedia) {
		t.Fatalf("missing file should not be classified as bad media: %v", err)
	}
}
