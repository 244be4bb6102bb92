package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/avarra-systems/chronovoice/internal/media"
)

// WhisperCLIConfig configures the whisper.cpp command line engine.
type WhisperCLIConfig struct {
	CLI       string
	ModelPath string
	Language  string
}

// WhisperCLIEngine shells out to whisper-cli and parses its JSON output.
type WhisperCLIEngine struct {
	cfg WhisperCLIConfig
}

// NewWhisperCLIEngine validates the binary and model up front; a missing
// hard dependency fails at startup, not at first use.
func NewWhisperCLIEngine(cfg WhisperCLIConfig) (*WhisperCLIEngine, error) {
	if strings.TrimSpace(cfg.CLI) == "" {
		return nil, fmt.Errorf("whisper CLI path is required")
	}
	if _, err := exec.LookPath(cfg.CLI); err != nil {
		return nil, fmt.Errorf("whisper CLI not found: %w", err)
	}
	modelPath := strings.TrimSpace(cfg.ModelPath)
	if modelPath == "" {
		return nil, fmt.Errorf("WHISPER_MODEL_PATH is required")
	}
	if !filepath.IsAbs(modelPath) {
		if wd, err := os.Getwd(); err == nil {
			modelPath = filepath.Join(wd, modelPath)
		}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper model not found: %s", modelPath)
	}
	cfg.ModelPath = modelPath
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "en"
	}
	return &WhisperCLIEngine{cfg: cfg}, nil
}

type whisperOutput struct {
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}

// Transcribe runs whisper-cli over audioPath. The container is probed first
// so a half-written recording surfaces as a retryable media error instead
// of garbage output.
func (e *WhisperCLIEngine) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if _, err := media.ProbeWAV(audioPath); err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", audioPath, err)
	}

	outBase := filepath.Join(os.TempDir(), filepath.Base(audioPath))
	cmd := exec.CommandContext(ctx, e.cfg.CLI,
		"-m", e.cfg.ModelPath,
		"-l", e.cfg.Language,
		"-f", audioPath,
		"-oj",
		"-of", outBase,
		"-np",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("whisper-cli %s: %w: %s", audioPath, err, strings.TrimSpace(string(out)))
	}

	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWhisperJSON(raw)
}

func parseWhisperJSON(raw []byte) (Result, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("parse whisper output: %w", err)
	}

	var res Result
	var full strings.Builder
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		res.Segments = append(res.Segments, Segment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
		if full.Len() > 0 {
			full.WriteByte(' ')
		}
		full.WriteString(text)
	}
	res.FullText = full.String()
	return res, nil
}
