package tts

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/avarra-systems/chronovoice/internal/media"
)

// ExecConfig configures the command line synthesizer.
type ExecConfig struct {
	// Command is a speech synthesizer invoked as: <Command> -w <wav> <text>.
	// espeak-ng and compatible tools follow this convention.
	Command string
	// FFmpegBin transcodes the synthesized clip to 8kHz mono GSM.
	FFmpegBin string
	// SoundsDir is the telephony server's sounds directory; the finished
	// clip is installed there as output.gsm so Playback(output) finds it.
	SoundsDir string
	// WorkDir holds intermediate files. Defaults to the OS temp dir.
	WorkDir string
}

// ExecEngine synthesizes speech with an external command and transcodes
// the result for conference playback.
type ExecEngine struct {
	cfg ExecConfig
}

// NewExecEngine verifies both external tools before the first call; a
// missing synthesizer or ffmpeg is a startup failure.
func NewExecEngine(ctx context.Context, cfg ExecConfig) (*ExecEngine, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("TTS_COMMAND is required")
	}
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, fmt.Errorf("tts command not found: %w", err)
	}
	if err := media.CheckFFmpeg(ctx, cfg.FFmpegBin); err != nil {
		return nil, err
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &ExecEngine{cfg: cfg}, nil
}

// Synthesize renders text to a GSM clip in the sounds directory and
// returns the installed path.
func (e *ExecEngine) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty synthesis text")
	}

	base := filepath.Join(e.cfg.WorkDir, uuid.NewString())
	wavPath := base + ".wav"
	gsmPath := base + ".gsm"
	defer os.Remove(wavPath)
	defer os.Remove(gsmPath)

	cmd := exec.CommandContext(ctx, e.cfg.Command, "-w", wavPath, text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("synthesize: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if err := media.TranscodeToGSM(ctx, e.cfg.FFmpegBin, wavPath, gsmPath); err != nil {
		return "", err
	}

	installed := filepath.Join(e.cfg.SoundsDir, "output.gsm")
	if err := copyFile(gsmPath, installed); err != nil {
		return "", fmt.Errorf("install clip: %w", err)
	}
	return installed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
