package media

import (
	"context"
	"fmt"
	"os/exec"
)

// CheckFFmpeg verifies the configured ffmpeg binary is runnable. Transcoding
// to the telephony GSM format is impossible without it, so callers fail fast
// at startup.
func CheckFFmpeg(ctx context.Context, bin string) error {
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not available (%s): %w", bin, err)
	}
	return nil
}

// TranscodeToGSM converts an audio file to 8kHz mono GSM, the format the
// telephony server expects for playback sounds.
func TranscodeToGSM(ctx context.Context, bin, inPath, outPath string) error {
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-i", inPath,
		"-ar", "8000",
		"-ac", "1",
		"-c:a", "libgsm",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("transcode %s: %w: %s", inPath, err, string(out))
	}
	return nil
}
