package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the conference bridge agent.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	AMIAddr     string
	AMIUsername string
	AMISecret   string
	AMITimeout  time.Duration

	AudioWatchDir      string
	TranscriptWatchDir string
	MonitorDir         string
	SoundsDir          string
	TranscriptDir      string

	Keyword       string
	FollowUpDelay time.Duration
	MaxRetries    int

	PlannerBaseURL   string
	PlannerNamespace string

	STTEngine       string
	WhisperCLI      string
	WhisperModel    string
	WhisperLanguage string

	TTSEngine  string
	TTSCommand string
	FFmpegBin  string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "chronovoice"),
		ShutdownTimeout:  15 * time.Second,

		AMIAddr:     envOrDefault("AMI_ADDR", "127.0.0.1:5038"),
		AMIUsername: envOrDefault("AMI_USERNAME", "admin"),
		AMISecret:   envFromKey("AMI_SECRET"),
		AMITimeout:  10 * time.Second,

		AudioWatchDir:      envOrDefault("AUDIO_WATCH_DIR", "/var/spool/asterisk/monitor"),
		TranscriptWatchDir: envOrDefault("TRANSCRIPT_WATCH_DIR", "/var/spool/asterisk/transcripts"),
		MonitorDir:         envOrDefault("MONITOR_DIR", "/var/spool/asterisk/monitor"),
		SoundsDir:          envOrDefault("SOUNDS_DIR", "/usr/share/asterisk/sounds/en"),
		TranscriptDir:      envFromKey("TRANSCRIPT_OUT_DIR"),

		Keyword:       envOrDefault("TRIGGER_KEYWORD", "chronos"),
		FollowUpDelay: time.Minute,
		MaxRetries:    5,

		PlannerBaseURL:   envFromKey("PLANNER_BASE_URL"),
		PlannerNamespace: envOrDefault("PLANNER_NAMESPACE", "Asterisk"),

		STTEngine:       envOrDefault("STT_ENGINE", "auto"),
		WhisperCLI:      envOrDefault("WHISPER_CLI", "whisper-cli"),
		WhisperModel:    envOrDefault("WHISPER_MODEL_PATH", ".models/whisper/ggml-base.bin"),
		WhisperLanguage: envOrDefault("WHISPER_LANGUAGE", "en"),

		TTSEngine:  envOrDefault("TTS_ENGINE", "exec"),
		TTSCommand: envOrDefault("TTS_COMMAND", "espeak-ng"),
		FFmpegBin:  envOrDefault("FFMPEG_BIN", "ffmpeg"),

		DatabaseURL: envFromKey("DATABASE_URL"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AMITimeout, err = durationFromEnv("AMI_TIMEOUT", cfg.AMITimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FollowUpDelay, err = durationFromEnv("FOLLOW_UP_DELAY", cfg.FollowUpDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRetries, err = intFromEnv("MAX_RETRIES", cfg.MaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.AudioWatchDir == "" {
		return Config{}, fmt.Errorf("AUDIO_WATCH_DIR must not be empty")
	}
	if cfg.TranscriptWatchDir == "" {
		return Config{}, fmt.Errorf("TRANSCRIPT_WATCH_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.Keyword) == "" {
		return Config{}, fmt.Errorf("TRIGGER_KEYWORD must not be empty")
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if cfg.FollowUpDelay < 0 {
		return Config{}, fmt.Errorf("FOLLOW_UP_DELAY must be >= 0")
	}
	if cfg.TranscriptDir == "" {
		cfg.TranscriptDir = os.TempDir()
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envFromKey(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envFromKey(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envFromKey(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envFromKey(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
