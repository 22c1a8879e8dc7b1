// Package config loads the service configuration from environment
// variables. Missing credentials are a startup error: the process refuses
// to start instead of failing requests one at a time.
package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Zhipu   ZhipuConfig
	Storage StorageConfig
	Ingest  IngestConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type ZhipuConfig struct {
	APIKey   string
	ChatURL  string
	ASRURL   string
	Model    string
	ASRModel string
}

type StorageConfig struct {
	DataDir string
}

type IngestConfig struct {
	MaxAudioBytes int64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Zhipu: ZhipuConfig{
			ChatURL:  "https://open.bigmodel.cn/api/paas/v4/chat/completions",
			ASRURL:   "https://api.z.ai/api/paas/v4/audio/transcriptions",
			Model:    "glm-4-flash",
			ASRModel: "glm-asr-2512",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Ingest: IngestConfig{
			MaxAudioBytes: 10 << 20, // 10MB
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from SOULNOTE_* environment variables on top of
// the defaults and validates it. The Zhipu API key is required; ZHIPU_API_KEY
// without the prefix is accepted as a fallback to match existing deployments.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Zhipu.APIKey == "" {
		if key := strings.TrimSpace(os.Getenv("ZHIPU_API_KEY")); key != "" {
			cfg.Zhipu.APIKey = key
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("creating data directory: %w", err)
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Zhipu.APIKey == "" {
		return fmt.Errorf("missing required config: Zhipu API key. " +
			"Set it via environment variable SOULNOTE_ZHIPU_API_KEY or ZHIPU_API_KEY")
	}
	if len(cfg.Zhipu.APIKey) < 10 {
		return fmt.Errorf("Zhipu API key appears invalid (too short)")
	}
	if cfg.Ingest.MaxAudioBytes <= 0 {
		return fmt.Errorf("max audio size must be positive, got %d", cfg.Ingest.MaxAudioBytes)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn, or error)", cfg.Log.Level)
	}
	return nil
}
