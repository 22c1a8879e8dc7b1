package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kInt64
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "SOULNOTE_SERVER_HOST", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
	},
	{
		env: "SOULNOTE_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "SOULNOTE_ZHIPU_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Zhipu.APIKey = v.(string) },
	},
	{
		env: "SOULNOTE_ZHIPU_CHAT_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Zhipu.ChatURL = v.(string) },
	},
	{
		env: "SOULNOTE_ZHIPU_ASR_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Zhipu.ASRURL = v.(string) },
	},
	{
		env: "SOULNOTE_ZHIPU_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Zhipu.Model = v.(string) },
	},
	{
		env: "SOULNOTE_ZHIPU_ASR_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Zhipu.ASRModel = v.(string) },
	},
	{
		env: "SOULNOTE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "SOULNOTE_MAX_AUDIO_SIZE", typ: kInt64,
		apply: func(cfg *Config, v any) { cfg.Ingest.MaxAudioBytes = v.(int64) },
	},
	{
		env: "SOULNOTE_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kInt64:
			if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
