package app

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/envutil"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type Config struct {
	DatabaseURL           string `yaml:"database_url"`
	LogMode               string `yaml:"log_mode"`
	RedisAddr             string `yaml:"redis_addr"`
	RealtimeChannelPrefix string `yaml:"realtime_channel_prefix"`
	MaxCascadeDepth       int    `yaml:"max_cascade_depth"`
}

// LoadConfig layers an optional YAML file (path in FRACTAL_CONFIG) under
// environment variables. Environment always wins.
func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:               "development",
		RealtimeChannelPrefix: "fractal",
		MaxCascadeDepth:       events.DefaultMaxDepth,
	}

	if path := os.Getenv("FRACTAL_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Could not read config file, continuing with defaults", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Warn("Could not parse config file, continuing with defaults", "path", path, "error", err)
		} else {
			log.Info("Loaded config file", "path", path)
		}
	}

	cfg.DatabaseURL = envutil.GetEnv("DATABASE_URL", cfg.DatabaseURL, log)
	cfg.LogMode = envutil.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.RedisAddr = envutil.GetEnv("REDIS_ADDR", cfg.RedisAddr, log)
	cfg.RealtimeChannelPrefix = envutil.GetEnv("REALTIME_CHANNEL_PREFIX", cfg.RealtimeChannelPrefix, log)
	cfg.MaxCascadeDepth = envutil.GetEnvAsInt("MAX_CASCADE_DEPTH", cfg.MaxCascadeDepth, log)
	if cfg.MaxCascadeDepth <= 0 {
		cfg.MaxCascadeDepth = events.DefaultMaxDepth
	}
	return cfg
}
