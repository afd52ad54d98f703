package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	TransformTimeoutSeconds int `yaml:"transform_timeout_seconds"`
	TransformRetries        int `yaml:"transform_retries"`
	BatchPauseMillis        int `yaml:"batch_pause_ms"`
	SweepBatchLimit         int `yaml:"sweep_batch_limit"`

	DBPath        string `yaml:"db_path"`
	SweepSchedule string `yaml:"sweep_schedule"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	AlertChannelID string `yaml:"alert_channel_id"`

	Timezone string `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideInt(&cfg.TransformTimeoutSeconds, "TRANSFORM_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.TransformRetries, "TRANSFORM_RETRIES")
	envOverrideInt(&cfg.BatchPauseMillis, "BATCH_PAUSE_MS")
	envOverrideInt(&cfg.SweepBatchLimit, "SWEEP_BATCH_LIMIT")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.AlertChannelID, "ALERT_CHANNEL_ID")
	envOverride(&cfg.Timezone, "TIMEZONE")

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.TransformTimeoutSeconds == 0 {
		cfg.TransformTimeoutSeconds = 30
	}
	if cfg.TransformRetries == 0 {
		cfg.TransformRetries = 3
	}
	if cfg.BatchPauseMillis == 0 {
		cfg.BatchPauseMillis = 100
	}
	if cfg.SweepBatchLimit == 0 {
		cfg.SweepBatchLimit = 200
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./fairnessbot.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.TransformTimeoutSeconds < 1 {
		log.Fatalf("invalid transform_timeout_seconds '%d': must be >= 1", cfg.TransformTimeoutSeconds)
	}
	if cfg.TransformRetries < 1 {
		log.Fatalf("invalid transform_retries '%d': must be >= 1", cfg.TransformRetries)
	}
	if cfg.BatchPauseMillis < 0 {
		log.Fatalf("invalid batch_pause_ms '%d': must be >= 0", cfg.BatchPauseMillis)
	}
	if cfg.SweepBatchLimit < 1 {
		log.Fatalf("invalid sweep_batch_limit '%d': must be >= 1", cfg.SweepBatchLimit)
	}

	if cfg.SweepSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.SweepSchedule); err != nil {
			log.Fatalf("invalid sweep_schedule '%s': %v", cfg.SweepSchedule, err)
		}
	}

	if cfg.AlertChannelID != "" && cfg.SlackBotToken == "" {
		log.Fatalf("slack_bot_token is required when alert_channel_id is set")
	}

	if cfg.Timezone == "Local" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func (c Config) TransformTimeout() time.Duration {
	return time.Duration(c.TransformTimeoutSeconds) * time.Second
}

func (c Config) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMillis) * time.Millisecond
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
