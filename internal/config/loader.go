package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/careerloop/internal/stream"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "careerloop"
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/careerloop.db"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:8091"
	}
	if cfg.API.StreamPollInterval == 0 {
		cfg.API.StreamPollInterval = 700 * time.Millisecond
	}
	if cfg.API.StreamHeartbeatInterval == 0 {
		cfg.API.StreamHeartbeatInterval = 15 * time.Second
	}
	if cfg.Coach.StreamPath == "" {
		cfg.Coach.StreamPath = "/v1/chat/stream"
	}
	if cfg.Coach.CompletePath == "" {
		cfg.Coach.CompletePath = "/v1/chat"
	}
	if cfg.Coach.FrameInterval == 0 {
		cfg.Coach.FrameInterval = stream.DefaultFrameInterval
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.Bot.MaxSteps == 0 {
		cfg.Bot.MaxSteps = 10
	}
	if cfg.Bot.JobDeadline == 0 {
		cfg.Bot.JobDeadline = 5 * time.Minute
	}
	if cfg.Bot.QueueCapacity == 0 {
		cfg.Bot.QueueCapacity = 100
	}
	if cfg.Bot.EnqueueTimeout == 0 {
		cfg.Bot.EnqueueTimeout = 2 * time.Second
	}
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("api.token is required")
	}
	if err := checkUnresolvedEnv("api.token", cfg.API.Token); err != nil {
		return err
	}
	if cfg.API.StreamPollInterval <= 0 {
		return fmt.Errorf("api.stream_poll_interval must be positive")
	}
	if cfg.API.StreamHeartbeatInterval <= 0 {
		return fmt.Errorf("api.stream_heartbeat_interval must be positive")
	}
	if cfg.Coach.BaseURL == "" {
		return fmt.Errorf("coach.base_url is required")
	}
	if cfg.Coach.FrameInterval <= 0 {
		return fmt.Errorf("coach.frame_interval must be positive")
	}
	if cfg.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if cfg.LLM.Provider != "ollama" {
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required")
		}
		if err := checkUnresolvedEnv("llm.api_key", cfg.LLM.APIKey); err != nil {
			return err
		}
	}
	if cfg.Bot.MaxSteps <= 0 {
		return fmt.Errorf("bot.max_steps must be positive")
	}
	return nil
}

func checkUnresolvedEnv(field, value string) error {
	if envVarPattern.MatchString(value) {
		matches := envVarPattern.FindStringSubmatch(value)
		if len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
		}
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
