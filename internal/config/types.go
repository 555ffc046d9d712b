package config

import "time"

// Config represents the complete careerloop configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Coach    CoachConfig    `yaml:"coach"`
	LLM      LLMConfig      `yaml:"llm"`
	Bot      BotConfig      `yaml:"bot"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig defines SQLite storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen                  string        `yaml:"listen"`
	Token                   string        `yaml:"token"`
	StreamPollInterval      time.Duration `yaml:"stream_poll_interval"`
	StreamHeartbeatInterval time.Duration `yaml:"stream_heartbeat_interval"`
}

// CoachConfig defines the connection to the upstream coach engine.
type CoachConfig struct {
	BaseURL       string        `yaml:"base_url"`
	StreamPath    string        `yaml:"stream_path"`
	CompletePath  string        `yaml:"complete_path"`
	Token         string        `yaml:"token"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// LLMConfig defines the LLM provider used by bot jobs.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty"`
	MaxTokens int    `yaml:"max_tokens"`
}

// BotConfig defines bot job execution behavior.
type BotConfig struct {
	MaxSteps       int           `yaml:"max_steps"`
	JobDeadline    time.Duration `yaml:"job_deadline"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`
}
