// Package config loads the bot configuration from a YAML file with
// environment overrides for secrets. A missing file yields the defaults, so
// a fully env-configured deployment needs no config file at all.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from a YAML file.
type Config struct {
	// QueueDir holds the queue files. Defaults to "queues".
	QueueDir string `yaml:"queue-dir"`

	// MemoryDir holds the per-conversation memory files. Defaults to
	// "memory".
	MemoryDir string `yaml:"memory-dir"`

	// TriggerQueue and ReplyQueue name the two pipeline queues.
	TriggerQueue string `yaml:"trigger-queue"`
	ReplyQueue   string `yaml:"reply-queue"`

	// SystemPrompt is the inline system prompt. SystemPromptFile, when
	// set, takes precedence and is read at startup.
	SystemPrompt     string `yaml:"system-prompt,omitempty"`
	SystemPromptFile string `yaml:"system-prompt-file,omitempty"`

	Retrieval RetrievalConfig `yaml:"retrieval"`
	Memory    MemoryConfig    `yaml:"memory"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Pinecone  PineconeConfig  `yaml:"pinecone,omitempty"`
	Telegram  TelegramConfig  `yaml:"telegram,omitempty"`
	Gmail     GmailConfig     `yaml:"gmail,omitempty"`
	Log       LogConfig       `yaml:"log"`
}

// RetrievalConfig tunes context assembly.
type RetrievalConfig struct {
	// TopK is how many chunks to request from the index. Default 5.
	TopK int `yaml:"top-k"`

	// MinScore drops chunks scoring below it. nil keeps everything.
	MinScore *float64 `yaml:"min-score,omitempty"`

	// Backend selects the vector index: "pinecone" (default) or
	// "chromem" for local development.
	Backend string `yaml:"backend"`
}

// MemoryConfig tunes conversational memory.
type MemoryConfig struct {
	// MaxPairs bounds remembered exchanges per conversation. 0 disables
	// memory entirely. Default 10.
	MaxPairs int `yaml:"max-pairs"`
}

// OpenAIConfig holds OpenAI credentials and model selection.
type OpenAIConfig struct {
	// APIKey is normally supplied via OPENAI_API_KEY.
	APIKey string `yaml:"api-key,omitempty"`

	Model          string `yaml:"model,omitempty"`
	EmbeddingModel string `yaml:"embedding-model,omitempty"`

	// EmbeddingDimensions must match the index. Default 1536.
	EmbeddingDimensions int `yaml:"embedding-dimensions,omitempty"`
}

// AnthropicConfig holds Anthropic credentials and model selection. Set
// Model to route generation through Anthropic instead of OpenAI.
type AnthropicConfig struct {
	// APIKey is normally supplied via ANTHROPIC_API_KEY.
	APIKey string `yaml:"api-key,omitempty"`

	Model string `yaml:"model,omitempty"`
}

// PineconeConfig holds the index endpoint.
type PineconeConfig struct {
	// APIKey is normally supplied via PINECONE_API_KEY.
	APIKey string `yaml:"api-key,omitempty"`

	Host      string `yaml:"host,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// TelegramConfig holds the bot token and trigger behavior.
type TelegramConfig struct {
	// Token is normally supplied via TELEGRAM_BOT_TOKEN.
	Token string `yaml:"token,omitempty"`

	// Typing shows the typing indicator on inbound messages and sends.
	Typing bool `yaml:"typing"`

	// AuditLog, when set, appends every inbound message to this JSONL
	// file.
	AuditLog string `yaml:"audit-log,omitempty"`
}

// GmailConfig tunes the mail trigger and channel.
type GmailConfig struct {
	// From is the sender address on outgoing mail.
	From string `yaml:"from,omitempty"`

	// Query selects inbound messages. Default "is:unread in:inbox".
	Query string `yaml:"query,omitempty"`

	// PollSeconds is the interval between inbox polls. Default 60.
	PollSeconds int `yaml:"poll-seconds,omitempty"`
}

// PollInterval returns the poll interval as a duration.
func (g GmailConfig) PollInterval() time.Duration {
	return time.Duration(g.PollSeconds) * time.Second
}

// LogConfig tunes logging output.
type LogConfig struct {
	// Level is debug, info, warn or error. Default info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Default text.
	Format string `yaml:"format"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		QueueDir:     "queues",
		MemoryDir:    "memory",
		TriggerQueue: "triggers",
		ReplyQueue:   "replies",
		Retrieval:    RetrievalConfig{TopK: 5, Backend: "pinecone"},
		Memory:       MemoryConfig{MaxPairs: 10},
		Gmail:        GmailConfig{Query: "is:unread in:inbox", PollSeconds: 60},
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; a missing path
// skips the file entirely. A .env file in the working directory is loaded
// first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv fills secrets from the conventional environment variables. Env
// values win over file values so deployments can rotate keys without
// touching config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		c.Pinecone.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top-k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Memory.MaxPairs < 0 {
		return fmt.Errorf("memory max-pairs must not be negative, got %d", c.Memory.MaxPairs)
	}
	switch c.Retrieval.Backend {
	case "pinecone", "chromem":
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if ms := c.Retrieval.MinScore; ms != nil && (*ms < 0 || *ms > 1) {
		return fmt.Errorf("retrieval min-score must be within [0,1], got %v", *ms)
	}
	return nil
}
