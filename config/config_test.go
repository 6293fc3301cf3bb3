package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retrieval:\n  backend: chromem\n"))
	require.NoError(t, err)

	assert.Equal(t, "queues", cfg.QueueDir)
	assert.Equal(t, "triggers", cfg.TriggerQueue)
	assert.Equal(t, "replies", cfg.ReplyQueue)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Nil(t, cfg.Retrieval.MinScore)
	assert.Equal(t, 10, cfg.Memory.MaxPairs)
	assert.Equal(t, time.Minute, cfg.Gmail.PollInterval())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
queue-dir: /var/lib/bot/queues
retrieval:
  top-k: 3
  min-score: 0.35
  backend: chromem
memory:
  max-pairs: 0
telegram:
  typing: true
  audit-log: /var/log/bot/audit.jsonl
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/bot/queues", cfg.QueueDir)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	require.NotNil(t, cfg.Retrieval.MinScore)
	assert.InDelta(t, 0.35, *cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, 0, cfg.Memory.MaxPairs)
	assert.True(t, cfg.Telegram.Typing)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval, cfg.Retrieval)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "queues", cfg.QueueDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	path := writeConfig(t, `
retrieval:
  backend: chromem
openai:
  api-key: file-key
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero top-k", func(c *Config) { c.Retrieval.TopK = 0 }, "top-k"},
		{"negative max-pairs", func(c *Config) { c.Memory.MaxPairs = -1 }, "max-pairs"},
		{"unknown backend", func(c *Config) { c.Retrieval.Backend = "faiss" }, "backend"},
		{"min-score out of range", func(c *Config) {
			v := 1.5
			c.Retrieval.MinScore = &v
		}, "min-score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Retrieval.Backend = "chromem"
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_SystemPromptFields(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  backend: chromem
system-prompt: inline prompt
system-prompt-file: /etc/ragmesh/prompt.txt
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "inline prompt", cfg.SystemPrompt)
	assert.Equal(t, "/etc/ragmesh/prompt.txt", cfg.SystemPromptFile)
}
