package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/ragmesh/ragmesh"
	"github.com/ragmesh/ragmesh/config"
	"github.com/ragmesh/ragmesh/core"
	embopenai "github.com/ragmesh/ragmesh/embedding/openai"
	"github.com/ragmesh/ragmesh/generate"
	"github.com/ragmesh/ragmesh/generate/anthropic"
	genopenai "github.com/ragmesh/ragmesh/generate/openai"
	"github.com/ragmesh/ragmesh/index/chromem"
	"github.com/ragmesh/ragmesh/index/pinecone"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/memory"
	"github.com/ragmesh/ragmesh/queue"
)

var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ragmesh",
		Short:         "File-queue RAG bot pipeline",
		Long:          "ragmesh moves messages through durable file queues: trigger listeners append inbound questions, the handler answers them against a knowledge base and the sender delivers the replies.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ragmesh.yaml", "Config file path")

	cmd.AddCommand(
		newTriggerCmd(),
		newHandleCmd(),
		newSendCmd(),
		newAskCmd(),
		newIngestCmd(),
		newStatsCmd(),
	)
	return cmd
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func parseLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

func newLogger(cfg config.Config) *logging.BotLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  parseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

func newQueueStore(cfg config.Config, logger logging.Logger) *queue.Store {
	return queue.NewStore(cfg.QueueDir, func(o *queue.Options) {
		o.Logger = logger
	})
}

func newOpenAIClient(cfg config.Config) *openaisdk.Client {
	var opts []option.RequestOption
	if cfg.OpenAI.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.OpenAI.APIKey))
	}
	client := openaisdk.NewClient(opts...)
	return &client
}

func newEmbedder(cfg config.Config) core.Embedder {
	return embopenai.NewEmbedderFromClient(newOpenAIClient(cfg), func(o *embopenai.Options) {
		if cfg.OpenAI.EmbeddingModel != "" {
			o.Model = cfg.OpenAI.EmbeddingModel
		}
		if cfg.OpenAI.EmbeddingDimensions > 0 {
			o.Dimensions = cfg.OpenAI.EmbeddingDimensions
		}
	})
}

func newIndex(cfg config.Config, logger logging.Logger) (core.VectorIndex, error) {
	switch cfg.Retrieval.Backend {
	case "chromem":
		return chromem.New()
	default:
		if cfg.Pinecone.Host == "" {
			return nil, fmt.Errorf("pinecone backend requires a host in config")
		}
		return pinecone.New(func(o *pinecone.Options) {
			o.APIKey = cfg.Pinecone.APIKey
			o.Host = cfg.Pinecone.Host
			o.Namespace = cfg.Pinecone.Namespace
			o.Logger = logger
		}), nil
	}
}

func newCompleter(cfg config.Config) core.Completer {
	if cfg.Anthropic.Model != "" {
		return anthropic.NewCompleter(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Anthropic.Model)
			o.APIKey = cfg.Anthropic.APIKey
		})
	}
	return genopenai.NewCompleterFromClient(newOpenAIClient(cfg), func(o *genopenai.Options) {
		if cfg.OpenAI.Model != "" {
			o.Model = cfg.OpenAI.Model
		}
	})
}

// buildBot wires the full answer flow from configuration.
func buildBot(cfg config.Config, logger logging.Logger) (*ragmesh.Bot, error) {
	index, err := newIndex(cfg, logger)
	if err != nil {
		return nil, err
	}
	prompt, err := generate.LoadPrompt(cfg.SystemPromptFile, cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}
	bot := ragmesh.New(newEmbedder(cfg), index, newCompleter(cfg), func(o *ragmesh.Options) {
		o.SystemPrompt = prompt
		o.TopK = cfg.Retrieval.TopK
		o.MinScore = cfg.Retrieval.MinScore
		o.Memory = memory.NewStore(cfg.MemoryDir, func(mo *memory.Options) {
			mo.Logger = logger
		})
		o.MaxPairs = cfg.Memory.MaxPairs
		o.Logger = logger
	})
	return bot, nil
}

// keepFilter builds the record filter for --chat-id / --from. A zero chat
// id and empty address accept everything.
func keepFilter(chatID int64, from string) func(core.Record) bool {
	if chatID == 0 && from == "" {
		return nil
	}
	return func(rec core.Record) bool {
		if chatID != 0 && rec.ChatID != chatID {
			return false
		}
		if from != "" && rec.To != from {
			return false
		}
		return true
	}
}

// bearerTransport adds a static bearer token to every request. The Gmail
// commands use it with a token minted outside this process; interactive
// OAuth stays out of scope.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func newGmailHTTPClient() (*http.Client, error) {
	token := os.Getenv("GMAIL_ACCESS_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GMAIL_ACCESS_TOKEN is not set")
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &bearerTransport{token: token},
	}, nil
}
