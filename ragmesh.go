// Package ragmesh provides a high-level façade over the pipeline and RAG
// components. Most applications interact with this package by:
//  1. Creating a Bot via New() with an embedder, a vector index and a completer
//  2. Calling Answer() directly, or plugging HandlerFunc() into a pipeline
//     Handler stage so replies flow through the durable queues
//
// The façade delegates retrieval to retrieval.Assembler and generation to
// generate.Generator while keeping setup concise. Conversational memory is
// optional; without a store the bot answers statelessly.
package ragmesh

import (
	"context"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/generate"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/memory"
	"github.com/ragmesh/ragmesh/pipeline"
	"github.com/ragmesh/ragmesh/retrieval"
)

// Options configures the Bot.
type Options struct {
	// SystemPrompt heads every model request. Defaults to
	// generate.DefaultSystemPrompt.
	SystemPrompt string

	// TopK is the number of context chunks per question.
	TopK int

	// MinScore drops context chunks below the threshold. Nil keeps all.
	MinScore *float64

	// Filter is a metadata filter applied to every index query.
	Filter core.Filter

	// Memory persists per-conversation history. Nil disables memory.
	Memory *memory.Store

	// MaxPairs bounds remembered exchanges per conversation. 0 disables
	// memory even when a store is configured.
	MaxPairs int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bot answers questions over a knowledge base: retrieve context, recall the
// conversation, generate a grounded reply and remember the exchange.
type Bot struct {
	opts      Options
	embedder  core.Embedder
	index     core.VectorIndex
	assembler *retrieval.Assembler
	generator *generate.Generator
}

// New creates a Bot over the given collaborators.
func New(embedder core.Embedder, index core.VectorIndex, completer core.Completer, optFns ...func(o *Options)) *Bot {
	opts := Options{
		SystemPrompt: generate.DefaultSystemPrompt,
		TopK:         retrieval.DefaultTopK,
		MaxPairs:     10,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	assembler := retrieval.NewAssembler(embedder, index, func(o *retrieval.Options) {
		o.TopK = opts.TopK
		o.MinScore = opts.MinScore
		o.Filter = opts.Filter
		o.Logger = opts.Logger
	})
	generator := generate.NewGenerator(completer, func(o *generate.Options) {
		o.Logger = opts.Logger
	})
	return &Bot{opts: opts, embedder: embedder, index: index, assembler: assembler, generator: generator}
}

func (b *Bot) remembers(conversationKey string) bool {
	return b.opts.Memory != nil && b.opts.MaxPairs != 0 && conversationKey != ""
}

// Answer runs the full question-to-reply flow for one conversation. The
// exchange is appended to memory only after generation succeeds, so a
// failed request never leaves a half-recorded turn behind. An empty
// conversationKey answers statelessly.
func (b *Bot) Answer(ctx context.Context, conversationKey, question string) (string, error) {
	var conv memory.Conversation
	if b.remembers(conversationKey) {
		loaded, err := b.opts.Memory.Load(conversationKey)
		if err != nil {
			return "", err
		}
		conv = loaded
	}

	retrieved, err := b.assembler.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	answer, err := b.generator.Generate(ctx, b.opts.SystemPrompt, retrieved.Render(), conv, question)
	if err != nil {
		return "", err
	}

	if b.remembers(conversationKey) {
		updated := memory.AppendExchange(conv, question, answer)
		if err := b.opts.Memory.Save(conversationKey, updated, b.opts.MaxPairs); err != nil {
			return "", err
		}
	}
	return answer, nil
}

// HandlerFunc adapts the bot to a pipeline Handler stage: each trigger
// record's text is answered within the conversation its correlation maps
// to. Records without text are dropped without a reply.
func (b *Bot) HandlerFunc() pipeline.HandlerFunc {
	return func(ctx context.Context, rec core.Record) (*core.Reply, error) {
		if rec.Text == "" {
			return nil, nil
		}
		answer, err := b.Answer(ctx, rec.ConversationKey(), rec.Text)
		if err != nil {
			return nil, err
		}
		return &core.Reply{Text: answer}, nil
	}
}

// ClearMemory forgets one conversation.
func (b *Bot) ClearMemory(conversationKey string) error {
	if b.opts.Memory == nil {
		return nil
	}
	return b.opts.Memory.Clear(conversationKey)
}
