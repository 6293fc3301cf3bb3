// Package generate implements the reply generator: it composes the system
// prompt, retrieved context, conversational memory and current question into
// one ordered model request and returns the generated text.
package generate

import (
	"context"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/memory"
)

// contextPreamble introduces the retrieved chunks to the model. The context
// itself is passed through verbatim, rank labels included.
const contextPreamble = "Use the following knowledge base context to answer the user's question:\n\n"

// Options configure a Generator.
type Options struct {
	// Logger receives generation events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Generator turns an assembled prompt into generated text via a Completer.
// It applies no truncation of its own: bounding the prompt is the memory
// store's and context assembler's job (max_pairs, top_k). An over-length
// input rejected by the model surfaces as a *core.GenerationError.
type Generator struct {
	completer core.Completer
	opts      Options
}

// NewGenerator creates a Generator over the given Completer.
func NewGenerator(completer core.Completer, optFns ...func(o *Options)) *Generator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{completer: completer, opts: opts}
}

// BuildMessages assembles the ordered model request:
//
//  1. system instructions
//  2. retrieved context as a second system message (omitted when empty)
//  3. prior exchanges oldest first, as alternating user/assistant turns
//  4. the current question
//
// Memory deliberately follows context so the model treats retrieved facts
// as higher-priority grounding than conversational recap.
func BuildMessages(systemPrompt, contextText string, conv memory.Conversation, question string) []core.Message {
	messages := make([]core.Message, 0, len(conv)*2+3)
	messages = append(messages, core.Message{Role: core.RoleSystem, Content: systemPrompt})
	if contextText != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: contextPreamble + contextText})
	}
	for _, ex := range conv {
		messages = append(messages,
			core.Message{Role: core.RoleUser, Content: ex.Question},
			core.Message{Role: core.RoleAssistant, Content: ex.Answer},
		)
	}
	messages = append(messages, core.Message{Role: core.RoleUser, Content: question})
	return messages
}

// Generate builds the message list and runs the completion. Any completer
// failure, including a rejected over-length input, is fatal for this
// request and wraps as *core.GenerationError.
func (g *Generator) Generate(ctx context.Context, systemPrompt, contextText string, conv memory.Conversation, question string) (string, error) {
	messages := BuildMessages(systemPrompt, contextText, conv, question)
	answer, err := g.completer.Complete(ctx, messages)
	if err != nil {
		return "", &core.GenerationError{Err: err}
	}
	g.opts.Logger.Info("reply generated",
		"messages", len(messages),
		"history_pairs", len(conv),
		"answer_len", len(answer),
	)
	return answer, nil
}
