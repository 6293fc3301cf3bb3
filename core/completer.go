package core

import "context"

// Conversation roles used in completer messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one ordered turn of a model request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the language-model collaborator: it turns an ordered message
// list into generated text. Rate limits are retryable by the caller via a
// stage re-run; a context-length rejection is fatal for that request.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []Message) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
