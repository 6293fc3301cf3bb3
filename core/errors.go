package core

import "fmt"

// CorruptQueueError reports unreadable persisted queue state. It is fatal
// for that queue: callers must not repair it by deleting data.
type CorruptQueueError struct {
	Queue string
	Err   error
}

// Error implements the error interface.
func (e *CorruptQueueError) Error() string {
	return fmt.Sprintf("queue %q: corrupt persisted state: %v", e.Queue, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *CorruptQueueError) Unwrap() error { return e.Err }

// RetrievalError reports an embedding or vector-query failure. It is fatal
// for the current processing attempt; the triggering record stays queued.
// It is deliberately distinct from an empty retrieval result, which is a
// valid outcome.
type RetrievalError struct {
	Op  string // "embed" or "query"
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying collaborator error.
func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a language-model call failure, including rejected
// over-length input. The generator never truncates to recover; bounding the
// prompt is the memory store's and assembler's job.
type GenerationError struct {
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %v", e.Err)
}

// Unwrap returns the underlying model error.
func (e *GenerationError) Unwrap() error { return e.Err }

// DeliveryError reports an external channel send failure. The reply record
// stays in its queue for a later re-run.
type DeliveryError struct {
	Channel string
	Err     error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s: %v", e.Channel, e.Err)
}

// Unwrap returns the underlying channel error.
func (e *DeliveryError) Unwrap() error { return e.Err }

// UnsupportedFilterError reports a metadata filter the index backend cannot
// evaluate (unknown operator or operand shape).
type UnsupportedFilterError struct {
	Op string
}

// Error implements the error interface.
func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("unsupported metadata filter operator %q", e.Op)
}
