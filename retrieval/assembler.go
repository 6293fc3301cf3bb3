// Package retrieval implements the RAG context engine: embed a question,
// query the vector index, filter hits by score and render the survivors
// into one rank-labeled context string for the reply generator.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
)

// DefaultTopK is the number of chunks retrieved when not overridden.
const DefaultTopK = 5

// Options configure an Assembler's retrieval defaults.
type Options struct {
	// TopK is the default number of chunks per query.
	TopK int

	// MinScore drops chunks scoring below the threshold. Nil disables
	// score filtering.
	MinScore *float64

	// Filter is a default metadata filter applied to every query.
	Filter core.Filter

	// Logger receives retrieval events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// QueryOptions override assembler defaults for a single Retrieve call.
type QueryOptions struct {
	TopK     int
	MinScore *float64
	Filter   core.Filter
}

// WithTopK overrides the chunk count for one query.
func WithTopK(k int) func(o *QueryOptions) {
	return func(o *QueryOptions) { o.TopK = k }
}

// WithMinScore sets the score threshold for one query.
func WithMinScore(min float64) func(o *QueryOptions) {
	return func(o *QueryOptions) { o.MinScore = &min }
}

// WithFilter sets the metadata filter for one query.
func WithFilter(f core.Filter) func(o *QueryOptions) {
	return func(o *QueryOptions) { o.Filter = f }
}

// Context is an assembled retrieval result: the surviving chunks in index
// order, renderable as one bounded context string. An empty Context is a
// valid outcome ("nothing relevant found") and is distinct from a retrieval
// failure, which surfaces as a *core.RetrievalError instead.
type Context struct {
	Chunks []core.Chunk
}

// Empty reports whether retrieval found nothing above the threshold.
func (c Context) Empty() bool { return len(c.Chunks) == 0 }

// Render joins the chunks as "[i] text" blocks separated by blank lines.
// Ranks are 1-based positions in the filtered sequence, renumbered after
// score filtering.
func (c Context) Render() string {
	if len(c.Chunks) == 0 {
		return ""
	}
	parts := make([]string, len(c.Chunks))
	for i, chunk := range c.Chunks {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Assembler runs the embed-query-filter-render algorithm against an
// Embedder and a VectorIndex.
type Assembler struct {
	embedder core.Embedder
	index    core.VectorIndex
	opts     Options
}

// NewAssembler creates an Assembler over the given collaborators.
func NewAssembler(embedder core.Embedder, index core.VectorIndex, optFns ...func(o *Options)) *Assembler {
	opts := Options{TopK: DefaultTopK, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	return &Assembler{embedder: embedder, index: index, opts: opts}
}

func (a *Assembler) queryOptions(optFns []func(o *QueryOptions)) QueryOptions {
	q := QueryOptions{TopK: a.opts.TopK, MinScore: a.opts.MinScore, Filter: a.opts.Filter}
	for _, fn := range optFns {
		fn(&q)
	}
	if q.TopK < 1 {
		q.TopK = a.opts.TopK
	}
	return q
}

// Retrieve embeds the question, queries the index and returns the assembled
// context. The index's descending-score ordering is trusted as returned;
// chunks below the min-score threshold are dropped and the remainder keep
// their relative order. Collaborator failures propagate as
// *core.RetrievalError and are never masked as an empty context.
func (a *Assembler) Retrieve(ctx context.Context, question string, optFns ...func(o *QueryOptions)) (Context, error) {
	q := a.queryOptions(optFns)
	start := time.Now()

	vector, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return Context{}, &core.RetrievalError{Op: "embed", Err: err}
	}
	chunks, err := a.index.Query(ctx, vector, q.TopK, q.Filter)
	if err != nil {
		return Context{}, &core.RetrievalError{Op: "query", Err: err}
	}

	kept := chunks
	if q.MinScore != nil {
		kept = kept[:0:0]
		for _, chunk := range chunks {
			if chunk.Score >= *q.MinScore {
				kept = append(kept, chunk)
			}
		}
	}
	a.opts.Logger.Info("context retrieved",
		"chunks_returned", len(chunks),
		"chunks_kept", len(kept),
		"duration", time.Since(start),
	)
	return Context{Chunks: kept}, nil
}

// RetrieveBatch applies the same algorithm to each question independently:
// one Context per input, no cross-question deduplication. The first failure
// aborts the batch.
func (a *Assembler) RetrieveBatch(ctx context.Context, questions []string, optFns ...func(o *QueryOptions)) ([]Context, error) {
	out := make([]Context, 0, len(questions))
	for _, question := range questions {
		c, err := a.Retrieve(ctx, question, optFns...)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
