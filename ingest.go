package ragmesh

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ragmesh/ragmesh/core"
)

// DefaultChunkSize bounds one ingested chunk, in runes. Roughly a few
// hundred tokens for typical prose.
const DefaultChunkSize = 1200

// ChunkText splits plain text into ingestion chunks of at most maxRunes
// runes, preferring paragraph boundaries. Paragraphs longer than the bound
// are split hard. Blank input yields no chunks.
func ChunkText(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultChunkSize
	}
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if n > maxRunes {
			flush()
			runes := []rune(para)
			for start := 0; start < len(runes); start += maxRunes {
				end := start + maxRunes
				if end > len(runes) {
					end = len(runes)
				}
				chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))
			}
			continue
		}
		if currentLen > 0 && currentLen+2+n > maxRunes {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += n
	}
	flush()
	return chunks
}

// IngestOptions configure one Ingest call.
type IngestOptions struct {
	// ChunkSize bounds one chunk in runes. Defaults to DefaultChunkSize.
	ChunkSize int

	// Metadata is attached to every upserted chunk.
	Metadata map[string]any
}

// Ingest chunks the document, embeds every chunk in one batch and upserts
// the vectors into the index. The ids of the upserted chunks are returned.
func (b *Bot) Ingest(ctx context.Context, text string, optFns ...func(o *IngestOptions)) ([]string, error) {
	opts := IngestOptions{ChunkSize: DefaultChunkSize}
	for _, fn := range optFns {
		fn(&opts)
	}

	chunks := ChunkText(text, opts.ChunkSize)
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := b.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, &core.RetrievalError{Op: "embed", Err: err}
	}

	records := make([]core.VectorRecord, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.NewString()
		records[i] = core.VectorRecord{
			ID:       ids[i],
			Values:   vectors[i],
			Text:     chunk,
			Metadata: opts.Metadata,
		}
	}
	if err := b.index.Upsert(ctx, records); err != nil {
		return nil, err
	}
	b.opts.Logger.Info("document ingested", "chunks", len(chunks))
	return ids, nil
}
