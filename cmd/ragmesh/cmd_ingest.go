package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragmesh/ragmesh"
)

// newIngestCmd creates the "ragmesh ingest" subcommand: chunk a plain text
// document, embed the chunks and upsert them into the index.
func newIngestCmd() *cobra.Command {
	var (
		source    string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Add a plain text document to the knowledge base",
		Long:  "Reads the file (or stdin when no file is given), splits it into chunks, embeds them and upserts the vectors into the configured index.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			bot, err := buildBot(cfg, logger)
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				if source == "" {
					source = args[0]
				}
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			ids, err := bot.Ingest(cmd.Context(), string(data), func(o *ragmesh.IngestOptions) {
				o.ChunkSize = chunkSize
				if source != "" {
					o.Metadata = map[string]any{"source": source}
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunk(s)\n", len(ids))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source label stored in chunk metadata (defaults to the file name)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", ragmesh.DefaultChunkSize, "Maximum chunk size in characters")
	return cmd
}
