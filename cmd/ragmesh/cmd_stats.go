package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the "ragmesh stats" subcommand: queue depths and
// index statistics.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depths and index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			store := newQueueStore(cfg, logger)

			for _, name := range []string{cfg.TriggerQueue, cfg.ReplyQueue} {
				records, err := store.Load(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue %-12s %d record(s)\n", name, len(records))
			}

			index, err := newIndex(cfg, logger)
			if err != nil {
				return err
			}
			stats, err := index.Stats(cmd.Context())
			if err != nil {
				return err
			}
			ns := stats.Namespace
			if ns == "" {
				ns = "(default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index namespace %s: %d vector(s), dimension %d\n",
				ns, stats.Count, stats.Dimension)
			return nil
		},
	}
}
