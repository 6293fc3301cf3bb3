package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragmesh/ragmesh/pipeline"
)

// newHandleCmd creates the "ragmesh handle" subcommand: one handler run
// draining queued triggers into reply records.
func newHandleCmd() *cobra.Command {
	var (
		noClear bool
		chatID  int64
		from    string
	)

	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Drain queued triggers and build replies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg).WithStage("handler").WithQueue(cfg.TriggerQueue)
			store := newQueueStore(cfg, logger)
			bot, err := buildBot(cfg, logger)
			if err != nil {
				return err
			}

			handler := pipeline.NewHandler(store, cfg.TriggerQueue, cfg.ReplyQueue, bot.HandlerFunc(), func(o *pipeline.Options) {
				o.NoClear = noClear
				o.Keep = keepFilter(chatID, from)
				o.Logger = logger
			})
			res, err := handler.Run(cmd.Context())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "Keep processed triggers queued (replay mode)")
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "Only process triggers from this Telegram chat")
	cmd.Flags().StringVar(&from, "from", "", "Only process triggers from this email address")
	return cmd
}

func printResult(cmd *cobra.Command, res pipeline.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "drained %d, committed %d, skipped %d, failed %d\n",
		res.Drained, res.Committed, res.Skipped, res.Failed)
	for _, re := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "record %s: %v\n", re.Record.ID, re.Err)
	}
}
