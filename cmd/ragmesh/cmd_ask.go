package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newAskCmd creates the "ragmesh ask" subcommand: a one-shot question
// against the knowledge base, bypassing the queues.
func newAskCmd() *cobra.Command {
	var (
		conversation string
		clear        bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the knowledge base directly",
		Args:  cobra.MinimumNArgs(1),
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

			if clear {
				if err := bot.ClearMemory(conversation); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared memory for %q\n", conversation)
			}

			question := strings.Join(args, " ")
			answer, err := bot.Answer(cmd.Context(), conversation, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "cli", "Conversation key for memory (empty for stateless)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Forget the conversation before asking")
	return cmd
}
