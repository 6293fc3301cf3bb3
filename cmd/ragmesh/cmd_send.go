package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/gmail"
	"github.com/ragmesh/ragmesh/pipeline"
	"github.com/ragmesh/ragmesh/telegram"
)

// newSendCmd creates the "ragmesh send" subcommand: one action run
// delivering queued replies over the named channel.
func newSendCmd() *cobra.Command {
	var (
		noClear bool
		chatID  int64
		from    string
	)

	cmd := &cobra.Command{
		Use:   "send <telegram|gmail>",
		Short: "Deliver queued replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg).WithStage("action").WithQueue(cfg.ReplyQueue)
			store := newQueueStore(cfg, logger)

			var channel core.DeliveryChannel
			switch args[0] {
			case "telegram":
				if cfg.Telegram.Token == "" {
					return fmt.Errorf("telegram token is not configured")
				}
				client := telegram.NewClient(cfg.Telegram.Token, func(o *telegram.ClientOptions) {
					o.Logger = logger
				})
				channel = telegram.NewChannel(client, func(o *telegram.ChannelOptions) {
					o.Typing = cfg.Telegram.Typing
					o.Logger = logger
				})
			case "gmail":
				httpClient, err := newGmailHTTPClient()
				if err != nil {
					return err
				}
				client := gmail.NewClient(httpClient, func(o *gmail.ClientOptions) {
					o.Logger = logger
				})
				channel = gmail.NewChannel(client, func(o *gmail.ChannelOptions) {
					o.From = cfg.Gmail.From
					o.Logger = logger
				})
			default:
				return fmt.Errorf("unknown channel %q", args[0])
			}

			// Deliver only records originating from the selected channel
			// on top of any explicit filters.
			source := args[0]
			explicit := keepFilter(chatID, from)
			action := pipeline.NewAction(store, cfg.ReplyQueue, channel, func(o *pipeline.Options) {
				o.NoClear = noClear
				o.Keep = func(rec core.Record) bool {
					if rec.Source != source {
						return false
					}
					return explicit == nil || explicit(rec)
				}
				o.Logger = logger
			})
			res, err := action.Run(cmd.Context())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "Keep delivered replies queued (replay mode)")
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "Only deliver replies for this Telegram chat")
	cmd.Flags().StringVar(&from, "from", "", "Only deliver replies addressed to this email address")
	return cmd
}
