package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/gmail"
	"github.com/ragmesh/ragmesh/pipeline"
	"github.com/ragmesh/ragmesh/telegram"
)

// newTriggerCmd creates the "ragmesh trigger" subcommand: a long-running
// listener that appends inbound messages to the trigger queue.
func newTriggerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "trigger <telegram|gmail>",
		Short: "Listen for inbound messages and queue triggers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg).WithStage("trigger").WithQueue(cfg.TriggerQueue)
			store := newQueueStore(cfg, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			switch args[0] {
			case "telegram":
				if cfg.Telegram.Token == "" {
					return fmt.Errorf("telegram token is not configured")
				}
				client := telegram.NewClient(cfg.Telegram.Token, func(o *telegram.ClientOptions) {
					o.Logger = logger
				})
				trig := pipeline.NewTrigger(store, cfg.TriggerQueue, core.SourceTelegram, func(o *pipeline.TriggerOptions) {
					o.Logger = logger
				})
				poller := telegram.NewPoller(client, trig, func(o *telegram.PollerOptions) {
					o.Typing = cfg.Telegram.Typing
					o.Logger = logger
					if cfg.Telegram.AuditLog != "" {
						o.Audit = telegram.NewAuditLog(cfg.Telegram.AuditLog)
					}
				})
				if once {
					n, err := poller.PollOnce(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "queued %d trigger(s)\n", n)
					return nil
				}
				return poller.Run(ctx)

			case "gmail":
				httpClient, err := newGmailHTTPClient()
				if err != nil {
					return err
				}
				client := gmail.NewClient(httpClient, func(o *gmail.ClientOptions) {
					o.Logger = logger
				})
				trig := pipeline.NewTrigger(store, cfg.TriggerQueue, core.SourceGmail, func(o *pipeline.TriggerOptions) {
					o.Logger = logger
				})
				poller := gmail.NewPoller(client, trig, func(o *gmail.PollerOptions) {
					o.Query = cfg.Gmail.Query
					o.Interval = cfg.Gmail.PollInterval()
					o.Logger = logger
				})
				if once {
					n, err := poller.PollOnce(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "queued %d trigger(s)\n", n)
					return nil
				}
				return poller.Run(ctx)

			default:
				return fmt.Errorf("unknown channel %q", args[0])
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Poll a single time instead of running the listener loop")
	return cmd
}
