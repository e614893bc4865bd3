package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openhouse-labs/keyturn/internal/api"
	"github.com/openhouse-labs/keyturn/internal/config"
	"github.com/openhouse-labs/keyturn/internal/notify"
	"github.com/openhouse-labs/keyturn/internal/notify/discord"
	"github.com/openhouse-labs/keyturn/internal/notify/slack"
	"github.com/openhouse-labs/keyturn/internal/sweep"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Keyturn API server",
		Long:  "Launches the JSON API and, when enabled, the SLA/overdue notification sweeper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Keyturn config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Sweep.Enabled {
		notifiers, err := buildNotifiers(cfg)
		if err != nil {
			return err
		}
		if len(notifiers) == 0 {
			fmt.Fprintln(out, "Sweep enabled but no notifiers configured; skipping sweeper")
		} else {
			fanout := notify.Fanout(notifiers)
			defer fanout.Close()

			sweeper, err := sweep.New(sweep.Opts{
				DB:       gormDB,
				Notifier: fanout,
				Schedule: cfg.Sweep.Schedule,
				Out:      out,
			})
			if err != nil {
				return err
			}
			go func() {
				if err := sweeper.Run(ctx); err != nil {
					log.Printf("sweeper: %v", err)
				}
			}()
		}
	}

	return api.Start(ctx, api.StartOpts{
		DB:          gormDB,
		Port:        port,
		WarnSeconds: cfg.SLA.WarnSeconds,
		Out:         out,
	})
}

// buildNotifiers constructs a notifier per configured chat platform.
func buildNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	if cfg.Notify.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.Channel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	return notifiers, nil
}
