package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/tokendash/internal/collectors"
	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
	"github.com/janekbaraniewski/tokendash/internal/daemon"
	"github.com/janekbaraniewski/tokendash/internal/dashboard"
)

func newStatusCommand() *cobra.Command {
	var socketPath string
	var local bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run a fresh aggregation pass and print the dashboard summary.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if local {
				summary, err := runLocalPass(ctx)
				if err != nil {
					return err
				}
				return printJSON(summary)
			}

			client, err := daemon.EnsureRunning(ctx, socketPath, false)
			if err != nil {
				return err
			}
			summary, err := client.Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", daemon.DefaultSocketPath(), "daemon unix socket path")
	cmd.Flags().BoolVar(&local, "local", false, "aggregate in-process instead of asking the daemon")
	return cmd
}

func newCachedCommand() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "cached",
		Short: "Print the daemon's last published summary without touching any provider.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := daemon.NewClient(socketPath)
			summary, err := client.Cached(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", daemon.DefaultSocketPath(), "daemon unix socket path")
	return cmd
}

func newUsageCommand() *cobra.Command {
	var socketPath string
	var provider string
	var refresh bool
	var local bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Print usage status, optionally filtered to one provider.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if local {
				agg, err := newLocalAggregator()
				if err != nil {
					return err
				}
				if provider == "" {
					summary, err := agg.Run(ctx)
					if err != nil {
						return err
					}
					return printJSON(summary)
				}
				st, ok := agg.FetchProvider(ctx, provider)
				if !ok {
					return fmt.Errorf("%w: %s", core.ErrProviderNotFound, provider)
				}
				return printJSON(st)
			}

			client, err := daemon.EnsureRunning(ctx, socketPath, false)
			if err != nil {
				return err
			}
			if provider == "" {
				// No filter: serve the cached summary, refreshing when asked
				// or when nothing is cached yet.
				if !refresh {
					if summary, err := client.Cached(ctx); err == nil {
						return printJSON(summary)
					}
				}
				summary, err := client.Status(ctx)
				if err != nil {
					return err
				}
				return printJSON(summary)
			}
			st, err := client.Usage(ctx, provider, refresh)
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", daemon.DefaultSocketPath(), "daemon unix socket path")
	cmd.Flags().StringVar(&provider, "provider", "", "provider id (openai, anthropic, moonshot, openrouter)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a fresh fetch instead of serving from cache")
	cmd.Flags().BoolVar(&local, "local", false, "fetch in-process instead of asking the daemon")
	return cmd
}

func newLocalAggregator() (*dashboard.Aggregator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		creds = config.Credentials{}
	}
	return dashboard.NewAggregator(
		collectors.All(),
		config.Resolver(cfg, creds),
		cfg,
		dashboard.NewCache(),
		zap.NewNop(),
	), nil
}

func runLocalPass(ctx context.Context) (*core.DashboardSummary, error) {
	agg, err := newLocalAggregator()
	if err != nil {
		return nil, err
	}
	return agg.Run(ctx)
}
