package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mlagent/internal/engine"
	"mlagent/internal/events"
	"mlagent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and WebSocket event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := newResolver(cfg)
		if err != nil {
			return err
		}
		runner, store, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		// Each request gets an isolated runner so concurrent sessions
		// never share a sandbox or event sink.
		run := func(ctx context.Context, identifiers []string, goal string, sink events.Sink) (*engine.RunReport, error) {
			r := &engine.Runner{
				Provider: runner.Provider,
				Resolver: runner.Resolver,
				Store:    runner.Store,
				Extra:    runner.Extra,
				Playbook: runner.Playbook,
				Config:   runner.Config,
				Sink:     sink,
			}
			return r.Run(ctx, identifiers, goal)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg.Server.Addr, logger, resolver, run)
		return srv.ListenAndServe(ctx)
	},
}
