package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mlagent/internal/mcpserver"
	"mlagent/internal/sandbox"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve describe_dataset/execute_code over MCP stdio",
	Long: `Expose dataset inspection and persistent Python execution as MCP
tools on stdin/stdout, for use from external agent hosts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := newResolver(cfg)
		if err != nil {
			return err
		}

		session := sandbox.NewSession(cfg.Sandbox.PythonBin, cfg.Sandbox.OutputLimitBytes)
		defer session.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := mcpserver.New(mcpserver.Deps{
			Resolver: resolver,
			Session:  session,
			Timeout:  time.Duration(cfg.Agent.ExecTimeoutSec) * time.Second,
		})
		return mcpserver.ServeStdio(ctx, srv, os.Stdin, os.Stdout)
	},
}
