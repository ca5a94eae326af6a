package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"mlagent/internal/engine"
	"mlagent/internal/events"
	"mlagent/internal/tui"
)

var chatDatasets []string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal session: one goal per line",
	Long: `Start an interactive session. Each line you enter runs as one goal
against the selected datasets; results render as markdown.

Commands inside the session:
  /datasets          list available datasets
  /use a.csv b.csv   select datasets for following goals
  /model NAME        switch the model
  /quit              exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		runner, store, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rl, err := readline.NewEx(&readline.Config{
			Prompt:            "mlagent> ",
			HistoryFile:       filepath.Join(cfg.Paths.RunsDir, ".chat_history"),
			HistorySearchFold: true,
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		selected := append([]string(nil), chatDatasets...)
		fmt.Println("mlagent interactive session. /datasets lists data, /quit exits.")

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				if quit := chatCommand(runner, line, &selected); quit {
					return nil
				}
				continue
			}

			if len(selected) == 0 {
				fmt.Println("no datasets selected; use /use <name>... first or pass --dataset")
				continue
			}
			runGoal(ctx, runner, selected, line)
		}
	},
}

func init() {
	chatCmd.Flags().StringArrayVarP(&chatDatasets, "dataset", "d", nil, "dataset name or path (repeatable)")
}

// chatCommand handles slash commands; returns true to exit the session.
func chatCommand(runner *engine.Runner, line string, selected *[]string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/datasets":
		for _, e := range runner.Resolver.ListAvailable() {
			marker := ""
			if e.Builtin {
				marker = " (catalog)"
			}
			fmt.Printf("  %s%s  %s\n", e.Name, marker, e.Path)
		}
	case "/use":
		if len(fields) < 2 {
			fmt.Println("usage: /use <dataset>...")
			return false
		}
		*selected = fields[1:]
		fmt.Printf("using: %s\n", strings.Join(*selected, ", "))
	case "/model":
		if len(fields) != 2 {
			fmt.Printf("model: %s\n", runner.Provider.CurrentModel())
			return false
		}
		if err := runner.Provider.SetModel(fields[1]); err != nil {
			fmt.Fprintf(os.Stderr, "set model: %v\n", err)
			return false
		}
		fmt.Printf("model: %s\n", fields[1])
	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
	return false
}

func runGoal(ctx context.Context, runner *engine.Runner, datasets []string, goal string) {
	runner.Sink = events.SinkFunc(func(e events.Event) {
		switch e.Type {
		case events.TypeStatus:
			if state, _ := e.Payload["state"].(string); state == "generate" {
				fmt.Printf("  iteration %v/%v...\n", e.Payload["iteration"], e.Payload["max"])
			}
		case events.TypePlot:
			fmt.Printf("  captured figure %v\n", e.Payload["figure"])
		}
	})
	report, err := runner.Run(ctx, datasets, goal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		if report == nil {
			return
		}
	}
	fmt.Println()
	fmt.Println(renderMarkdown(report.Solution))
	fmt.Printf("notebook: %s\n\n", report.NotebookPath)
}

func renderMarkdown(content string) string {
	return tui.RenderMarkdown(content, 100)
}
