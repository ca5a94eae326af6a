package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mlagent/internal/engine"
	"mlagent/internal/events"
	"mlagent/internal/tui"
)

var (
	runDatasets  []string
	runPlaybooks []string
	runPlain     bool
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run one goal against one or more datasets",
	Long: `Run one analysis or modeling goal end to end.

Examples:
  mlagent run -d iris "build a species classifier"
  mlagent run -d train.csv -d test.csv "predict survival, evaluate on the test set"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(runDatasets) == 0 {
			return fmt.Errorf("at least one --dataset is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		runner, store, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(runPlaybooks) > 0 {
			bodies, err := loadPlaybooks(cfg, runPlaybooks)
			if err != nil {
				return err
			}
			runner.Playbook = bodies
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		goal := strings.Join(args, " ")
		if runPlain {
			return runPlainMode(ctx, runner, goal)
		}
		return runWithMonitor(ctx, runner, cfg.Agent.MaxIterations, goal)
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runDatasets, "dataset", "d", nil, "dataset name or path (repeatable)")
	runCmd.Flags().StringArrayVar(&runPlaybooks, "playbook", nil, "analysis playbook to apply (repeatable, see 'mlagent playbooks')")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "line-oriented output instead of the interactive monitor")
}

func runPlainMode(ctx context.Context, runner *engine.Runner, goal string) error {
	runner.Sink = events.SinkFunc(func(e events.Event) {
		switch e.Type {
		case events.TypeStatus:
			fmt.Printf("[%d] %v\n", e.Step, e.Payload["state"])
		case events.TypeCode:
			fmt.Printf("--- code ---\n%v\n", e.Payload["code"])
		case events.TypeError:
			fmt.Fprintf(os.Stderr, "error: %v\n", e.Payload["error"])
		}
	})
	report, err := runner.Run(ctx, runDatasets, goal)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func runWithMonitor(ctx context.Context, runner *engine.Runner, maxIterations int, goal string) error {
	monitor := tui.NewMonitor(strings.Join(runDatasets, ", "), goal, maxIterations)
	prog := tea.NewProgram(monitor)

	runner.Sink = events.SinkFunc(func(e events.Event) {
		prog.Send(tui.EventMsg{Event: e})
	})

	type outcome struct {
		report *engine.RunReport
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		report, err := runner.Run(ctx, runDatasets, goal)
		solution := ""
		if report != nil {
			solution = report.Solution
		}
		prog.Send(tui.RunDoneMsg{Solution: solution, Err: err})
		resCh <- outcome{report, err}
	}()

	if _, err := prog.Run(); err != nil {
		return err
	}
	out := <-resCh
	if out.err != nil {
		return out.err
	}
	printReport(out.report)
	return nil
}

func printReport(report *engine.RunReport) {
	fmt.Println()
	fmt.Println(renderMarkdown(report.Solution))
	fmt.Printf("run: %s (%d iterations, %d plots, ~%d tokens)\n",
		report.RunID, report.Iterations, len(report.PlotPaths), report.TotalTokens)
	fmt.Printf("notebook: %s\n", report.NotebookPath)
	fmt.Printf("log: %s\n", report.LogPath)
}
