package engine

import (
	"context"
	"fmt"
	"time"

	"mlagent/internal/artifacts"
	"mlagent/internal/config"
	"mlagent/internal/contextmgr"
	"mlagent/internal/dataset"
	"mlagent/internal/events"
	"mlagent/internal/provider"
	"mlagent/internal/sandbox"
	"mlagent/internal/storage"
	"mlagent/internal/tools"
)

// Runner 端到端跑一次任务：解析数据集、注入沙箱、驱动循环、落盘产物
// Runner executes one goal end to end: resolve datasets, boot the sandbox,
// drive the generate/execute loop, then write artifacts and persist the
// run. Each Run call owns a fresh sandbox session and engine.
type Runner struct {
	Provider provider.Provider
	Resolver *dataset.Resolver
	Store    storage.Store // optional
	Sink     events.Sink   // optional
	Extra    []tools.Tool  // optional, e.g. external tool servers
	Playbook []string      // optional, playbook bodies appended to the system prompt
	Config   *config.Config
}

// RunReport extends RunResult with the on-disk and persisted locations.
type RunReport struct {
	RunResult
	RunID        string
	Dataset      string
	ArtifactsDir string
	NotebookPath string
	LogPath      string
	PlotPaths    []string
	TotalTokens  int
}

// Run resolves identifiers, runs the loop, and saves artifacts. Partial
// artifacts are still written when the loop aborts on a provider failure.
func (r *Runner) Run(ctx context.Context, identifiers []string, goal string) (*RunReport, error) {
	sink := r.Sink
	if sink == nil {
		sink = events.Discard
	}

	bindings, err := r.Resolver.ResolveAll(identifiers)
	if err != nil {
		sink.Emit(events.New(events.TypeError, 0, map[string]any{"error": err.Error()}))
		return nil, err
	}
	primary := bindings[0].Table.Name
	runID := artifacts.NewRunID(time.Now(), primary)

	sink.Emit(events.New(events.TypeMetadata, 0, map[string]any{
		"run_id":  runID,
		"dataset": primary,
		"model":   r.Provider.CurrentModel(),
		"goal":    goal,
	}))

	if r.Store != nil {
		if err := r.Store.CreateRun(storage.RunMeta{
			ID:      runID,
			Dataset: primary,
			Model:   r.Provider.CurrentModel(),
			Goal:    goal,
		}); err != nil {
			return nil, err
		}
	}

	session := sandbox.NewSession(r.Config.Sandbox.PythonBin, r.Config.Sandbox.OutputLimitBytes)
	defer session.Close()

	timeout := time.Duration(r.Config.Agent.ExecTimeoutSec) * time.Second
	if res := session.Inject(ctx, bindings, timeout); !res.Success {
		err := fmt.Errorf("inject datasets: %s", res.Error)
		sink.Emit(events.New(events.TypeError, 0, map[string]any{"error": err.Error()}))
		return nil, err
	}

	eng := New(r.Provider, nil, sink, r.Config.Agent.MaxIterations)
	registry := tools.NewRegistry(append([]tools.Tool{
		tools.NewDescribeTool(r.Resolver),
		tools.NewExecuteTool(session, timeout, eng.Observe),
	}, r.Extra...)...)
	eng.registry = registry

	prompt := SystemPrompt(bindings, r.Config.Agent.PlanningMode)
	for _, pb := range r.Playbook {
		prompt += "\n\n## Reference playbook\n\n" + pb
	}
	result, runErr := eng.Run(ctx, prompt, goal)

	report := &RunReport{
		RunResult: *result,
		RunID:     runID,
		Dataset:   primary,
	}
	tok := contextmgr.NewTokenizerForModel(r.Provider.CurrentModel())
	report.TotalTokens = tok.Count(result.Messages)

	if err := r.saveArtifacts(report, sink); err != nil && runErr == nil {
		runErr = err
	}
	r.persist(report, runErr)

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

func (r *Runner) saveArtifacts(report *RunReport, sink events.Sink) error {
	w, err := artifacts.NewWriter(r.Config.Paths.ArtifactsDir, r.Config.Paths.RunsDir, report.RunID, report.Dataset)
	if err != nil {
		return err
	}
	report.ArtifactsDir = w.RunDir()

	report.PlotPaths, err = w.SavePlots(report.Records)
	if err != nil {
		return err
	}
	report.NotebookPath, err = w.SaveNotebook(report.Records)
	if err != nil {
		return err
	}
	report.LogPath, err = w.SaveTranscript(r.Provider.CurrentModel(), report.Messages, time.Now())
	if err != nil {
		return err
	}

	sink.Emit(events.New(events.TypeArtifacts, report.Iterations, map[string]any{
		"artifacts_dir": report.ArtifactsDir,
		"notebook":      report.NotebookPath,
		"log":           report.LogPath,
		"plots":         len(report.PlotPaths),
		"total_tokens":  report.TotalTokens,
	}))
	return nil
}

func (r *Runner) persist(report *RunReport, runErr error) {
	if r.Store == nil {
		return
	}
	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	_ = r.Store.CompleteRun(storage.RunMeta{
		ID:           report.RunID,
		Plan:         report.Plan,
		Solution:     report.Solution,
		Iterations:   report.Iterations,
		LimitReached: report.LimitReached,
		Status:       status,
		ArtifactsDir: report.ArtifactsDir,
		LogPath:      report.LogPath,
	})

	rows := make([]storage.RecordRow, 0, len(report.Records))
	var figs []storage.FigureRow
	for _, rec := range report.Records {
		rows = append(rows, storage.RecordRow{
			RunID:      report.RunID,
			Index:      rec.Index,
			Code:       rec.Code,
			Stdout:     rec.Stdout,
			Error:      rec.Error,
			Success:    rec.Success,
			DurationMS: rec.Duration.Milliseconds(),
			Figures:    len(rec.Figures),
		})
		// PlotPaths were written in the same record/figure order.
		for _, fig := range rec.Figures {
			row := storage.FigureRow{RunID: report.RunID, RecordIndex: rec.Index, Seq: fig.Seq}
			if n := len(figs); n < len(report.PlotPaths) {
				row.Path = report.PlotPaths[n]
			}
			figs = append(figs, row)
		}
	}
	_ = r.Store.SaveRecords(report.RunID, rows)
	_ = r.Store.SaveFigures(report.RunID, figs)
}
