// Package artifacts owns the on-disk layout of a finished run: numbered
// plot images, the generated notebook, and the plain-text transcript log.
// Other tooling depends on these names being stable and sequence-ordered.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mlagent/internal/chat"
	"mlagent/internal/history"
	"mlagent/internal/notebook"
	"mlagent/internal/security"
)

// NewRunID 运行标识：时间戳加数据集名
// NewRunID builds the run identifier from a timestamp and the dataset name.
func NewRunID(now time.Time, datasetName string) string {
	return now.Format("20060102_150405") + "_" + datasetName
}

// Writer materializes one run's artifacts under artifactsDir/<runID>/ and
// its transcript log under runsDir/<runID>.txt.
type Writer struct {
	artifactsDir string
	runsDir      string
	runID        string
	dataset      string
}

func NewWriter(artifactsDir, runsDir, runID, datasetName string) (*Writer, error) {
	w := &Writer{artifactsDir: artifactsDir, runsDir: runsDir, runID: runID, dataset: datasetName}
	// Dataset names feed into the run ID; a name with path separators must
	// not move the run directory outside the artifacts tree.
	ws, err := security.NewWorkspace(artifactsDir)
	if err != nil {
		return nil, err
	}
	if _, err := ws.Resolve(runID); err != nil {
		return nil, fmt.Errorf("run id %q: %w", runID, err)
	}
	if err := os.MkdirAll(w.RunDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	return w, nil
}

func (w *Writer) RunDir() string {
	return filepath.Join(w.artifactsDir, w.runID)
}

// SavePlots writes every captured figure as plot_<seq>.png, zero-padded to
// three digits, and returns the written paths in sequence order.
func (w *Writer) SavePlots(records []history.Record) ([]string, error) {
	var paths []string
	for _, rec := range records {
		for _, fig := range rec.Figures {
			name := fmt.Sprintf("plot_%03d.png", fig.Seq)
			path := filepath.Join(w.RunDir(), name)
			if err := os.WriteFile(path, fig.PNG, 0o644); err != nil {
				return paths, fmt.Errorf("save %s: %w", name, err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// SaveNotebook writes <dataset>_pipeline.ipynb into the run directory.
func (w *Writer) SaveNotebook(records []history.Record) (string, error) {
	nb := notebook.Generate(w.dataset+" pipeline", records)
	data, err := nb.Encode()
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.RunDir(), w.dataset+"_pipeline.ipynb")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save notebook: %w", err)
	}
	return path, nil
}

// SaveTranscript writes the full transcript log to runsDir/<runID>.txt.
func (w *Writer) SaveTranscript(model string, messages []chat.Message, now time.Time) (string, error) {
	path := filepath.Join(w.runsDir, w.runID+".txt")
	var b strings.Builder
	rule := strings.Repeat("=", 80)
	b.WriteString("ML Engineer Agent Run\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Run ID: %s\n", w.runID)
	fmt.Fprintf(&b, "Dataset: %s\n", w.dataset)
	fmt.Fprintf(&b, "Model: %s\n", model)
	fmt.Fprintf(&b, "Timestamp: %s\n", now.Format(time.RFC3339))
	b.WriteString(rule + "\n\n")

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			fmt.Fprintf(&b, "[SYSTEM]\n%s\n\n", msg.Content)
		case "user":
			fmt.Fprintf(&b, "[USER]\n%s\n\n", msg.Content)
		case "assistant":
			fmt.Fprintf(&b, "[ASSISTANT]\n%s\n\n", msg.Content)
			if len(msg.ToolCalls) > 0 {
				b.WriteString("[TOOL CALLS]\n")
				for _, tc := range msg.ToolCalls {
					fmt.Fprintf(&b, "  - %s(%s)\n", tc.Function.Name, tc.Function.Arguments)
				}
				b.WriteString("\n")
			}
		case "tool":
			fmt.Fprintf(&b, "[TOOL %s]\n%s\n\n", msg.Name, msg.Content)
		default:
			fmt.Fprintf(&b, "[%s]\n%s\n\n", strings.ToUpper(msg.Role), msg.Content)
		}
		b.WriteString(strings.Repeat("-", 80) + "\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	return path, nil
}
