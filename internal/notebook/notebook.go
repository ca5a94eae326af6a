// Package notebook replays an execution history into a Jupyter notebook
// document. Generation is deterministic: the same records always produce
// the same cell structure.
package notebook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"mlagent/internal/history"
)

// nbformat 4 document shape, kept minimal but compliant so the output
// opens in any notebook viewer.
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

type Cell struct {
	CellType       string         `json:"cell_type"`
	Metadata       map[string]any `json:"metadata"`
	Source         []string       `json:"source"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Outputs        []Output       `json:"outputs,omitempty"`
}

type Output struct {
	OutputType string            `json:"output_type"`
	Name       string            `json:"name,omitempty"`
	Text       []string          `json:"text,omitempty"`
	Data       map[string]any    `json:"data,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	EName      string            `json:"ename,omitempty"`
	EValue     string            `json:"evalue,omitempty"`
	Traceback  []string          `json:"traceback,omitempty"`
}

// Generate builds the notebook for one run. Each record yields an optional
// section heading (only when the inferred label changes), one code cell
// with the fragment verbatim, and stream/error/image outputs in capture
// order. A leading title cell names the run.
func Generate(title string, records []history.Record) *Notebook {
	nb := &Notebook{
		Metadata: map[string]any{
			"kernelspec": map[string]any{
				"display_name": "Python 3",
				"language":     "python",
				"name":         "python3",
			},
			"language_info": map[string]any{
				"name":    "python",
				"version": "3",
			},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}

	if title != "" {
		nb.Cells = append(nb.Cells, markdownCell("# "+title))
	}

	previous := ""
	for _, rec := range records {
		label := ClassifySection(rec.Code)
		if label != previous {
			nb.Cells = append(nb.Cells, markdownCell("## "+label))
			previous = label
		}
		nb.Cells = append(nb.Cells, codeCell(rec))
	}
	return nb
}

// Encode renders the notebook as indented JSON with a trailing newline.
func (nb *Notebook) Encode() ([]byte, error) {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nb); err != nil {
		return nil, fmt.Errorf("encode notebook: %w", err)
	}
	return []byte(buf.String()), nil
}

func markdownCell(text string) Cell {
	return Cell{
		CellType: "markdown",
		Metadata: map[string]any{},
		Source:   splitSource(text),
	}
}

func codeCell(rec history.Record) Cell {
	count := rec.Index + 1
	cell := Cell{
		CellType:       "code",
		Metadata:       map[string]any{},
		Source:         splitSource(rec.Code),
		ExecutionCount: &count,
		Outputs:        []Output{},
	}
	if rec.Stdout != "" {
		cell.Outputs = append(cell.Outputs, Output{
			OutputType: "stream",
			Name:       "stdout",
			Text:       splitSource(rec.Stdout),
		})
	}
	if rec.Error != "" {
		lines := strings.Split(strings.TrimRight(rec.Error, "\n"), "\n")
		cell.Outputs = append(cell.Outputs, Output{
			OutputType: "error",
			EName:      errorName(rec.Error),
			EValue:     lines[len(lines)-1],
			Traceback:  lines,
		})
	}
	for _, fig := range rec.Figures {
		cell.Outputs = append(cell.Outputs, Output{
			OutputType: "display_data",
			Data: map[string]any{
				"image/png": base64.StdEncoding.EncodeToString(fig.PNG),
			},
			Metadata: map[string]any{"figure": fig.Seq},
		})
	}
	return cell
}

// splitSource breaks text into the nbformat line list, each line keeping
// its newline except the last.
func splitSource(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// errorName extracts the exception class from the last traceback line,
// e.g. "ZeroDivisionError: division by zero" -> "ZeroDivisionError".
func errorName(errText string) string {
	lines := strings.Split(strings.TrimRight(errText, "\n"), "\n")
	last := lines[len(lines)-1]
	if name, _, ok := strings.Cut(last, ":"); ok {
		name = strings.TrimSpace(name)
		if name != "" && !strings.Contains(name, " ") {
			return name
		}
	}
	return "Error"
}
