package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mlagent/internal/chat"
	"mlagent/internal/history"
	"mlagent/internal/sandbox"
)

func TestNewRunID(t *testing.T) {
	ts := time.Date(2026, 8, 29, 14, 30, 5, 0, time.UTC)
	if got := NewRunID(ts, "iris"); got != "20260829_143005_iris" {
		t.Fatalf("run id = %q", got)
	}
}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWriter(filepath.Join(dir, "artifacts"), filepath.Join(dir, "runs"), "20260829_143005_iris", "iris")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestSavePlotsSequenceNaming(t *testing.T) {
	w := newTestWriter(t)
	records := []history.Record{
		{Index: 0, Figures: []sandbox.Figure{{Seq: 1, PNG: []byte("a")}, {Seq: 2, PNG: []byte("b")}}},
		{Index: 1},
		{Index: 2, Figures: []sandbox.Figure{{Seq: 3, PNG: []byte("c")}}},
	}
	paths, err := w.SavePlots(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %v", paths)
	}
	for i, want := range []string{"plot_001.png", "plot_002.png", "plot_003.png"} {
		if filepath.Base(paths[i]) != want {
			t.Fatalf("paths[%d] = %s, want %s", i, paths[i], want)
		}
		if _, err := os.Stat(paths[i]); err != nil {
			t.Fatalf("plot not written: %v", err)
		}
	}
}

func TestSaveNotebookName(t *testing.T) {
	w := newTestWriter(t)
	path, err := w.SaveNotebook([]history.Record{{Index: 0, Code: "df.head()", Stdout: "ok\n", Success: true}})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "iris_pipeline.ipynb" {
		t.Fatalf("notebook path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"nbformat": 4`) {
		t.Fatal("notebook missing format marker")
	}
}

func TestSaveTranscriptFormat(t *testing.T) {
	w := newTestWriter(t)
	messages := []chat.Message{
		{Role: "system", Content: "you are an ML engineer"},
		{Role: "user", Content: "classify the flowers"},
		{
			Role:    "assistant",
			Content: "<think>look first</think>",
			ToolCalls: []chat.ToolCall{{
				ID:   "c1",
				Type: "function",
				Function: chat.ToolCallFunction{
					Name:      "execute_code",
					Arguments: `{"code":"df.head()"}`,
				},
			}},
		},
		{Role: "tool", Name: "execute_code", Content: "Output:\nok\n"},
	}
	path, err := w.SaveTranscript("gpt-5", messages, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "20260829_143005_iris.txt" {
		t.Fatalf("log path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, needle := range []string{
		"Run ID: 20260829_143005_iris",
		"[SYSTEM]\nyou are an ML engineer",
		"[USER]\nclassify the flowers",
		"[ASSISTANT]\n<think>look first</think>",
		"[TOOL CALLS]\n  - execute_code(",
		"[TOOL execute_code]\nOutput:",
	} {
		if !strings.Contains(text, needle) {
			t.Fatalf("transcript missing %q:\n%s", needle, text)
		}
	}
}

func TestNewWriterRejectsEscapingRunID(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(filepath.Join(dir, "artifacts"), filepath.Join(dir, "runs"), "../escape", "escape")
	if err == nil {
		t.Fatal("run id escaping the artifacts dir must be rejected")
	}
}
