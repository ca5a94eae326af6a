package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mlagent/internal/dataset"
	"mlagent/internal/sandbox"
)

func TestRegistryLookupAndOrder(t *testing.T) {
	dir := t.TempDir()
	r, err := dataset.NewResolver(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry(
		NewExecuteTool(sandbox.NewSession("", 0), 0, nil),
		NewDescribeTool(r),
	)
	names := reg.Names()
	if len(names) != 2 || names[0] != "describe_dataset" || names[1] != "execute_code" {
		t.Fatalf("names = %v", names)
	}
	if !reg.Has("execute_code") || reg.Has("bash") {
		t.Fatal("Has lookup broken")
	}
	if _, err := reg.Execute(context.Background(), "nope", nil); err == nil {
		t.Fatal("unknown tool did not error")
	}
	defs := reg.Definitions()
	if len(defs) != 2 || defs[0].Function.Name != "describe_dataset" {
		t.Fatalf("definitions = %+v", defs)
	}
}

func TestDescribeToolReportsErrorsAsText(t *testing.T) {
	dir := t.TempDir()
	r, err := dataset.NewResolver(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	tool := NewDescribeTool(r)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"identifier":"missing"}`))
	if err != nil {
		t.Fatalf("resolver failure surfaced as error: %v", err)
	}
	if !strings.Contains(out, "Error getting dataset info") {
		t.Fatalf("out = %q", out)
	}
}

func TestDescribeToolSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iris.csv")
	if err := os.WriteFile(path, []byte("petal,species\n1.4,setosa\n4.7,versicolor\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := dataset.NewResolver(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	tool := NewDescribeTool(r)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"identifier":"iris.csv"}`))
	if err != nil {
		t.Fatal(err)
	}
	for _, needle := range []string{"Dataset: iris", "Shape: 2 rows × 2 columns", "petal: float64"} {
		if !strings.Contains(out, needle) {
			t.Fatalf("describe output missing %q:\n%s", needle, out)
		}
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name string
		res  sandbox.Result
		want string
	}{
		{
			name: "stdout only",
			res:  sandbox.Result{Stdout: "42\n", Success: true},
			want: "Output:\n42\n",
		},
		{
			name: "error only",
			res:  sandbox.Result{Error: "NameError: name 'x' is not defined"},
			want: "Error:\nNameError: name 'x' is not defined",
		},
		{
			name: "stdout and plots",
			res: sandbox.Result{
				Stdout:  "done\n",
				Success: true,
				Figures: []sandbox.Figure{{Seq: 1}, {Seq: 2}},
			},
			want: "Output:\ndone\n\n\nGenerated 2 plot(s)",
		},
		{
			name: "empty",
			res:  sandbox.Result{Success: true},
			want: "Execution completed successfully (no output)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatResult(tc.res); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
