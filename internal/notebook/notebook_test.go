package notebook

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"mlagent/internal/history"
	"mlagent/internal/sandbox"
)

func TestClassifySection(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"import pandas as pd\nimport numpy as np", SectionImports},
		{"df.head()\ndf.describe()", SectionExploration},
		{"df = df.dropna()\ndf['age'] = df['age'].fillna(0)", SectionCleaning},
		{"X = pd.get_dummies(df)", SectionFeatures},
		{"plt.hist(df['age'])\nplt.show()", SectionVisualization},
		{"model = RandomForestClassifier()\nmodel.fit(X, y)", SectionModeling},
		{"print(accuracy_score(y_test, preds))", SectionEvaluation},
		{"x = 1 + 1", SectionAnalysis},
	}
	for _, tc := range tests {
		if got := ClassifySection(tc.code); got != tc.want {
			t.Fatalf("ClassifySection(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func sampleRecords() []history.Record {
	return []history.Record{
		{Index: 0, Code: "df.head()", Stdout: "   a  b\n0  1  2\n", Success: true},
		{Index: 1, Code: "df.describe()", Stdout: "count 2\n", Success: true},
		{Index: 2, Code: "1/0", Error: "Traceback (most recent call last):\n  File \"<fragment>\", line 1, in <module>\nZeroDivisionError: division by zero"},
		{Index: 3, Code: "plt.plot(df['a'])\nplt.show()", Success: true, Figures: []sandbox.Figure{
			{Seq: 1, PNG: []byte{0x89, 'P', 'N', 'G'}},
		}},
	}
}

func TestGenerateStructure(t *testing.T) {
	nb := Generate("iris pipeline", sampleRecords())

	if nb.NBFormat != 4 {
		t.Fatalf("nbformat = %d", nb.NBFormat)
	}
	types := make([]string, 0, len(nb.Cells))
	for _, c := range nb.Cells {
		types = append(types, c.CellType)
	}
	// title, exploration heading, 2 code cells (same section, no duplicate
	// heading), analysis heading + code, visualization heading + code
	want := []string{"markdown", "markdown", "code", "code", "markdown", "code", "markdown", "code"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("cell types = %v", types)
	}
	if got := strings.Join(nb.Cells[1].Source, ""); got != "## "+SectionExploration {
		t.Fatalf("first heading = %q", got)
	}

	errCell := nb.Cells[5]
	if len(errCell.Outputs) != 1 || errCell.Outputs[0].OutputType != "error" {
		t.Fatalf("error outputs = %+v", errCell.Outputs)
	}
	if errCell.Outputs[0].EName != "ZeroDivisionError" {
		t.Fatalf("ename = %q", errCell.Outputs[0].EName)
	}

	plotCell := nb.Cells[7]
	if len(plotCell.Outputs) != 1 || plotCell.Outputs[0].OutputType != "display_data" {
		t.Fatalf("plot outputs = %+v", plotCell.Outputs)
	}
	if _, ok := plotCell.Outputs[0].Data["image/png"]; !ok {
		t.Fatal("image payload missing")
	}
	if *plotCell.ExecutionCount != 4 {
		t.Fatalf("execution count = %d", *plotCell.ExecutionCount)
	}
}

func TestGenerateIdempotent(t *testing.T) {
	records := sampleRecords()
	first, err := Generate("run", records).Encode()
	if err != nil {
		t.Fatal(err)
	}
	second, err := Generate("run", records).Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("regeneration is not byte-identical")
	}
}

func TestEncodeIsValidJSON(t *testing.T) {
	data, err := Generate("run", sampleRecords()).Encode()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["nbformat"].(float64) != 4 {
		t.Fatal("nbformat marker missing")
	}
}

func TestSplitSourceKeepsNewlines(t *testing.T) {
	got := splitSource("a\nb\n")
	if len(got) != 2 || got[0] != "a\n" || got[1] != "b\n" {
		t.Fatalf("splitSource = %q", got)
	}
	if len(splitSource("")) != 0 {
		t.Fatal("empty source should yield no lines")
	}
	tail := splitSource("a\nb")
	if len(tail) != 2 || tail[1] != "b" {
		t.Fatalf("splitSource without trailing newline = %q", tail)
	}
}
