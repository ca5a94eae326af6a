package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ColumnType is the inferred type of a CSV column.
type ColumnType string

const (
	TypeInt    ColumnType = "int64"
	TypeFloat  ColumnType = "float64"
	TypeBool   ColumnType = "bool"
	TypeString ColumnType = "object"
)

// Column holds one column's name, inferred type, and missing-value count.
type Column struct {
	Name    string
	Type    ColumnType
	Missing int
}

// NumericSummary holds describe-style statistics for one numeric column.
type NumericSummary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	P25    float64
	P50    float64
	P75    float64
	Max    float64
}

// Table 内存中的表格数据：仅用于 describe_dataset，真正的分析在沙箱里跑
// Table is an in-memory tabular dataset. It backs describe_dataset only; the
// actual analysis runs inside the sandbox.
type Table struct {
	Name    string
	Path    string
	Columns []Column
	Rows    int

	cells [][]string // row-major, aligned with Columns
}

// LoadTable reads a CSV file into a Table, inferring column types and
// counting missing values. Failures wrap ErrLoad.
func LoadTable(path string) (*Table, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("%w: unsupported file format %q", ErrLoad, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrLoad, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrLoad, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrLoad, path)
	}

	header := records[0]
	rows := records[1:]
	t := &Table{
		Name:    stem(path),
		Path:    path,
		Columns: make([]Column, len(header)),
		Rows:    len(rows),
		cells:   rows,
	}
	for i, name := range header {
		t.Columns[i] = Column{Name: strings.TrimSpace(name), Type: inferType(rows, i)}
		for _, row := range rows {
			if i >= len(row) || isMissing(row[i]) {
				t.Columns[i].Missing++
			}
		}
	}
	return t, nil
}

func isMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "na", "n/a", "nan", "null", "none":
		return true
	}
	return false
}

// inferType picks the narrowest type all non-missing values satisfy.
func inferType(rows [][]string, col int) ColumnType {
	seen := false
	isInt, isFloat, isBool := true, true, true
	for _, row := range rows {
		if col >= len(row) || isMissing(row[col]) {
			continue
		}
		seen = true
		v := strings.TrimSpace(row[col])
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isFloat = false
		}
		switch strings.ToLower(v) {
		case "true", "false":
		default:
			isBool = false
		}
		if !isInt && !isFloat && !isBool {
			return TypeString
		}
	}
	switch {
	case !seen:
		return TypeString
	case isBool:
		return TypeBool
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	}
	return TypeString
}

// NumericColumns returns describe-style summaries for int/float columns.
func (t *Table) NumericColumns() []NumericSummary {
	var out []NumericSummary
	for i, col := range t.Columns {
		if col.Type != TypeInt && col.Type != TypeFloat {
			continue
		}
		values := make([]float64, 0, t.Rows)
		for _, row := range t.cells {
			if i >= len(row) || isMissing(row[i]) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err == nil {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, summarize(col.Name, values))
	}
	return out
}

func summarize(name string, values []float64) NumericSummary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := 0.0
	if len(values) > 1 {
		std = math.Sqrt(variance / float64(len(values)-1))
	}

	return NumericSummary{
		Column: name,
		Count:  len(values),
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		P25:    quantile(sorted, 0.25),
		P50:    quantile(sorted, 0.50),
		P75:    quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// quantile uses linear interpolation between closest ranks, matching the
// pandas default.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Preview returns up to n leading rows, cells aligned with Columns.
func (t *Table) Preview(n int) [][]string {
	if n > len(t.cells) {
		n = len(t.cells)
	}
	out := make([][]string, 0, n)
	for _, row := range t.cells[:n] {
		aligned := make([]string, len(t.Columns))
		for i := range t.Columns {
			if i < len(row) {
				aligned[i] = row[i]
			}
		}
		out = append(out, aligned)
	}
	return out
}

// Describe formats the table the way the model sees it: shape, per-column
// dtype and missing counts, numeric summary, and a short preview.
func (t *Table) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s\n", t.Name)
	fmt.Fprintf(&b, "Shape: %d rows × %d columns\n", t.Rows, len(t.Columns))

	b.WriteString("\nColumns and Types:\n")
	for _, col := range t.Columns {
		pct := 0.0
		if t.Rows > 0 {
			pct = float64(col.Missing) / float64(t.Rows) * 100
		}
		fmt.Fprintf(&b, "  - %s: %s (missing: %d, %.1f%%)\n", col.Name, col.Type, col.Missing, pct)
	}

	if summaries := t.NumericColumns(); len(summaries) > 0 {
		b.WriteString("\nNumeric Columns Summary:\n")
		fmt.Fprintf(&b, "  %-20s %8s %12s %12s %12s %12s %12s %12s %12s\n",
			"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max")
		for _, s := range summaries {
			fmt.Fprintf(&b, "  %-20s %8d %12.4f %12.4f %12.4f %12.4f %12.4f %12.4f %12.4f\n",
				s.Column, s.Count, s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max)
		}
	}

	preview := t.Preview(5)
	if len(preview) > 0 {
		b.WriteString("\nFirst 5 rows:\n")
		names := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			names[i] = col.Name
		}
		fmt.Fprintf(&b, "  %s\n", strings.Join(names, " | "))
		for _, row := range preview {
			fmt.Fprintf(&b, "  %s\n", strings.Join(row, " | "))
		}
	}
	return b.String()
}
