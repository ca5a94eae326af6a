package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// DefaultBinding is the variable name a single dataset binds to inside the
// execution context. Companion path variables append the "_path" suffix.
const DefaultBinding = "df"

// Binding maps a loaded table to execution-context variable names.
type Binding struct {
	Name    string // e.g. df or df_train
	PathVar string // e.g. df_path or df_train_path
	Path    string
	Table   *Table
}

// CatalogEntry is one named dataset in the catalog file.
type CatalogEntry struct {
	Name    string
	Path    string
	Size    int64
	Builtin bool
}

// Resolver 将数据集标识符解析为具体的 CSV 文件：先查 catalog，再查路径
// Resolver maps dataset identifiers to concrete CSV files: catalog name
// first, then direct or datasets-dir-relative path. It never touches the
// execution context; injection is the caller's job.
type Resolver struct {
	datasetsDir string
	catalog     map[string]string // name -> filename relative to datasetsDir
}

type catalogFile struct {
	Datasets map[string]string `yaml:"datasets"`
}

// NewResolver builds a resolver over a datasets directory and an optional
// YAML catalog file. A missing catalog file yields an empty catalog.
func NewResolver(datasetsDir, catalogPath string) (*Resolver, error) {
	r := &Resolver{datasetsDir: datasetsDir, catalog: map[string]string{}}
	if strings.TrimSpace(catalogPath) == "" {
		return r, nil
	}
	data, err := os.ReadFile(catalogPath)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", catalogPath, err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", catalogPath, err)
	}
	for name, file := range cf.Datasets {
		r.catalog[strings.TrimSpace(name)] = strings.TrimSpace(file)
	}
	return r, nil
}

// Resolve maps one identifier to an existing file path. Lookup order:
// catalog name, direct path, path relative to the datasets directory.
func (r *Resolver) Resolve(identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrNotFound)
	}

	if file, ok := r.catalog[id]; ok {
		path := filepath.Join(r.datasetsDir, file)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("%w: catalog entry %q points to missing file %s", ErrNotFound, id, path)
	}
	if _, err := os.Stat(id); err == nil {
		return id, nil
	}
	path := filepath.Join(r.datasetsDir, id)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %q (known catalog names: %s)", ErrNotFound, id, strings.Join(r.CatalogNames(), ", "))
}

// ResolveAll resolves and loads every identifier, deriving deterministic
// binding names. One identifier binds as df/df_path; several bind as
// df_<name>/df_<name>_path with sanitized lower-cased stems.
func (r *Resolver) ResolveAll(identifiers []string) ([]Binding, error) {
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("%w: no identifiers given", ErrNotFound)
	}
	multi := len(identifiers) > 1
	bindings := make([]Binding, 0, len(identifiers))
	seen := map[string]int{}
	for _, id := range identifiers {
		path, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		table, err := LoadTable(path)
		if err != nil {
			return nil, err
		}
		name := DefaultBinding
		if multi {
			base := DefaultBinding + "_" + sanitizeIdent(stem(path))
			name = base
			if n := seen[base]; n > 0 {
				name = fmt.Sprintf("%s_%d", base, n+1)
			}
			seen[base]++
		}
		bindings = append(bindings, Binding{
			Name:    name,
			PathVar: name + "_path",
			Path:    path,
			Table:   table,
		})
	}
	return bindings, nil
}

// ListAvailable returns catalog entries plus loose CSV files found in the
// datasets directory, sorted by name.
func (r *Resolver) ListAvailable() []CatalogEntry {
	var out []CatalogEntry
	catalogFiles := map[string]bool{}
	for name, file := range r.catalog {
		path := filepath.Join(r.datasetsDir, file)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		catalogFiles[file] = true
		out = append(out, CatalogEntry{Name: name, Path: path, Size: info.Size(), Builtin: true})
	}
	entries, err := os.ReadDir(r.datasetsDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") || catalogFiles[e.Name()] {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, CatalogEntry{
				Name: stem(e.Name()),
				Path: filepath.Join(r.datasetsDir, e.Name()),
				Size: info.Size(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CatalogNames returns the sorted catalog names.
func (r *Resolver) CatalogNames() []string {
	names := make([]string, 0, len(r.catalog))
	for name := range r.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sanitizeIdent lower-cases a dataset stem and maps it onto a valid
// identifier: non-alphanumeric runes become underscores, a leading digit
// gets an underscore prefix.
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "dataset"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}
