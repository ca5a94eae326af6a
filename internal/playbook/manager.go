// Package playbook manages reusable analysis playbooks: markdown files
// that get appended to the system prompt to steer a run toward a
// particular methodology (EDA depth, modeling discipline, and so on).
// Playbooks are discovered from user directories; a small builtin set is
// embedded. A user playbook with the same name overrides the builtin one.
package playbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

type Manager struct {
	items   map[string]Info
	builtin map[string]string
}

// Discover walks each root for PLAYBOOK.md files. Missing roots are
// skipped; duplicate names across roots are an error.
func Discover(paths []string) (*Manager, error) {
	m := &Manager{items: map[string]Info{}, builtin: map[string]string{}}
	for _, root := range paths {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !strings.EqualFold(d.Name(), "PLAYBOOK.md") {
				return nil
			}
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				return nil
			}
			info := parse(string(data), path)
			if _, ok := m.items[info.Name]; ok {
				return fmt.Errorf("duplicate playbook name: %s", info.Name)
			}
			m.items[info.Name] = info
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	mergeBuiltin(m)
	return m, nil
}

func (m *Manager) List() []Info {
	if m == nil {
		return nil
	}
	out := make([]Info, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) Get(name string) (Info, bool) {
	if m == nil {
		return Info{}, false
	}
	v, ok := m.items[name]
	return v, ok
}

// Load returns the playbook body with frontmatter stripped.
func (m *Manager) Load(name string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("playbook manager unavailable")
	}
	item, ok := m.items[name]
	if !ok {
		return "", fmt.Errorf("playbook not found: %s", name)
	}
	if content, ok := m.builtin[name]; ok && item.Path == builtinPath(name) {
		_, body := splitFrontmatter(strings.TrimSpace(content))
		return strings.TrimSpace(body), nil
	}
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return "", fmt.Errorf("read playbook: %w", err)
	}
	_, body := splitFrontmatter(strings.TrimSpace(string(data)))
	return strings.TrimSpace(body), nil
}

func parse(content, path string) Info {
	name := ""
	desc := ""
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "---") {
		front, _ := splitFrontmatter(trimmed)
		for _, line := range strings.Split(front, "\n") {
			line = strings.TrimSpace(line)
			lower := strings.ToLower(line)
			if strings.HasPrefix(lower, "name:") {
				name = strings.TrimSpace(line[len("name:"):])
			}
			if strings.HasPrefix(lower, "description:") {
				desc = strings.TrimSpace(line[len("description:"):])
			}
		}
	}
	if name == "" {
		name = filepath.Base(filepath.Dir(path))
	}
	if desc == "" {
		desc = firstParagraph(content)
	}
	if desc == "" {
		desc = "No description"
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Info{Name: name, Description: desc, Path: path}
}

func splitFrontmatter(content string) (string, string) {
	parts := strings.SplitN(content, "\n", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) != "---" {
		return "", content
	}
	rest := parts[1]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", content
	}
	return rest[:idx], rest[idx+4:]
}

func firstParagraph(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "---") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}
