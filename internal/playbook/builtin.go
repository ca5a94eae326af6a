package playbook

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed builtin
var builtinFS embed.FS

// mergeBuiltin adds the embedded playbooks, skipping any name a user
// directory already provides.
func mergeBuiltin(m *Manager) {
	_ = fs.WalkDir(builtinFS, "builtin", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(d.Name(), "PLAYBOOK.md") {
			return nil
		}
		data, rerr := builtinFS.ReadFile(p)
		if rerr != nil {
			return nil
		}
		info := parse(string(data), p)
		if _, exists := m.items[info.Name]; exists {
			return nil
		}
		info.Path = builtinPath(info.Name)
		m.items[info.Name] = info
		m.builtin[info.Name] = string(data)
		return nil
	})
}

func builtinPath(name string) string {
	return "builtin:" + path.Join("playbook", name)
}
