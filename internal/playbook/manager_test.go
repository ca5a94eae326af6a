package playbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverBuiltins(t *testing.T) {
	m, err := Discover(nil)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, info := range m.List() {
		names = append(names, info.Name)
	}
	for _, want := range []string{"eda", "modeling"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("builtin %q missing from %v", want, names)
		}
	}

	body, err := m.Load("eda")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(body, "---\nname:") {
		t.Fatal("Load must strip frontmatter")
	}
	if !strings.Contains(body, "Exploratory data analysis") {
		t.Fatalf("body = %q", body)
	}
}

func TestDiscoverUserOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "eda")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: eda\ndescription: custom EDA\n---\n\nLook at the data twice.\n"
	if err := os.WriteFile(filepath.Join(sub, "PLAYBOOK.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Discover([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	info, ok := m.Get("eda")
	if !ok || info.Description != "custom EDA" {
		t.Fatalf("info = %+v, ok = %v", info, ok)
	}
	body, err := m.Load("eda")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "Look at the data twice.") {
		t.Fatalf("body = %q", body)
	}
}

func TestParseFallbacks(t *testing.T) {
	info := parse("Just a body with no frontmatter.\n\nMore text.\n", "/tmp/playbooks/timeseries/PLAYBOOK.md")
	if info.Name != "timeseries" {
		t.Fatalf("name = %q", info.Name)
	}
	if info.Description != "Just a body with no frontmatter." {
		t.Fatalf("description = %q", info.Description)
	}
}

func TestDiscoverDuplicateNamesFail(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
		content := "---\nname: same\n---\n\nbody\n"
		if err := os.WriteFile(filepath.Join(p, "PLAYBOOK.md"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Discover([]string{dir}); err == nil {
		t.Fatal("duplicate playbook names must fail discovery")
	}
}
