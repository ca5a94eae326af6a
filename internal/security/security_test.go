package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyzeCode(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		blocked bool
	}{
		{"empty", "   ", false},
		{"plain analysis", "df.describe()\nprint(df.shape)", false},
		{"plot", "import matplotlib.pyplot as plt\nplt.plot([1,2])", false},
		{"os system", `import os; os.system("rm -rf /tmp/x")`, true},
		{"subprocess", `import subprocess; subprocess.run(["ls"])`, true},
		{"rmtree", `import shutil; shutil.rmtree("data")`, true},
		{"unlink", `import os; os.unlink("/etc/passwd")`, true},
		{"dunder import", `__import__("os").getcwd()`, true},
		{"mentions os.path", "import os.path\nprint(os.path.join('a', 'b'))", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			risk := AnalyzeCode(tc.code)
			if risk.Blocked != tc.blocked {
				t.Fatalf("AnalyzeCode(%q).Blocked = %v, want %v (reason %q)", tc.code, risk.Blocked, tc.blocked, risk.Reason)
			}
			if risk.Blocked && risk.Reason == "" {
				t.Fatal("blocked risk must carry a reason")
			}
		})
	}
}

func TestWorkspaceResolve(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspace(root)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	got, err := ws.Resolve("runs/20240101_000000_iris")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rel, err := filepath.Rel(ws.Root(), got)
	if err != nil || rel != filepath.Join("runs", "20240101_000000_iris") {
		t.Fatalf("resolved to %q (rel %q)", got, rel)
	}

	if _, err := ws.Resolve("../outside"); !errors.Is(err, ErrOutsideRoot) {
		t.Fatalf("escape via ..: got %v, want ErrOutsideRoot", err)
	}
	if _, err := ws.Resolve("a/../../outside"); !errors.Is(err, ErrOutsideRoot) {
		t.Fatalf("escape via nested ..: got %v, want ErrOutsideRoot", err)
	}

	if got, err := ws.Resolve(""); err != nil || got != ws.Root() {
		t.Fatalf("empty path: got %q, %v", got, err)
	}
}

func TestWorkspaceResolveSymlinkedParent(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.MkdirAll(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	ws, err := NewWorkspace(link)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	got, err := ws.Resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("Resolve through symlinked root: %v", err)
	}
	if filepath.Dir(filepath.Dir(got)) != ws.Root() {
		t.Fatalf("resolved %q not under root %q", got, ws.Root())
	}
}
