package exttools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"mlagent/internal/config"
)

func TestManagerToolsAndSnapshots(t *testing.T) {
	m := NewManager(config.ToolsConfig{External: []config.ExternalToolConfig{
		{Name: "Feature Store", Enabled: true, Command: []string{"cat"}},
		{Name: "disabled-one", Enabled: false, Command: []string{"cat"}},
		{Name: "   ", Enabled: true, Command: []string{"cat"}},
	}})
	defer m.Close()

	ts := m.Tools()
	if len(ts) != 1 {
		t.Fatalf("tools = %d, want 1", len(ts))
	}
	if ts[0].Name() != "ext_feature_store" {
		t.Fatalf("tool name = %q", ts[0].Name())
	}
	def := ts[0].Definition()
	if def.Type != "function" || def.Function.Name != "ext_feature_store" {
		t.Fatalf("definition = %+v", def)
	}

	snaps := m.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snaps))
	}
	for _, snap := range snaps {
		if snap.Status != StatusConfigured {
			t.Fatalf("%s status = %s before start", snap.Name, snap.Status)
		}
	}
}

func TestServerCallRoundTrip(t *testing.T) {
	// cat echoes the request line back, which is enough to verify the
	// one-line-in one-line-out protocol.
	m := NewManager(config.ToolsConfig{External: []config.ExternalToolConfig{
		{Name: "echo", Enabled: true, Command: []string{"cat"}, TimeoutMS: 2000},
	}})
	defer m.Close()

	ctx := context.Background()
	m.StartEnabled(ctx)

	ts := m.Tools()
	if len(ts) != 1 {
		t.Fatalf("tools = %d", len(ts))
	}
	out, err := ts[0].Execute(ctx, json.RawMessage(`{"input":{"query":"mean_radius"}}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var resp struct {
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response %q: %v", out, err)
	}
	if resp.Input["query"] != "mean_radius" {
		t.Fatalf("round trip lost input: %q", out)
	}
}

func TestServerMissingCommand(t *testing.T) {
	m := NewManager(config.ToolsConfig{External: []config.ExternalToolConfig{
		{Name: "broken", Enabled: true},
	}})
	defer m.Close()

	m.StartEnabled(context.Background())
	snaps := m.Snapshots()
	if len(snaps) != 1 || snaps[0].Status != StatusDegraded {
		t.Fatalf("snapshots = %+v", snaps)
	}
	if !strings.Contains(snaps[0].Error, "missing command") {
		t.Fatalf("error = %q", snaps[0].Error)
	}
}
