// Package exttools runs external tool servers and surfaces them in the
// agent's tool registry. A tool server is a subprocess that reads one JSON
// request per line on stdin and writes one JSON response per line on
// stdout, so a team can plug in custom analysis helpers without rebuilding
// the binary.
package exttools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"mlagent/internal/config"
	"mlagent/internal/tools"
)

type Status string

const (
	StatusConfigured Status = "configured"
	StatusStarting   Status = "starting"
	StatusReady      Status = "ready"
	StatusDegraded   Status = "degraded"
)

// Server 一个外部工具子进程：按行读写 JSON
// Server is one external tool subprocess.
type Server struct {
	cfg         config.ExternalToolConfig
	status      Status
	lastError   string
	restartLeft int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
}

type Manager struct {
	servers map[string]*Server
}

// Snapshot is the observable state of one server, for status listings.
type Snapshot struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	TimeoutMS int    `json:"timeout_ms"`
}

func NewManager(cfg config.ToolsConfig) *Manager {
	m := &Manager{servers: map[string]*Server{}}
	for _, s := range cfg.External {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		m.servers[name] = &Server{
			cfg:         s,
			status:      StatusConfigured,
			restartLeft: 3,
		}
	}
	return m
}

// StartEnabled boots every enabled server. Failures degrade the individual
// server; they never abort the run.
func (m *Manager) StartEnabled(ctx context.Context) {
	for _, s := range m.servers {
		if !s.cfg.Enabled {
			continue
		}
		_ = s.Start(ctx)
	}
}

func (m *Manager) Close() {
	for _, s := range m.servers {
		s.mu.Lock()
		s.stopLocked()
		s.mu.Unlock()
	}
}

// Tools returns one registry tool per enabled server, sorted by name.
func (m *Manager) Tools() []tools.Tool {
	out := make([]tools.Tool, 0, len(m.servers))
	for _, s := range m.servers {
		if !s.cfg.Enabled {
			continue
		}
		out = append(out, &serverTool{server: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (m *Manager) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(m.servers))
	for _, s := range m.servers {
		s.mu.Lock()
		out = append(out, Snapshot{
			Name:      s.cfg.Name,
			Enabled:   s.cfg.Enabled,
			Status:    s.status,
			Error:     s.lastError,
			TimeoutMS: s.cfg.TimeoutMS,
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) ToolName() string {
	return "ext_" + sanitizeName(s.cfg.Name)
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.status = StatusConfigured
		return nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.status = StatusReady
		return nil
	}
	if len(s.cfg.Command) == 0 {
		s.status = StatusDegraded
		s.lastError = "missing command"
		return fmt.Errorf("external tool %s: command empty", s.cfg.Name)
	}

	s.status = StatusStarting
	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	for k, v := range s.cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return s.failLocked(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.failLocked(err)
	}
	if err := cmd.Start(); err != nil {
		return s.failLocked(err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.status = StatusReady
	s.lastError = ""
	return nil
}

// Call sends one request line and waits for one response line.
func (s *Server) Call(ctx context.Context, input map[string]any) (string, error) {
	s.mu.Lock()
	if s.status != StatusReady || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		if err := s.Start(ctx); err != nil {
			return "", err
		}
		s.mu.Lock()
	}

	line, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	if _, err := s.stdin.Write(append(line, '\n')); err != nil {
		s.markErrorLocked(fmt.Errorf("write request: %w", err))
		s.mu.Unlock()
		return "", err
	}

	reader := s.stdout
	timeout := s.cfg.TimeoutMS
	if timeout <= 0 {
		timeout = 5000
	}
	s.mu.Unlock()

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, rerr := reader.ReadString('\n')
		ch <- result{line: strings.TrimSpace(resp), err: rerr}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Duration(timeout) * time.Millisecond):
		s.mu.Lock()
		s.markErrorLocked(fmt.Errorf("timeout after %dms", timeout))
		s.mu.Unlock()
		return "", fmt.Errorf("external tool %s: timeout", s.cfg.Name)
	case r := <-ch:
		if r.err != nil {
			s.mu.Lock()
			s.markErrorLocked(fmt.Errorf("read response: %w", r.err))
			s.mu.Unlock()
			return "", r.err
		}
		return r.line, nil
	}
}

func (s *Server) failLocked(err error) error {
	s.status = StatusDegraded
	s.lastError = err.Error()
	return err
}

func (s *Server) markErrorLocked(err error) {
	s.lastError = err.Error()
	s.status = StatusDegraded
	// A few automatic restarts, then stay degraded.
	if s.restartLeft > 0 {
		s.restartLeft--
		s.stopLocked()
		s.status = StatusConfigured
	}
}

func (s *Server) stopLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_, _ = s.cmd.Process.Wait()
	}
	s.stdin = nil
	s.stdout = nil
	s.cmd = nil
}

func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
