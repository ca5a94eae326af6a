package sandbox

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

//go:embed driver.py
var driverScript string

// killGrace is how long past the fragment timeout the parent waits for the
// worker's in-process alarm before killing the worker outright.
const killGrace = 5 * time.Second

// Figure is one captured plot, numbered per session in emission order.
type Figure struct {
	Seq int    // 1-based, monotonic within the session
	PNG []byte // self-contained image payload
}

// Result reports everything observable from one fragment execution. All
// failure modes are carried in the struct; Execute never surfaces them as
// Go errors so the caller can always feed the outcome back to the model.
type Result struct {
	Stdout   string
	Error    string
	Figures  []Figure
	Success  bool
	Duration time.Duration
}

// TimedOut reports whether the result is a fragment timeout.
func (r Result) TimedOut() bool {
	return !r.Success && r.Error != "" && timeoutPattern.MatchString(r.Error)
}

type request struct {
	ID      int    `json:"id"`
	Code    string `json:"code"`
	Timeout int    `json:"timeout"`
}

type response struct {
	ID     int      `json:"id"`
	Output string   `json:"output"`
	Error  string   `json:"error"`
	Plots  []string `json:"plots"`
	OK     bool     `json:"ok"`
}

// Session 会话级执行上下文：一个常驻 python worker 持有一个持久命名空间
// Session is one session's execution context: a resident python worker
// holding one persistent namespace. Fragments executed through the same
// Session share names; distinct Sessions share nothing.
type Session struct {
	pythonBin   string
	outputLimit int

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     *json.Encoder
	responses chan response
	stderr    *cappedBuffer
	nextID    int
	figureSeq int
	dead      bool
}

// NewSession creates an unstarted session. pythonBin defaults to python3.
func NewSession(pythonBin string, outputLimitBytes int) *Session {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	if outputLimitBytes <= 0 {
		outputLimitBytes = 1 << 20
	}
	return &Session{pythonBin: pythonBin, outputLimit: outputLimitBytes}
}

// Start launches the worker process. Idempotent while the worker is alive.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	if s.cmd != nil && !s.dead {
		return nil
	}
	cmd := exec.CommandContext(ctx, s.pythonBin, "-u", "-c", driverScript)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout: %w", err)
	}
	stderr := newCappedBuffer(s.outputLimit)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.pythonBin, err)
	}

	responses := make(chan response, 4)
	go func() {
		defer close(responses)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		for scanner.Scan() {
			var resp response
			if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
				continue
			}
			responses <- resp
		}
	}()

	s.cmd = cmd
	s.stdin = json.NewEncoder(stdin)
	s.responses = responses
	s.stderr = stderr
	s.dead = false
	return nil
}

// Execute runs one code fragment against the persistent namespace. The
// fragment-level timeout fires inside the worker and preserves the
// namespace; only if the worker stops answering is it killed, after which
// the namespace is lost and the session restarts fresh on the next call.
func (s *Session) Execute(ctx context.Context, code string, timeout time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.startLocked(context.Background()); err != nil {
		return Result{Error: fmt.Sprintf("sandbox unavailable: %v", err), Duration: time.Since(start)}
	}

	s.nextID++
	req := request{ID: s.nextID, Code: code, Timeout: int(timeout / time.Second)}
	if err := s.stdin.Encode(req); err != nil {
		s.killLocked()
		return Result{Error: fmt.Sprintf("sandbox write failed: %v", err), Duration: time.Since(start)}
	}

	deadline := time.NewTimer(timeout + killGrace)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			s.killLocked()
			return Result{Error: fmt.Sprintf("execution canceled: %v", ctx.Err()), Duration: time.Since(start)}
		case <-deadline.C:
			// The in-worker alarm did not fire (e.g. a C extension is
			// stuck); the namespace cannot be saved.
			s.killLocked()
			return Result{
				Error:    fmt.Sprintf("Execution timed out after %d seconds; execution context was reset", int(timeout/time.Second)),
				Duration: time.Since(start),
			}
		case resp, ok := <-s.responses:
			if !ok {
				s.killLocked()
				return Result{Error: fmt.Sprintf("sandbox worker exited: %s", s.stderr.String()), Duration: time.Since(start)}
			}
			if resp.ID != req.ID {
				continue // stale response from an earlier killed call
			}
			return s.toResult(resp, time.Since(start))
		}
	}
}

func (s *Session) toResult(resp response, dur time.Duration) Result {
	res := Result{
		Stdout:   resp.Output,
		Error:    resp.Error,
		Success:  resp.OK,
		Duration: dur,
	}
	for _, b64 := range resp.Plots {
		png, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			continue
		}
		s.figureSeq++
		res.Figures = append(res.Figures, Figure{Seq: s.figureSeq, PNG: png})
	}
	return res
}

// FigureCount returns how many figures the session has captured so far.
func (s *Session) FigureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.figureSeq
}

func (s *Session) killLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.dead = true
}

// Close terminates the worker. The session may be restarted by a later
// Execute, with a fresh namespace.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return nil
}
