// Package engine drives the generate/execute state machine: it alternates
// between asking the model for a next action and running the requested
// tools, accumulating a transcript until a solution marker appears, the
// model stops calling tools, or the iteration cap is hit.
package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mlagent/internal/chat"
	"mlagent/internal/events"
	"mlagent/internal/history"
	"mlagent/internal/provider"
	"mlagent/internal/sandbox"
	"mlagent/internal/tools"
)

// ErrProvider marks transport-level model failures. They are the only
// fatal error kind: tool and sandbox failures feed back into the
// transcript instead.
var ErrProvider = errors.New("provider error")

// Record is one executed fragment's history entry. See history.Record.
type Record = history.Record

// RunResult carries everything a finished (or aborted) run produced.
// Partial results are always populated, even when Run returns an error.
type RunResult struct {
	Solution     string
	Plan         string
	Messages     []chat.Message
	Records      []Record
	Iterations   int
	LimitReached bool
}

// Engine runs one goal against one tool registry. It is not reusable
// across runs; build a fresh Engine per run so records start at index 0.
type Engine struct {
	provider      provider.Provider
	registry      *tools.Registry
	sink          events.Sink
	maxIterations int

	mu      sync.Mutex
	records []Record
}

func New(p provider.Provider, registry *tools.Registry, sink events.Sink, maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = 15
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Engine{provider: p, registry: registry, sink: sink, maxIterations: maxIterations}
}

// Observe is the execution observer to wire into an ExecuteTool. It
// appends one record per fragment and emits plot events for captured
// figures.
func (e *Engine) Observe(code string, res sandbox.Result) {
	e.mu.Lock()
	rec := Record{
		Index:    len(e.records),
		Code:     code,
		Stdout:   res.Stdout,
		Error:    res.Error,
		Figures:  res.Figures,
		Success:  res.Success,
		Duration: res.Duration,
	}
	e.records = append(e.records, rec)
	step := rec.Index
	e.mu.Unlock()

	// Plot events carry the full image so stream consumers can render
	// figures without touching the artifacts directory.
	for _, fig := range res.Figures {
		e.sink.Emit(events.New(events.TypePlot, step, map[string]any{
			"figure": fig.Seq,
			"format": "png",
			"image":  base64.StdEncoding.EncodeToString(fig.PNG),
		}))
	}
}

// Records returns a copy of the execution history so far.
func (e *Engine) Records() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Record(nil), e.records...)
}

// Run executes the loop for one user goal. systemPrompt seeds the
// transcript; see SystemPrompt for the standard rendering.
func (e *Engine) Run(ctx context.Context, systemPrompt, goal string) (*RunResult, error) {
	result := &RunResult{
		Messages: []chat.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: goal},
		},
	}

	for {
		result.Iterations++
		if result.Iterations > e.maxIterations {
			result.LimitReached = true
			result.Solution = "Maximum iterations reached. Please review the work done so far."
			result.Messages = append(result.Messages, chat.Message{
				Role:    "assistant",
				Content: "<solution>" + result.Solution + "</solution>",
			})
			e.sink.Emit(events.New(events.TypeStatus, result.Iterations, map[string]any{
				"state": "done", "reason": "iteration_limit",
			}))
			break
		}

		e.sink.Emit(events.New(events.TypeStatus, result.Iterations, map[string]any{
			"state":     "generate",
			"iteration": result.Iterations,
			"max":       e.maxIterations,
		}))

		resp, err := e.provider.Chat(ctx, provider.ChatRequest{
			Model:    e.provider.CurrentModel(),
			Messages: result.Messages,
			Tools:    e.registry.Definitions(),
		}, nil)
		if err != nil {
			result.Records = e.Records()
			e.sink.Emit(events.New(events.TypeError, result.Iterations, map[string]any{"error": err.Error()}))
			return result, fmt.Errorf("%w: %v", ErrProvider, err)
		}

		assistant := chat.Message{
			Role:      "assistant",
			Content:   resp.Content,
			Reasoning: resp.Reasoning,
			ToolCalls: resp.ToolCalls,
		}
		result.Messages = append(result.Messages, assistant)
		e.emitAssistant(resp.Content, result)

		if HasSolutionMarker(resp.Content) || len(resp.ToolCalls) == 0 {
			if body, ok := ExtractSolution(resp.Content); ok {
				result.Solution = body
			} else {
				result.Solution = resp.Content
			}
			e.sink.Emit(events.New(events.TypeStatus, result.Iterations, map[string]any{
				"state": "done", "reason": "solution",
			}))
			break
		}

		e.executeToolCalls(ctx, resp.ToolCalls, result)
	}

	result.Records = e.Records()
	return result, nil
}

// executeToolCalls runs each requested call in order and appends exactly
// one correlated tool-result message per request.
func (e *Engine) executeToolCalls(ctx context.Context, calls []chat.ToolCall, result *RunResult) {
	e.sink.Emit(events.New(events.TypeStatus, result.Iterations, map[string]any{"state": "execute_tools"}))
	for _, call := range calls {
		name := call.Function.Name
		if name == "execute_code" {
			var in struct {
				Code string `json:"code"`
			}
			if json.Unmarshal([]byte(call.Function.Arguments), &in) == nil && in.Code != "" {
				e.sink.Emit(events.New(events.TypeCode, result.Iterations, map[string]any{"code": in.Code}))
			}
		}

		text, err := e.registry.Execute(ctx, name, []byte(call.Function.Arguments))
		if err != nil {
			text = fmt.Sprintf("Error executing %s: %v", name, err)
		}
		result.Messages = append(result.Messages, chat.Message{
			Role:       "tool",
			Name:       name,
			ToolCallID: call.ID,
			Content:    text,
		})
	}
}

func (e *Engine) emitAssistant(content string, result *RunResult) {
	if content == "" {
		return
	}
	if plan, ok := ExtractPlan(content); ok {
		result.Plan = plan
		e.sink.Emit(events.New(events.TypePlan, result.Iterations, map[string]any{"plan": plan}))
	}
	e.sink.Emit(events.New(events.TypeAssistant, result.Iterations, map[string]any{"content": content}))
}
