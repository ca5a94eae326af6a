package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mlagent/internal/chat"
	"mlagent/internal/dataset"
	"mlagent/internal/events"
	"mlagent/internal/provider"
	"mlagent/internal/sandbox"
	"mlagent/internal/tools"
)

type scriptedProvider struct {
	model     string
	responses []provider.ChatResponse
	callCount int
	requests  []provider.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest, _ *provider.StreamCallbacks) (provider.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.callCount >= len(p.responses) {
		return provider.ChatResponse{}, errors.New("no scripted response")
	}
	resp := p.responses[p.callCount]
	p.callCount++
	return resp, nil
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) CurrentModel() string { return p.model }
func (p *scriptedProvider) SetModel(model string) error {
	p.model = model
	return nil
}

type mockTool struct {
	name   string
	result string
	err    error
	calls  []string
}

func (m *mockTool) Name() string { return m.name }

func (m *mockTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:       m.name,
			Parameters: map[string]any{"type": "object"},
		},
	}
}

func (m *mockTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	m.calls = append(m.calls, string(args))
	return m.result, m.err
}

func toolCall(id, name, args string) chat.ToolCall {
	return chat.ToolCall{
		ID:   id,
		Type: "function",
		Function: chat.ToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestRunStopsOnSolutionMarker(t *testing.T) {
	exec := &mockTool{name: "execute_code", result: "Output:\n42\n"}
	p := &scriptedProvider{
		model: "gpt-5",
		responses: []provider.ChatResponse{
			{
				Content:   "<think>inspect first</think>",
				ToolCalls: []chat.ToolCall{toolCall("call_1", "execute_code", `{"code":"print(42)"}`)},
			},
			{Content: "<think>done</think>\n<solution>## Summary\nAnswer is 42.</solution>"},
		},
	}
	e := New(p, tools.NewRegistry(exec), nil, 15)

	res, err := e.Run(context.Background(), "system", "compute")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Solution != "## Summary\nAnswer is 42." {
		t.Fatalf("solution = %q", res.Solution)
	}
	if res.Iterations != 2 || res.LimitReached {
		t.Fatalf("iterations = %d, limit = %v", res.Iterations, res.LimitReached)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("tool calls = %d", len(exec.calls))
	}

	// transcript: system, user, assistant, tool, assistant
	roles := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		roles = append(roles, m.Role)
	}
	want := []string{"system", "user", "assistant", "tool", "assistant"}
	if strings.Join(roles, ",") != strings.Join(want, ",") {
		t.Fatalf("roles = %v", roles)
	}
	if res.Messages[3].ToolCallID != "call_1" || res.Messages[3].Content != "Output:\n42\n" {
		t.Fatalf("tool message = %+v", res.Messages[3])
	}
}

func TestRunStopsWithoutToolCalls(t *testing.T) {
	p := &scriptedProvider{
		model:     "gpt-5",
		responses: []provider.ChatResponse{{Content: "Nothing to execute here."}},
	}
	e := New(p, tools.NewRegistry(), nil, 15)
	res, err := e.Run(context.Background(), "system", "goal")
	if err != nil {
		t.Fatal(err)
	}
	if res.Solution != "Nothing to execute here." {
		t.Fatalf("solution = %q", res.Solution)
	}
	if res.Iterations != 1 {
		t.Fatalf("iterations = %d", res.Iterations)
	}
}

func TestRunIterationLimit(t *testing.T) {
	loop := provider.ChatResponse{
		Content:   "<think>keep going</think>",
		ToolCalls: []chat.ToolCall{toolCall("c", "execute_code", `{"code":"pass"}`)},
	}
	p := &scriptedProvider{model: "gpt-5", responses: []provider.ChatResponse{loop, loop, loop}}
	exec := &mockTool{name: "execute_code", result: "ok"}
	e := New(p, tools.NewRegistry(exec), nil, 3)

	res, err := e.Run(context.Background(), "system", "goal")
	if err != nil {
		t.Fatal(err)
	}
	if !res.LimitReached {
		t.Fatal("limit not reported")
	}
	if !strings.Contains(res.Solution, "Maximum iterations reached") {
		t.Fatalf("solution = %q", res.Solution)
	}
	if p.callCount != 3 {
		t.Fatalf("provider called %d times", p.callCount)
	}
	last := res.Messages[len(res.Messages)-1]
	if last.Role != "assistant" || !HasSolutionMarker(last.Content) {
		t.Fatalf("final message = %+v", last)
	}
}

func TestRunProviderFailureIsFatal(t *testing.T) {
	p := &scriptedProvider{model: "gpt-5"}
	e := New(p, tools.NewRegistry(), nil, 15)
	res, err := e.Run(context.Background(), "system", "goal")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || len(res.Messages) != 2 {
		t.Fatalf("partial result not returned: %+v", res)
	}
}

func TestRunToolErrorFeedsBack(t *testing.T) {
	exec := &mockTool{name: "execute_code", err: errors.New("boom")}
	p := &scriptedProvider{
		model: "gpt-5",
		responses: []provider.ChatResponse{
			{ToolCalls: []chat.ToolCall{toolCall("c1", "execute_code", `{"code":"x"}`)}},
			{Content: "<solution>recovered</solution>"},
		},
	}
	e := New(p, tools.NewRegistry(exec), nil, 15)
	res, err := e.Run(context.Background(), "system", "goal")
	if err != nil {
		t.Fatalf("tool failure escalated: %v", err)
	}
	var toolMsg chat.Message
	for _, m := range res.Messages {
		if m.Role == "tool" {
			toolMsg = m
		}
	}
	if !strings.Contains(toolMsg.Content, "Error executing execute_code: boom") {
		t.Fatalf("tool message = %q", toolMsg.Content)
	}
	if res.Solution != "recovered" {
		t.Fatalf("solution = %q", res.Solution)
	}
}

func TestRunEmitsPlanAndEvents(t *testing.T) {
	rec := &events.Recorder{}
	p := &scriptedProvider{
		model: "gpt-5",
		responses: []provider.ChatResponse{
			{
				Content:   "<plan>1. explore\n2. model</plan>\n<think>start</think>",
				ToolCalls: []chat.ToolCall{toolCall("c1", "execute_code", `{"code":"print(1)"}`)},
			},
			{Content: "<solution>done</solution>"},
		},
	}
	exec := &mockTool{name: "execute_code", result: "Output:\n1\n"}
	e := New(p, tools.NewRegistry(exec), rec, 15)
	res, err := e.Run(context.Background(), "system", "goal")
	if err != nil {
		t.Fatal(err)
	}
	if res.Plan != "1. explore\n2. model" {
		t.Fatalf("plan = %q", res.Plan)
	}
	if got := rec.ByType(events.TypePlan); len(got) != 1 {
		t.Fatalf("plan events = %d", len(got))
	}
	code := rec.ByType(events.TypeCode)
	if len(code) != 1 || code[0].Payload["code"] != "print(1)" {
		t.Fatalf("code events = %+v", code)
	}
	if got := rec.ByType(events.TypeAssistant); len(got) != 2 {
		t.Fatalf("assistant events = %d", len(got))
	}
}

func TestObserveAssignsContiguousIndices(t *testing.T) {
	rec := &events.Recorder{}
	e := New(&scriptedProvider{model: "gpt-5"}, tools.NewRegistry(), rec, 15)
	e.Observe("print(1)", sandbox.Result{Stdout: "1\n", Success: true})
	e.Observe("1/0", sandbox.Result{Error: "ZeroDivisionError"})
	e.Observe("plt.show()", sandbox.Result{Success: true, Figures: []sandbox.Figure{
		{Seq: 1, PNG: []byte("png-one")},
		{Seq: 2, PNG: []byte("png-two")},
	}})

	records := e.Records()
	if len(records) != 3 {
		t.Fatalf("records = %d", len(records))
	}
	for i, r := range records {
		if r.Index != i {
			t.Fatalf("record %d has index %d", i, r.Index)
		}
	}
	if records[1].Success || records[1].Error == "" {
		t.Fatalf("failed record = %+v", records[1])
	}

	plots := rec.ByType(events.TypePlot)
	if len(plots) != 2 {
		t.Fatalf("plot events = %d", len(plots))
	}
	for i, want := range [][]byte{[]byte("png-one"), []byte("png-two")} {
		if plots[i].Payload["figure"] != i+1 {
			t.Fatalf("plot %d figure = %v", i, plots[i].Payload["figure"])
		}
		if plots[i].Payload["format"] != "png" {
			t.Fatalf("plot %d format = %v", i, plots[i].Payload["format"])
		}
		b64, ok := plots[i].Payload["image"].(string)
		if !ok || b64 == "" {
			t.Fatalf("plot %d carries no image payload: %+v", i, plots[i].Payload)
		}
		img, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || !bytes.Equal(img, want) {
			t.Fatalf("plot %d image = %q (%v)", i, img, err)
		}
	}
}

func TestExtractTags(t *testing.T) {
	content := "<plan>P</plan>\n<think>T</think>\n<SOLUTION>S</SOLUTION>"
	if plan, ok := ExtractPlan(content); !ok || plan != "P" {
		t.Fatalf("plan = %q %v", plan, ok)
	}
	if think, ok := ExtractThink(content); !ok || think != "T" {
		t.Fatalf("think = %q %v", think, ok)
	}
	if sol, ok := ExtractSolution(content); !ok || sol != "S" {
		t.Fatalf("solution = %q %v", sol, ok)
	}
	if _, ok := ExtractSolution("no marker"); ok {
		t.Fatal("false positive solution")
	}
	if sol, ok := ExtractSolution("<solution>unclosed"); !ok || !strings.Contains(sol, "unclosed") {
		t.Fatalf("unclosed solution = %q %v", sol, ok)
	}
}

func TestSystemPromptMentionsBindings(t *testing.T) {
	bindings := []dataset.Binding{
		{Name: "df_train", PathVar: "df_train_path", Path: "/data/train.csv"},
	}
	prompt := SystemPrompt(bindings, true)
	for _, needle := range []string{"df_train", "/data/train.csv", "<plan>", "describe_dataset", "execute_code", "<solution>"} {
		if !strings.Contains(prompt, needle) {
			t.Fatalf("prompt missing %q", needle)
		}
	}
	noPlan := SystemPrompt(bindings, false)
	if strings.Contains(noPlan, "PLANNING REQUIRED") {
		t.Fatal("planning section present when disabled")
	}
}
