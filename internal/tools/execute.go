package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mlagent/internal/chat"
	"mlagent/internal/sandbox"
)

// ExecuteTool 在会话沙箱里跑一段代码并把结果格式化给模型
// ExecuteTool runs one code fragment in the session sandbox. The model sees
// a formatted text result; raw figures travel out-of-band through the
// observer so the notebook assembly gets lossless payloads.
type ExecuteTool struct {
	session  *sandbox.Session
	timeout  time.Duration
	observer func(code string, res sandbox.Result)
}

// NewExecuteTool wires the tool to a session. observer may be nil; when set
// it is called once per execution, before the formatted result is returned.
func NewExecuteTool(session *sandbox.Session, timeout time.Duration, observer func(code string, res sandbox.Result)) *ExecuteTool {
	return &ExecuteTool{session: session, timeout: timeout, observer: observer}
}

func (t *ExecuteTool) Name() string {
	return "execute_code"
}

func (t *ExecuteTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Execute Python code in a persistent namespace. Variables and imports persist across calls. The dataset is pre-loaded as a pandas DataFrame (variable 'df'). pandas, numpy, matplotlib and seaborn are pre-imported. Plots created with matplotlib are captured automatically when plt.show() is called.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{
						"type":        "string",
						"description": "Complete, executable Python code",
					},
				},
				"required": []string{"code"},
			},
		},
	}
}

func (t *ExecuteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("execute_code args: %w", err)
	}
	res := t.session.Execute(ctx, in.Code, t.timeout)
	if t.observer != nil {
		t.observer(in.Code, res)
	}
	return FormatResult(res), nil
}

// FormatResult renders a sandbox result as the single textual tool result
// the model receives.
func FormatResult(res sandbox.Result) string {
	var parts []string
	if res.Stdout != "" {
		parts = append(parts, "Output:\n"+res.Stdout)
	}
	if res.Error != "" {
		parts = append(parts, "Error:\n"+res.Error)
	}
	if n := len(res.Figures); n > 0 {
		parts = append(parts, fmt.Sprintf("Generated %d plot(s)", n))
	}
	if len(parts) == 0 {
		return "Execution completed successfully (no output)"
	}
	return strings.Join(parts, "\n\n")
}
