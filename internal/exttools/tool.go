package exttools

import (
	"context"
	"encoding/json"
	"fmt"

	"mlagent/internal/chat"
)

// serverTool adapts one external server to the agent tool interface. The
// model's arguments object is forwarded verbatim as the request input.
type serverTool struct {
	server *Server
}

func (t *serverTool) Name() string {
	return t.server.ToolName()
}

func (t *serverTool) Definition() chat.ToolDef {
	desc := t.server.cfg.Description
	if desc == "" {
		desc = fmt.Sprintf("External tool %q.", t.server.cfg.Name)
	}
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: desc,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "object",
						"description": "Arguments forwarded to the external tool",
					},
				},
				"required": []string{"input"},
			},
		},
	}
}

func (t *serverTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed struct {
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return t.server.Call(ctx, parsed.Input)
}
