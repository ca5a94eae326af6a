package tools

import (
	"context"
	"encoding/json"

	"mlagent/internal/chat"
)

type Tool interface {
	Name() string
	Definition() chat.ToolDef
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}
