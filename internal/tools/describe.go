package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"mlagent/internal/chat"
	"mlagent/internal/dataset"
)

// DescribeTool 数据集画像工具：给模型一份结构化的数据概览
// DescribeTool summarizes a dataset for the model: shape, column types,
// missing values, numeric statistics, and a preview. Resolver failures are
// reported as tool text so the model can correct the identifier.
type DescribeTool struct {
	resolver *dataset.Resolver
}

func NewDescribeTool(resolver *dataset.Resolver) *DescribeTool {
	return &DescribeTool{resolver: resolver}
}

func (t *DescribeTool) Name() string {
	return "describe_dataset"
}

func (t *DescribeTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Get comprehensive information about a dataset including columns, types, missing values, and preview. Use this first to understand the structure before any analysis.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"identifier": map[string]any{
						"type":        "string",
						"description": "Dataset name or path to the dataset file",
					},
				},
				"required": []string{"identifier"},
			},
		},
	}
}

func (t *DescribeTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("describe_dataset args: %w", err)
	}
	path, err := t.resolver.Resolve(in.Identifier)
	if err != nil {
		return fmt.Sprintf("Error getting dataset info: %v", err), nil
	}
	table, err := dataset.LoadTable(path)
	if err != nil {
		return fmt.Sprintf("Error getting dataset info: %v", err), nil
	}
	return table.Describe(), nil
}
