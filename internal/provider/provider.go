package provider

import (
	"context"

	"mlagent/internal/chat"
)

// ChatRequest 封装一次模型请求
// ChatRequest wraps a single model call
type ChatRequest struct {
	Model       string
	Messages    []chat.Message
	Tools       []chat.ToolDef
	Temperature *float64
	MaxTokens   int
}

// StreamCallbacks 流式响应的回调集
// StreamCallbacks is the callback set for streaming responses
type StreamCallbacks struct {
	OnTextChunk      func(chunk string)
	OnReasoningChunk func(chunk string)
	OnUsage          func(usage Usage)
}

// Usage token 用量统计
// Usage reports token consumption
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse 完整响应
// ChatResponse is the complete response
type ChatResponse struct {
	Content      string
	Reasoning    string
	ToolCalls    []chat.ToolCall
	FinishReason string
	Usage        Usage
}

// Provider 模型提供方接口；返回的 error 属于传输层故障，由调用方决定是否致命
// Provider is the model backend interface. A returned error is a transport
// failure; the caller decides whether it is fatal.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest, cb *StreamCallbacks) (ChatResponse, error)
	Name() string
	CurrentModel() string
	SetModel(model string) error
}
