package provider

import (
	"context"
)

/*
Message is a single turn of model input. Tool calls and tool results ride
along so a recorded exchange can be replayed to the model verbatim.
*/
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ProviderParams struct {
	Model    string
	Messages []Message
	Stream   bool
}

/*
Usage reports token consumption as the vendor measured it.
*/
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type Response struct {
	Text  string
	Usage *Usage
}

type Interface interface {
	Name() string
	Generate(ctx context.Context, params *ProviderParams) (*Response, error)
}
