package provider

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
ollamaRoleMap compresses convertMessages' switch.
*/
var ollamaRoleMap = map[string]func(string) api.Message{
	"system": func(text string) api.Message {
		return api.Message{
			Role:    "system",
			Content: text,
		}
	},
	"user": func(text string) api.Message {
		return api.Message{
			Role:    "user",
			Content: text,
		}
	},
	"developer": func(text string) api.Message {
		return api.Message{
			Role:    "user",
			Content: text,
		}
	},
	"agent": func(text string) api.Message {
		return api.Message{
			Role:    "assistant",
			Content: text,
		}
	},
	"assistant": func(text string) api.Message {
		return api.Message{
			Role:    "assistant",
			Content: text,
		}
	},
}

/*
OllamaProvider is a provider for a local Ollama instance.
*/
type OllamaProvider struct {
	client *api.Client
	model  string
}

type OllamaProviderOption func(*OllamaProvider)

func NewOllamaProvider(options ...OllamaProviderOption) *OllamaProvider {
	prvdr := &OllamaProvider{}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *OllamaProvider) Name() string {
	return "ollama"
}

func (prvdr *OllamaProvider) Generate(
	ctx context.Context, params *ProviderParams,
) (*Response, error) {
	if prvdr.client == nil {
		return nil, errors.ErrProviderNotConfigured
	}

	model := params.Model
	if model == "" {
		model = prvdr.model
	}

	stream := false

	req := &api.ChatRequest{
		Model:    model,
		Messages: prvdr.convertMessages(params.Messages),
		Stream:   &stream,
	}

	var (
		text  string
		usage *Usage
	)

	respFunc := func(resp api.ChatResponse) error {
		text += resp.Message.Content

		if resp.Done {
			usage = &Usage{
				InputTokens:  int64(resp.Metrics.PromptEvalCount),
				OutputTokens: int64(resp.Metrics.EvalCount),
			}
		}

		return nil
	}

	if err := prvdr.client.Chat(ctx, req, respFunc); err != nil {
		log.Error("chat request failed", "model", model, "error", err)
		return nil, err
	}

	return &Response{Text: text, Usage: usage}, nil
}

func (prvdr *OllamaProvider) convertMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "tool":
			out = append(out, api.Message{
				Role:    "user",
				Content: fmt.Sprintf("Tool result (%s): %s", msg.ToolCallID, msg.Content),
			})
		case len(msg.ToolCalls) > 0:
			out = append(out, api.Message{
				Role:    "assistant",
				Content: describeToolCalls(msg),
			})
		default:
			if fn, ok := ollamaRoleMap[msg.Role]; ok {
				out = append(out, fn(msg.Content))
			}
		}
	}

	return out
}

func WithOllamaClient() OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		client, err := api.ClientFromEnvironment()

		if err != nil {
			log.Error("failed to create ollama client", "error", err)
			return
		}

		prvdr.client = client
	}
}

func WithOllamaAPIClient(client *api.Client) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.client = client
	}
}

func WithOllamaModel(model string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.model = model
	}
}
