package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	deepseek "github.com/cohesion-org/deepseek-go"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
deepseekRoleMap compresses convertMessages' switch.
*/
var deepseekRoleMap = map[string]func(string) deepseek.ChatCompletionMessage{
	"system": func(text string) deepseek.ChatCompletionMessage {
		return deepseek.ChatCompletionMessage{
			Role:    deepseek.ChatMessageRoleSystem,
			Content: text,
		}
	},
	"user": func(text string) deepseek.ChatCompletionMessage {
		return deepseek.ChatCompletionMessage{
			Role:    deepseek.ChatMessageRoleUser,
			Content: text,
		}
	},
	"developer": func(text string) deepseek.ChatCompletionMessage {
		return deepseek.ChatCompletionMessage{
			Role:    deepseek.ChatMessageRoleUser,
			Content: text,
		}
	},
	"agent": func(text string) deepseek.ChatCompletionMessage {
		return deepseek.ChatCompletionMessage{
			Role:    deepseek.ChatMessageRoleAssistant,
			Content: text,
		}
	},
	"assistant": func(text string) deepseek.ChatCompletionMessage {
		return deepseek.ChatCompletionMessage{
			Role:    deepseek.ChatMessageRoleAssistant,
			Content: text,
		}
	},
}

/*
DeepseekProvider is a provider for the DeepSeek API.
*/
type DeepseekProvider struct {
	client *deepseek.Client
	model  string
}

type DeepseekProviderOption func(*DeepseekProvider)

func NewDeepseekProvider(options ...DeepseekProviderOption) *DeepseekProvider {
	prvdr := &DeepseekProvider{}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *DeepseekProvider) Name() string {
	return "deepseek"
}

func (prvdr *DeepseekProvider) Generate(
	ctx context.Context, params *ProviderParams,
) (*Response, error) {
	if prvdr.client == nil {
		return nil, errors.ErrProviderNotConfigured
	}

	model := params.Model
	if model == "" {
		model = prvdr.model
	}

	response, err := prvdr.client.CreateChatCompletion(
		ctx, &deepseek.ChatCompletionRequest{
			Model:    model,
			Messages: prvdr.convertMessages(params.Messages),
		},
	)

	if err != nil {
		log.Error("completion request failed", "model", model, "error", err)
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, errors.ErrInternal.WithMessagef("completion returned no choices")
	}

	return &Response{
		Text: response.Choices[0].Message.Content,
		Usage: &Usage{
			InputTokens:  int64(response.Usage.PromptTokens),
			OutputTokens: int64(response.Usage.CompletionTokens),
		},
	}, nil
}

func (prvdr *DeepseekProvider) convertMessages(
	messages []Message,
) []deepseek.ChatCompletionMessage {
	out := make([]deepseek.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "tool":
			out = append(out, deepseek.ChatCompletionMessage{
				Role:    deepseek.ChatMessageRoleUser,
				Content: fmt.Sprintf("Tool result (%s): %s", msg.ToolCallID, msg.Content),
			})
		case len(msg.ToolCalls) > 0:
			out = append(out, deepseek.ChatCompletionMessage{
				Role:    deepseek.ChatMessageRoleAssistant,
				Content: describeToolCalls(msg),
			})
		default:
			if fn, ok := deepseekRoleMap[msg.Role]; ok {
				out = append(out, fn(msg.Content))
			}
		}
	}

	return out
}

func WithDeepseekClient() DeepseekProviderOption {
	return func(prvdr *DeepseekProvider) {
		prvdr.client = deepseek.NewClient(os.Getenv("DEEPSEEK_API_KEY"))
	}
}

func WithDeepseekKey(apiKey string) DeepseekProviderOption {
	return func(prvdr *DeepseekProvider) {
		prvdr.client = deepseek.NewClient(apiKey)
	}
}

func WithDeepseekModel(model string) DeepseekProviderOption {
	return func(prvdr *DeepseekProvider) {
		prvdr.model = model
	}
}
