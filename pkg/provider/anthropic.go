package provider

import (
	"context"
	"fmt"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/charmbracelet/log"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
anthropicRoleMap compresses convertMessages' switch.
*/
var anthropicRoleMap = map[string]func(string) anthropic.MessageParam{
	"user": func(text string) anthropic.MessageParam {
		return anthropic.NewUserMessage(anthropic.NewTextBlock(text))
	},
	"developer": func(text string) anthropic.MessageParam {
		return anthropic.NewUserMessage(anthropic.NewTextBlock(text))
	},
	"agent": func(text string) anthropic.MessageParam {
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(text))
	},
	"assistant": func(text string) anthropic.MessageParam {
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(text))
	},
}

const anthropicMaxTokens = 4096

/*
AnthropicProvider is a provider for the Anthropic API.
*/
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

type AnthropicProviderOption func(*AnthropicProvider)

func NewAnthropicProvider(options ...AnthropicProviderOption) *AnthropicProvider {
	prvdr := &AnthropicProvider{}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *AnthropicProvider) Name() string {
	return "anthropic"
}

func (prvdr *AnthropicProvider) Generate(
	ctx context.Context, params *ProviderParams,
) (*Response, error) {
	if prvdr.client == nil {
		return nil, errors.ErrProviderNotConfigured
	}

	model := params.Model
	if model == "" {
		model = prvdr.model
	}

	system, converted := prvdr.convertMessages(params.Messages)

	message, err := prvdr.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  converted,
	})

	if err != nil {
		log.Error("message request failed", "model", model, "error", err)
		return nil, err
	}

	var text string

	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += textBlock.Text
		}
	}

	return &Response{
		Text: text,
		Usage: &Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}, nil
}

// convertMessages splits out system turns, which Anthropic takes separately
// from the conversation itself.
func (prvdr *AnthropicProvider) convertMessages(
	messages []Message,
) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam

	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case msg.Role == "tool":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Tool result (%s): %s", msg.ToolCallID, msg.Content),
			)))
		case len(msg.ToolCalls) > 0:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(
				describeToolCalls(msg),
			)))
		default:
			if fn, ok := anthropicRoleMap[msg.Role]; ok {
				out = append(out, fn(msg.Content))
			}
		}
	}

	return system, out
}

func describeToolCalls(msg Message) string {
	text := msg.Content

	for _, call := range msg.ToolCalls {
		if text != "" {
			text += "\n"
		}

		text += fmt.Sprintf("Called tool %s with %s", call.Name, call.Arguments)
	}

	return text
}

func WithAnthropicClient() AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		client := anthropic.NewClient(
			option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
		)

		prvdr.client = &client
	}
}

func WithAnthropicCredentials(apiKey, baseURL string) AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		opts := []option.RequestOption{option.WithAPIKey(apiKey)}

		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}

		client := anthropic.NewClient(opts...)
		prvdr.client = &client
	}
}

func WithAnthropicModel(model string) AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		prvdr.model = model
	}
}
