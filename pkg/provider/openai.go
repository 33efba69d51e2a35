package provider

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
roleMap compresses convertMessages' switch.
*/
var roleMap = map[string]func(string) openai.ChatCompletionMessageParamUnion{
	"system":    openai.SystemMessage[string],
	"user":      openai.UserMessage[string],
	"developer": openai.UserMessage[string],
	"agent":     openai.AssistantMessage[string],
	"assistant": openai.AssistantMessage[string],
}

/*
OpenAIProvider is a provider for the OpenAI API and for any endpoint that
speaks the same chat completions protocol, which covers Qwen via DashScope.
*/
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

type OpenAIProviderOption func(*OpenAIProvider)

func NewOpenAIProvider(options ...OpenAIProviderOption) *OpenAIProvider {
	prvdr := &OpenAIProvider{}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *OpenAIProvider) Name() string {
	return "openai"
}

func (prvdr *OpenAIProvider) Generate(
	ctx context.Context, params *ProviderParams,
) (*Response, error) {
	if prvdr.client == nil {
		return nil, errors.ErrProviderNotConfigured
	}

	model := params.Model
	if model == "" {
		model = prvdr.model
	}

	completion, err := prvdr.client.Chat.Completions.New(
		ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(model),
			Messages: prvdr.convertMessages(params.Messages),
		},
	)

	if err != nil {
		log.Error("completion request failed", "model", model, "error", err)
		return nil, err
	}

	if len(completion.Choices) == 0 {
		return nil, errors.ErrInternal.WithMessagef("completion returned no choices")
	}

	return &Response{
		Text: completion.Choices[0].Message.Content,
		Usage: &Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func (prvdr *OpenAIProvider) convertMessages(
	messages []Message,
) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "tool":
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case len(msg.ToolCalls) > 0:
			out = append(out, assistantToolCalls(msg))
		default:
			if fn, ok := roleMap[msg.Role]; ok {
				out = append(out, fn(msg.Content))
			}
		}
	}

	return out
}

func assistantToolCalls(msg Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))

	for _, call := range msg.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}

	param := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}

	if msg.Content != "" {
		param.Content.OfString = openai.String(msg.Content)
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &param}
}

func WithOpenAIClient() OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		client := openai.NewClient(
			option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
		)

		prvdr.client = &client
	}
}

func WithOpenAICredentials(apiKey, baseURL string) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		opts := []option.RequestOption{option.WithAPIKey(apiKey)}

		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}

		client := openai.NewClient(opts...)
		prvdr.client = &client
	}
}

func WithOpenAIModel(model string) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		prvdr.model = model
	}
}
