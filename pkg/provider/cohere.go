package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
CohereProvider is a provider for the Cohere API.
*/
type CohereProvider struct {
	client *cohereclient.Client
	model  string
}

type CohereProviderOption func(*CohereProvider)

func NewCohereProvider(options ...CohereProviderOption) *CohereProvider {
	prvdr := &CohereProvider{}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *CohereProvider) Name() string {
	return "cohere"
}

func (prvdr *CohereProvider) Generate(
	ctx context.Context, params *ProviderParams,
) (*Response, error) {
	if prvdr.client == nil {
		return nil, errors.ErrProviderNotConfigured
	}

	model := params.Model
	if model == "" {
		model = prvdr.model
	}

	response, err := prvdr.client.Chat(ctx, &cohere.ChatRequest{
		Model:   &model,
		Message: prvdr.convertMessages(params.Messages),
	})

	if err != nil {
		log.Error("chat request failed", "model", model, "error", err)
		return nil, err
	}

	return &Response{
		Text:  response.Text,
		Usage: cohereUsage(response),
	}, nil
}

// convertMessages flattens the conversation into a single prompt. Cohere's
// chat endpoint takes the whole message string, so it is built up.
func (prvdr *CohereProvider) convertMessages(messages []Message) string {
	builder := &strings.Builder{}

	for _, msg := range messages {
		switch {
		case msg.Role == "tool":
			fmt.Fprintf(builder, "Tool result (%s): %s\n", msg.ToolCallID, msg.Content)
		case len(msg.ToolCalls) > 0:
			fmt.Fprintf(builder, "%s: %s\n", msg.Role, describeToolCalls(msg))
		default:
			fmt.Fprintf(builder, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	return builder.String()
}

func cohereUsage(response *cohere.NonStreamedChatResponse) *Usage {
	if response.Meta == nil || response.Meta.Tokens == nil {
		return nil
	}

	usage := &Usage{}

	if response.Meta.Tokens.InputTokens != nil {
		usage.InputTokens = int64(*response.Meta.Tokens.InputTokens)
	}

	if response.Meta.Tokens.OutputTokens != nil {
		usage.OutputTokens = int64(*response.Meta.Tokens.OutputTokens)
	}

	return usage
}

func WithCohereClient() CohereProviderOption {
	return func(prvdr *CohereProvider) {
		prvdr.client = cohereclient.NewClient(
			cohereclient.WithToken(os.Getenv("COHERE_API_KEY")),
		)
	}
}

func WithCohereToken(token string) CohereProviderOption {
	return func(prvdr *CohereProvider) {
		prvdr.client = cohereclient.NewClient(
			cohereclient.WithToken(token),
		)
	}
}

func WithCohereModel(model string) CohereProviderOption {
	return func(prvdr *CohereProvider) {
		prvdr.model = model
	}
}
