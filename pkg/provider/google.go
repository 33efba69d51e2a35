package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
googleRoleMap compresses convertMessages' switch.
*/
var googleRoleMap = map[string]func(string) *genai.Content{
	"user": func(text string) *genai.Content {
		return &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}}
	},
	"developer": func(text string) *genai.Content {
		return &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}}
	},
	"agent": func(text string) *genai.Content {
		return &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}
	},
	"assistant": func(text string) *genai.Content {
		return &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}
	},
}

/*
GoogleProvider is a provider for the Gemini API.
*/
type GoogleProvider struct {
	client *genai.Client
	apiKey string
	model  string
}

type GoogleProviderOption func(*GoogleProvider)

func NewGoogleProvider(options ...GoogleProviderOption) (*GoogleProvider, error) {
	prvdr := &GoogleProvider{}

	for _, option := range options {
		option(prvdr)
	}

	if prvdr.client == nil {
		apiKey := prvdr.apiKey

		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}

		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})

		if err != nil {
			return nil, err
		}

		prvdr.client = client
	}

	return prvdr, nil
}

func (prvdr *GoogleProvider) Name() string {
	return "google"
}

func (prvdr *GoogleProvider) Generate(
	ctx context.Context, params *ProviderParams,
) (*Response, error) {
	if prvdr.client == nil {
		return nil, errors.ErrProviderNotConfigured
	}

	model := params.Model
	if model == "" {
		model = prvdr.model
	}

	contents, config := prvdr.convertMessages(params.Messages)

	resp, err := prvdr.client.Models.GenerateContent(ctx, model, contents, config)

	if err != nil {
		log.Error("generate request failed", "model", model, "error", err)
		return nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.ErrInternal.WithMessagef("model returned no content")
	}

	var text string

	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	return &Response{
		Text:  text,
		Usage: googleUsage(resp),
	}, nil
}

// convertMessages splits out system turns, which Gemini takes as a system
// instruction rather than conversation content.
func (prvdr *GoogleProvider) convertMessages(
	messages []Message,
) ([]*genai.Content, *genai.GenerateContentConfig) {
	var config *genai.GenerateContentConfig

	out := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "system":
			config = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: msg.Content}},
				},
			}
		case msg.Role == "tool":
			out = append(out, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{Text: fmt.Sprintf(
					"Tool result (%s): %s", msg.ToolCallID, msg.Content,
				)}},
			})
		case len(msg.ToolCalls) > 0:
			out = append(out, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: describeToolCalls(msg)}},
			})
		default:
			if fn, ok := googleRoleMap[msg.Role]; ok {
				out = append(out, fn(msg.Content))
			}
		}
	}

	return out, config
}

func googleUsage(resp *genai.GenerateContentResponse) *Usage {
	if resp.UsageMetadata == nil {
		return nil
	}

	return &Usage{
		InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
	}
}

func WithGoogleKey(apiKey string) GoogleProviderOption {
	return func(prvdr *GoogleProvider) {
		prvdr.apiKey = apiKey
	}
}

func WithGoogleClient(client *genai.Client) GoogleProviderOption {
	return func(prvdr *GoogleProvider) {
		prvdr.client = client
	}
}

func WithGoogleModel(model string) GoogleProviderOption {
	return func(prvdr *GoogleProvider) {
		prvdr.model = model
	}
}
