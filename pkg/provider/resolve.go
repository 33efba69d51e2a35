package provider

import (
	"os"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/theapemachine/bub-go/pkg/errors"
)

const (
	defaultModel      = "openai:gpt-4o-mini"
	dashscopeEndpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

/*
ModelSpec is a fully resolved model selection: which vendor to call, which
model to ask for, and the credentials to use.
*/
type ModelSpec struct {
	Provider string
	Model    string
	APIKey   string
	APIBase  string
}

/*
SpecFromEnv resolves the model selection from the environment.
REPUBLIC_MODEL wins when set, otherwise LLM_PROVIDER and LLM_MODEL are
combined, otherwise the default model is used.
*/
func SpecFromEnv() ModelSpec {
	model := os.Getenv("REPUBLIC_MODEL")
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	llmModel := os.Getenv("LLM_MODEL")

	// Qwen is typically accessed through OpenAI-compatible endpoints.
	if strings.HasPrefix(model, "qwen:") {
		model = "openai:" + strings.SplitN(model, ":", 2)[1]
	}

	if model == "" {
		effective := provider

		if provider == "qwen" || provider == "dashscope" {
			effective = "openai"
		}

		if provider != "" && llmModel != "" && !strings.Contains(llmModel, ":") {
			model = effective + ":" + llmModel
		} else {
			model = llmModel
		}
	}

	if model == "" {
		model = defaultModel
	}

	apiKey := os.Getenv("REPUBLIC_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}

	apiBase := os.Getenv("REPUBLIC_API_BASE")
	if apiBase == "" {
		apiBase = os.Getenv("LLM_API_BASE")
	}

	if apiBase == "" && (provider == "qwen" || provider == "dashscope") {
		apiBase = dashscopeEndpoint
	}

	vendor, name := splitModel(model)

	return ModelSpec{
		Provider: vendor,
		Model:    name,
		APIKey:   apiKey,
		APIBase:  apiBase,
	}
}

/*
Resolve builds the provider a spec names. Vendors that require credentials
fail here, before any request leaves the process, so misconfiguration
surfaces at startup rather than mid-conversation.
*/
func Resolve(spec ModelSpec) (Interface, error) {
	switch spec.Provider {
	case "", "openai", "qwen", "dashscope":
		key := fallbackKey(spec.APIKey, "OPENAI_API_KEY")

		if key == "" {
			return nil, errors.NewMissingCredentialsError("openai", "OPENAI_API_KEY")
		}

		base := spec.APIBase

		if base == "" && (spec.Provider == "qwen" || spec.Provider == "dashscope") {
			base = dashscopeEndpoint
		}

		return NewOpenAIProvider(
			WithOpenAICredentials(key, base),
			WithOpenAIModel(spec.Model),
		), nil

	case "anthropic", "claude":
		key := fallbackKey(spec.APIKey, "ANTHROPIC_API_KEY")

		if key == "" {
			return nil, errors.NewMissingCredentialsError("anthropic", "ANTHROPIC_API_KEY")
		}

		return NewAnthropicProvider(
			WithAnthropicCredentials(key, spec.APIBase),
			WithAnthropicModel(spec.Model),
		), nil

	case "ollama":
		client, err := api.ClientFromEnvironment()

		if err != nil {
			return nil, err
		}

		return NewOllamaProvider(
			WithOllamaAPIClient(client),
			WithOllamaModel(spec.Model),
		), nil

	case "deepseek":
		key := fallbackKey(spec.APIKey, "DEEPSEEK_API_KEY")

		if key == "" {
			return nil, errors.NewMissingCredentialsError("deepseek", "DEEPSEEK_API_KEY")
		}

		return NewDeepseekProvider(
			WithDeepseekKey(key),
			WithDeepseekModel(spec.Model),
		), nil

	case "cohere":
		key := fallbackKey(spec.APIKey, "COHERE_API_KEY")

		if key == "" {
			return nil, errors.NewMissingCredentialsError("cohere", "COHERE_API_KEY")
		}

		return NewCohereProvider(
			WithCohereToken(key),
			WithCohereModel(spec.Model),
		), nil

	case "google", "gemini":
		key := fallbackKey(spec.APIKey, "GOOGLE_API_KEY")

		if key == "" {
			return nil, errors.NewMissingCredentialsError("google", "GOOGLE_API_KEY")
		}

		return NewGoogleProvider(
			WithGoogleKey(key),
			WithGoogleModel(spec.Model),
		)

	default:
		return nil, errors.ErrProviderNotConfigured.WithMessagef(
			"unknown provider %q", spec.Provider,
		)
	}
}

/*
FromEnv resolves and builds the provider the environment selects.
*/
func FromEnv() (Interface, error) {
	return Resolve(SpecFromEnv())
}

func splitModel(model string) (string, string) {
	if idx := strings.Index(model, ":"); idx >= 0 {
		return strings.ToLower(model[:idx]), model[idx+1:]
	}

	return "openai", model
}

func fallbackKey(key, envName string) string {
	if key != "" {
		return key
	}

	return os.Getenv(envName)
}
