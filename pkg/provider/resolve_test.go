package provider

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func clearModelEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		"REPUBLIC_MODEL", "REPUBLIC_API_KEY", "REPUBLIC_API_BASE",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_API_BASE",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DEEPSEEK_API_KEY",
		"COHERE_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestSpecFromEnv(t *testing.T) {
	convey.Convey("Given a clean environment", t, func() {
		clearModelEnv(t)

		convey.Convey("When nothing selects a model", func() {
			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "openai")
			convey.So(spec.Model, convey.ShouldEqual, "gpt-4o-mini")
			convey.So(spec.APIBase, convey.ShouldBeEmpty)
		})

		convey.Convey("When REPUBLIC_MODEL names a qwen model", func() {
			t.Setenv("REPUBLIC_MODEL", "qwen:qwen-max")

			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "openai")
			convey.So(spec.Model, convey.ShouldEqual, "qwen-max")
		})

		convey.Convey("When REPUBLIC_MODEL wins over LLM settings", func() {
			t.Setenv("REPUBLIC_MODEL", "anthropic:claude-3-5-sonnet-latest")
			t.Setenv("LLM_PROVIDER", "openai")
			t.Setenv("LLM_MODEL", "gpt-4o")

			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "anthropic")
			convey.So(spec.Model, convey.ShouldEqual, "claude-3-5-sonnet-latest")
		})

		convey.Convey("When LLM_PROVIDER and LLM_MODEL combine", func() {
			t.Setenv("LLM_PROVIDER", "deepseek")
			t.Setenv("LLM_MODEL", "deepseek-chat")

			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "deepseek")
			convey.So(spec.Model, convey.ShouldEqual, "deepseek-chat")
		})

		convey.Convey("When the qwen provider routes to the DashScope endpoint", func() {
			t.Setenv("LLM_PROVIDER", "qwen")
			t.Setenv("LLM_MODEL", "qwen-plus")

			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "openai")
			convey.So(spec.Model, convey.ShouldEqual, "qwen-plus")
			convey.So(spec.APIBase, convey.ShouldEqual, dashscopeEndpoint)
		})

		convey.Convey("When LLM_MODEL already carries a provider prefix", func() {
			t.Setenv("LLM_PROVIDER", "openai")
			t.Setenv("LLM_MODEL", "anthropic:claude-3-opus")

			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "anthropic")
			convey.So(spec.Model, convey.ShouldEqual, "claude-3-opus")
		})

		convey.Convey("When only LLM_MODEL is set", func() {
			t.Setenv("LLM_MODEL", "gpt-4o")

			spec := SpecFromEnv()

			convey.So(spec.Provider, convey.ShouldEqual, "openai")
			convey.So(spec.Model, convey.ShouldEqual, "gpt-4o")
		})

		convey.Convey("When both key variables are set", func() {
			t.Setenv("REPUBLIC_API_KEY", "republic-key")
			t.Setenv("LLM_API_KEY", "llm-key")

			spec := SpecFromEnv()

			convey.So(spec.APIKey, convey.ShouldEqual, "republic-key")
		})

		convey.Convey("When only the fallback key variable is set", func() {
			t.Setenv("LLM_API_KEY", "llm-key")
			t.Setenv("LLM_API_BASE", "https://proxy.example.com/v1")

			spec := SpecFromEnv()

			convey.So(spec.APIKey, convey.ShouldEqual, "llm-key")
			convey.So(spec.APIBase, convey.ShouldEqual, "https://proxy.example.com/v1")
		})
	})
}

func TestResolve(t *testing.T) {
	convey.Convey("Given resolved model specs", t, func() {
		clearModelEnv(t)

		convey.Convey("When the vendor requires credentials and none are set", func() {
			_, err := Resolve(ModelSpec{Provider: "openai", Model: "gpt-4o-mini"})

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "OPENAI_API_KEY")
		})

		convey.Convey("When an API key is provided", func() {
			prvdr, err := Resolve(ModelSpec{
				Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test",
			})

			convey.So(err, convey.ShouldBeNil)
			convey.So(prvdr.Name(), convey.ShouldEqual, "openai")
		})

		convey.Convey("When qwen routes through the OpenAI protocol", func() {
			prvdr, err := Resolve(ModelSpec{
				Provider: "qwen", Model: "qwen-max", APIKey: "sk-test",
			})

			convey.So(err, convey.ShouldBeNil)
			convey.So(prvdr.Name(), convey.ShouldEqual, "openai")
		})

		convey.Convey("When anthropic is selected", func() {
			prvdr, err := Resolve(ModelSpec{
				Provider: "anthropic", Model: "claude-3-5-sonnet-latest", APIKey: "sk-ant",
			})

			convey.So(err, convey.ShouldBeNil)
			convey.So(prvdr.Name(), convey.ShouldEqual, "anthropic")
		})

		convey.Convey("When ollama needs no credentials", func() {
			prvdr, err := Resolve(ModelSpec{Provider: "ollama", Model: "llama3"})

			convey.So(err, convey.ShouldBeNil)
			convey.So(prvdr.Name(), convey.ShouldEqual, "ollama")
		})

		convey.Convey("When deepseek is selected", func() {
			prvdr, err := Resolve(ModelSpec{
				Provider: "deepseek", Model: "deepseek-chat", APIKey: "sk-ds",
			})

			convey.So(err, convey.ShouldBeNil)
			convey.So(prvdr.Name(), convey.ShouldEqual, "deepseek")
		})

		convey.Convey("When cohere is selected", func() {
			prvdr, err := Resolve(ModelSpec{
				Provider: "cohere", Model: "command-r", APIKey: "co-key",
			})

			convey.So(err, convey.ShouldBeNil)
			convey.So(prvdr.Name(), convey.ShouldEqual, "cohere")
		})

		convey.Convey("When the provider is unknown", func() {
			_, err := Resolve(ModelSpec{Provider: "watson", Model: "jeopardy"})

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
