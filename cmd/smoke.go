package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/theapemachine/bub-go/pkg/agent"
	"github.com/theapemachine/bub-go/pkg/provider"
	"github.com/theapemachine/bub-go/pkg/service"
	"github.com/theapemachine/bub-go/pkg/stores"
	"github.com/theapemachine/bub-go/pkg/tape"
)

var (
	smokeBaseURL string
	smokeMessage string
	smokeDirect  bool

	smokeCmd = &cobra.Command{
		Use:   "smoke",
		Short: "Smoke-test a running deployment",
		Long:  longSmoke,
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("SMOKE_DEBUG_ENV") != "" {
				printEnvSummary()
			}

			base := serviceBaseURL(smokeBaseURL)

			if err := checkHealth(base); err != nil {
				log.Error("health check failed", "url", base, "error", err)
				os.Exit(10)
			}

			fmt.Println("health: OK")

			reply, err := rpcChatSend(base, smokeMessage)

			if err != nil {
				log.Error("chat.send failed", "error", err)
				os.Exit(2)
			}

			fmt.Println("chat.send: OK:", firstLine(reply))

			if smokeDirect {
				if err := directReply(cmd); err != nil {
					log.Error("direct provider reply failed", "error", err)
					os.Exit(2)
				}

				fmt.Println("direct: OK")
			}

			fmt.Println("smoke: OK")
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(smokeCmd)

	smokeCmd.Flags().StringVar(&smokeBaseURL, "base-url", "", "Service base URL (default derived from the serve address)")
	smokeCmd.Flags().StringVar(&smokeMessage, "message", "Say OK and nothing else.", "Message to send through chat.send")
	smokeCmd.Flags().BoolVar(&smokeDirect, "direct", false, "Also run an in-process provider reply with an in-memory tape")
}

func serviceBaseURL(override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}

	addr := service.ListenAddr()

	// The serve default binds every interface; dial loopback instead.
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "127.0.0.1" + addr[len("0.0.0.0"):]
	}

	return "http://" + addr
}

func smokeClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func checkHealth(base string) error {
	resp, err := smokeClient().Get(base + "/")

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

/*
rpcChatSend pushes one message through the chat endpoint and fails on
either an RPC error or a provider failure surfaced in the status field.
*/
func rpcChatSend(base, message string) (string, error) {
	body := fmt.Sprintf(
		`{"jsonrpc":"2.0","id":1,"method":"chat.send","params":{"message":%q}}`,
		message,
	)

	resp, err := smokeClient().Post(base+"/rpc", "application/json", strings.NewReader(body))

	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)

	if err != nil {
		return "", err
	}

	if rpcErr := gjson.GetBytes(out, "error"); rpcErr.Exists() {
		return "", fmt.Errorf(
			"rpc error %d: %s",
			gjson.GetBytes(out, "error.code").Int(),
			gjson.GetBytes(out, "error.message").String(),
		)
	}

	reply := gjson.GetBytes(out, "result.reply").String()
	status := gjson.GetBytes(out, "result.status").String()

	if status != "" {
		return "", fmt.Errorf("provider failure: %s", status)
	}

	if strings.HasPrefix(reply, "Error:") {
		return "", fmt.Errorf("provider failure: %s", reply)
	}

	return reply, nil
}

/*
directReply exercises the provider credentials without the service in the
middle: a throwaway in-memory tape, one turn, no persistence.
*/
func directReply(cmd *cobra.Command) error {
	prvdr, err := provider.FromEnv()

	if err != nil {
		return err
	}

	tapeAgent, err := agent.NewAgent(
		agent.WithStore(stores.NewInMemoryTapeStore()),
		agent.WithProvider(prvdr),
		agent.WithTapeName("smoke:"+time.Now().UTC().Format("20060102T150405Z")),
	)

	if err != nil {
		return err
	}

	reply, err := tapeAgent.Reply(cmd.Context(), smokeMessage, tape.ViewLatest, "")

	if err != nil {
		return err
	}

	if strings.HasPrefix(reply, "Error:") {
		return fmt.Errorf("%s", reply)
	}

	return nil
}

func printEnvSummary() {
	plain := []string{
		"OCEANBASE_HOST", "OCEANBASE_PORT", "OCEANBASE_USER", "OCEANBASE_DATABASE",
		"BUB_TAPE_TABLE", "BUB_TAPE_NAME", "BUB_SERVER_PORT",
		"GRADIO_SERVER_NAME", "GRADIO_SERVER_PORT",
		"REPUBLIC_MODEL", "LLM_PROVIDER", "LLM_MODEL", "LLM_API_BASE",
		"MINIO_ENDPOINT", "BUB_ARCHIVE_BUCKET",
	}

	secret := []string{
		"OCEANBASE_PASSWORD", "REPUBLIC_API_KEY", "LLM_API_KEY",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GOOGLE_API_KEY",
		"DEEPSEEK_API_KEY", "COHERE_API_KEY",
		"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	}

	fmt.Println("environment:")

	for _, key := range plain {
		fmt.Printf("  %s=%s\n", key, os.Getenv(key))
	}

	for _, key := range secret {
		state := "(unset)"

		if os.Getenv(key) != "" {
			state = "(set)"
		}

		fmt.Printf("  %s %s\n", key, state)
	}
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}

	return text
}

var longSmoke = `
Run a smoke check against a deployment.

The check hits the readiness route (failures exit 10), then pushes one
message through chat.send and inspects the reply and status fields (any
failure exits 2). With --direct it also resolves the provider from the
environment and runs one in-process turn against a throwaway in-memory
tape. Set SMOKE_DEBUG_ENV=1 to print a summary of the relevant
environment first, with credentials masked.

Examples:
  bub-go smoke
  bub-go smoke --base-url http://bub.internal:7860 --direct
`
