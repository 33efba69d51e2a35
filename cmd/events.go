package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	sseclient "github.com/theapemachine/bub-go/pkg/sse"
)

var (
	eventsBaseURL string

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Stream live tape events from a running service",
		Long:  longEvents,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			client := sseclient.NewClient(serviceBaseURL(eventsBaseURL) + "/events")
			defer client.Close()

			err := client.Subscribe(ctx, func(event *sseclient.Event) {
				fmt.Println(string(event.Data))
			})

			if errors.Is(err, context.Canceled) {
				summary, _ := json.Marshal(client.Metrics.Snapshot())
				log.Info("event stream closed", "metrics", string(summary))
				return nil
			}

			return err
		},
	}
)

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsBaseURL, "base-url", "", "Service base URL (default derived from the serve address)")
}

var longEvents = `
Tail the tape event stream of a running service.

Each line is the JSON tape event broadcast after a message, handoff, or
reset. Interrupt with Ctrl-C to stop; delivery counters are logged on
exit.

Examples:
  bub-go events
  bub-go events --base-url http://bub.internal:7860
`
