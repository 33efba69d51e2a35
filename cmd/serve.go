package cmd

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/bub-go/pkg/agent"
	"github.com/theapemachine/bub-go/pkg/provider"
	"github.com/theapemachine/bub-go/pkg/service"
	"github.com/theapemachine/bub-go/pkg/stores/seekdb"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the tape chat service",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			conn, err := seekdb.NewConn(seekdb.ConfigFromEnv())

			if err != nil {
				return err
			}

			defer conn.Close()

			if err = conn.WaitReady(ctx, waitAttempts(), waitInterval()); err != nil {
				log.Error("giving up on database", "error", err)
				return err
			}

			if err = conn.Setup(ctx); err != nil {
				return err
			}

			prvdr, err := provider.FromEnv()

			if err != nil {
				return err
			}

			store := seekdb.NewStore(conn)

			tapeAgent, err := agent.NewAgent(
				agent.WithStore(store),
				agent.WithProvider(prvdr),
				agent.WithTapeName(tapeNameFromEnv()),
			)

			if err != nil {
				return err
			}

			log.Info(
				"starting tape service",
				"tape", tapeAgent.TapeName(),
				"provider", prvdr.Name(),
				"addr", serveAddr(),
			)

			return service.NewTapeServer(
				tapeAgent,
				service.WithStore(store),
				service.WithAddr(serveAddr()),
			).Start()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (default from BUB_SERVER_PORT or the config file)")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (default from GRADIO_SERVER_NAME or the config file)")
}

/*
serveAddr resolves the listen address, letting the flags override the
environment and config file resolution.
*/
func serveAddr() string {
	addr := service.ListenAddr()

	if hostFlag == "" && portFlag == 0 {
		return addr
	}

	host, port, err := net.SplitHostPort(addr)

	if err != nil {
		host, port = "0.0.0.0", "7860"
	}

	if hostFlag != "" {
		host = hostFlag
	}

	if portFlag != 0 {
		port = strconv.Itoa(portFlag)
	}

	return net.JoinHostPort(host, port)
}

// waitAttempts bounds the database readiness loop.
func waitAttempts() int {
	if attempts := viper.GetInt("database.wait.attempts"); attempts > 0 {
		return attempts
	}

	return 30
}

func waitInterval() time.Duration {
	if interval := viper.GetDuration("database.wait.interval"); interval > 0 {
		return interval
	}

	return 2 * time.Second
}

func tapeNameFromEnv() string {
	if name := os.Getenv("BUB_TAPE_NAME"); name != "" {
		return name
	}

	return viper.GetString("tape.name")
}

var longServe = `
Serve the tape chat API.

Startup waits for SeekDB/OceanBase to answer, creates the database and
tape table when missing, and resolves the LLM provider from the
environment. Missing provider credentials abort the start.

Endpoints:
  GET  /       readiness (pings the store)
  POST /rpc    JSON-RPC 2.0 (chat.send, tape.snapshot, tape.view,
               tape.handoff, tape.reset, tape.info)
  GET  /events server-sent tape events

Examples:
  # Serve on the default address (0.0.0.0:7860)
  bub-go serve

  # Serve on a specific port
  bub-go serve --port 8080
`
