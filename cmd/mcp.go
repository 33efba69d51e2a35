package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/theapemachine/bub-go/pkg/agent"
	"github.com/theapemachine/bub-go/pkg/logging"
	"github.com/theapemachine/bub-go/pkg/provider"
	"github.com/theapemachine/bub-go/pkg/service/sse"
	"github.com/theapemachine/bub-go/pkg/stores"
	"github.com/theapemachine/bub-go/pkg/tape"
	"github.com/theapemachine/bub-go/pkg/tools"
)

var (
	sseAddrFlag   string
	ephemeralFlag bool

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve tape and memory tools over MCP",
		Long:  longMCP,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := mcpStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			prvdr, err := provider.FromEnv()

			if err != nil {
				return err
			}

			tapeAgent, err := agent.NewAgent(
				agent.WithStore(store),
				agent.WithProvider(prvdr),
				agent.WithTapeName(tapeNameFromEnv()),
			)

			if err != nil {
				return err
			}

			srv := server.NewMCPServer(
				projectName,
				"1.0.0",
				server.WithLogging(),
				server.WithToolCapabilities(true),
				server.WithResourceCapabilities(false, true),
				server.WithPromptCapabilities(true),
				server.WithRecovery(),
			)

			tools.NewTapeTools(store, tapeAgent).RegisterTapeTools(srv)
			tools.NewMemoryTools(nil).RegisterMemoryTools(srv)
			tools.NewTapeResources(store, tapeAgent.TapeName()).RegisterTapeResources(srv)

			if sseAddrFlag != "" {
				log.Info("serving MCP over SSE", "addr", sseAddrFlag)
				return sse.NewMCPBroker(srv).Start(sseAddrFlag)
			}

			// Stdio transport owns stdout, so logs go to a file instead.
			if err = logging.ToFile(mcpLogPath()); err != nil {
				return err
			}

			defer logging.Close()

			return server.ServeStdio(srv)
		},
	}
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&sseAddrFlag, "sse", "", "Serve MCP over SSE on this address instead of stdio")
	mcpCmd.Flags().BoolVar(&ephemeralFlag, "ephemeral", false, "Use an in-memory tape store instead of the database")
}

func mcpStore(ctx context.Context) (tape.Store, func(), error) {
	if ephemeralFlag {
		return stores.NewInMemoryTapeStore(), func() {}, nil
	}

	return openTapeStore(ctx)
}

func mcpLogPath() string {
	home, _ := os.UserHomeDir()
	return home + "/." + projectName + "/mcp.log"
}

var longMCP = `
Serve the tape and memory tools over the Model Context Protocol.

The default transport is stdio, for use as a subprocess of an MCP
client. Pass --sse to serve over HTTP instead. Tools cover tape
inspection (tape_info, tape_anchors, tape_search), steering
(tape_handoff, tape_reset), and the session memory surface
(memory_store, memory_query, memory_search). The tape is also
exposed as readable resources (tape://live, tape://current) and a
handoff prompt.

Examples:
  # Stdio transport, database-backed
  bub-go mcp

  # SSE transport with an in-memory tape, for local experiments
  bub-go mcp --sse 127.0.0.1:8811 --ephemeral
`
