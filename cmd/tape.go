package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theapemachine/bub-go/pkg/errors"
	"github.com/theapemachine/bub-go/pkg/render"
	"github.com/theapemachine/bub-go/pkg/stores/s3"
	"github.com/theapemachine/bub-go/pkg/stores/seekdb"
)

var (
	jsonFlag bool

	tapeCmd = &cobra.Command{
		Use:   "tape",
		Short: "Inspect and operate on conversation tapes",
		Long:  longTape,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	tapeListCmd = &cobra.Command{
		Use:   "list",
		Short: "List live tapes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			names, err := store.List(cmd.Context())

			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Println(name)
			}

			return nil
		},
	}

	tapeReadCmd = &cobra.Command{
		Use:   "read <tape>",
		Short: "Print a tape's entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			entries, err := store.Read(cmd.Context(), args[0])

			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(entries)
			}

			for _, entry := range entries {
				fmt.Printf("%6d  %-24s  %s\n", entry.ID, render.KindLabel(entry.Kind), render.HumanText(entry))
			}

			return nil
		},
	}

	tapeForkCmd = &cobra.Command{
		Use:   "fork <tape>",
		Short: "Fork a tape under a derived name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			fork, err := store.Fork(cmd.Context(), args[0])

			if err != nil {
				return err
			}

			fmt.Println(fork)
			return nil
		},
	}

	tapeMergeCmd = &cobra.Command{
		Use:   "merge <fork> <target>",
		Short: "Merge a fork's additions back into its source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			if err = store.Merge(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Println("merged", args[0], "into", args[1])
			return nil
		},
	}

	tapeArchiveCmd = &cobra.Command{
		Use:   "archive <tape>",
		Short: "Rename a tape out of the live set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			archived, err := store.Archive(cmd.Context(), args[0])

			if err != nil {
				return err
			}

			fmt.Println(archived)
			return nil
		},
	}

	tapeResetCmd = &cobra.Command{
		Use:   "reset <tape>",
		Short: "Archive a tape and free its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			// Same order as the chat service's reset: archive first so the
			// entries survive under the archived name.
			archived, err := store.Archive(cmd.Context(), args[0])

			if err != nil {
				return err
			}

			if err = store.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}

			if archived != "" {
				fmt.Println("archived as", archived)
			}

			fmt.Println("reset", args[0])
			return nil
		},
	}

	tapeExportCmd = &cobra.Command{
		Use:   "export <tape>",
		Short: "Export a tape to the archive bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTapeStore(cmd.Context())

			if err != nil {
				return err
			}

			defer cleanup()

			entries, err := store.Read(cmd.Context(), args[0])

			if err != nil {
				return err
			}

			if len(entries) == 0 {
				return errors.NewMissingTapeError(args[0])
			}

			archive, err := openArchiveStore()

			if err != nil {
				return err
			}

			if rpcErr := archive.Export(cmd.Context(), args[0], entries); rpcErr != nil {
				return rpcErr
			}

			fmt.Println("exported", args[0])
			return nil
		},
	}

	tapeFetchCmd = &cobra.Command{
		Use:   "fetch <tape>",
		Short: "Print an exported tape from the archive bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchiveStore()

			if err != nil {
				return err
			}

			entries, rpcErr := archive.Fetch(cmd.Context(), args[0])

			if rpcErr != nil {
				return rpcErr
			}

			return printJSON(entries)
		},
	}

	tapeArchivesCmd = &cobra.Command{
		Use:   "archives",
		Short: "List exported tapes in the archive bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchiveStore()

			if err != nil {
				return err
			}

			names, rpcErr := archive.List(cmd.Context())

			if rpcErr != nil {
				return rpcErr
			}

			for _, name := range names {
				fmt.Println(name)
			}

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(tapeCmd)
	tapeCmd.AddCommand(tapeListCmd)
	tapeCmd.AddCommand(tapeReadCmd)
	tapeCmd.AddCommand(tapeForkCmd)
	tapeCmd.AddCommand(tapeMergeCmd)
	tapeCmd.AddCommand(tapeArchiveCmd)
	tapeCmd.AddCommand(tapeResetCmd)
	tapeCmd.AddCommand(tapeExportCmd)
	tapeCmd.AddCommand(tapeFetchCmd)
	tapeCmd.AddCommand(tapeArchivesCmd)

	tapeReadCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print raw entries as JSON")
}

/*
openTapeStore connects to the database with a short readiness window so a
misconfigured CLI run fails in seconds rather than the serve command's
full startup budget. The cleanup function releases the connection.
*/
func openTapeStore(ctx context.Context) (*seekdb.Store, func(), error) {
	conn, err := seekdb.NewConn(seekdb.ConfigFromEnv())

	if err != nil {
		return nil, nil, err
	}

	if err = conn.WaitReady(ctx, 3, time.Second); err != nil {
		conn.Close()
		return nil, nil, err
	}

	if err = conn.Setup(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}

	return seekdb.NewStore(conn), conn.Close, nil
}

func openArchiveStore() (*s3.Store, error) {
	conn, err := s3.NewConn()

	if err != nil {
		return nil, err
	}

	return s3.NewStore(conn), nil
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")

	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

var longTape = `
Operate on conversation tapes directly, without going through the chat
service.

Tapes are append-only: archive and reset rename rather than delete, fork
copies a tape under a derived name, and merge renumbers a fork's
additions back onto its source. Export writes a tape as JSON into the
MinIO archive bucket (MINIO_* and BUB_ARCHIVE_BUCKET configure it).

Examples:
  bub-go tape list
  bub-go tape read "endless-context:default"
  bub-go tape export "endless-context:default"
`
