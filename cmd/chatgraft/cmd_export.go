package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/chatgraft/internal/codec"
	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/types"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", "tagged", "output format: tagged, jsonl, thirdparty, raw, bundle")
	exportCmd.Flags().String("out", "", "output file (default stdout; required for bundle)")
}

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation's active branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := types.ConversationID(args[0])
		ctx := cmd.Context()

		var out io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			out = f
		} else if format == "bundle" {
			return fmt.Errorf("bundle export requires --out")
		}

		switch format {
		case "tagged":
			path, err := a.acc.ActivePath(ctx, id, store.FetchOptions{})
			if err != nil {
				return err
			}
			return codec.ExportTagged(out, path)
		case "jsonl":
			path, err := a.acc.ActivePath(ctx, id, store.FetchOptions{})
			if err != nil {
				return err
			}
			return codec.ExportJSONL(out, path)
		case "thirdparty":
			path, err := a.acc.ActivePath(ctx, id, store.FetchOptions{})
			if err != nil {
				return err
			}
			return codec.ExportThirdParty(out, path)
		case "raw":
			meta, err := a.acc.Metadata(ctx, id, store.FetchOptions{AsTree: true})
			if err != nil {
				return err
			}
			msgs, err := a.acc.Messages(ctx, id, store.FetchOptions{AsTree: true})
			if err != nil {
				return err
			}
			return codec.ExportRaw(out, id, meta.Name, msgs)
		case "bundle":
			path, err := a.acc.ActivePath(ctx, id, store.FetchOptions{})
			if err != nil {
				return err
			}
			download := func(locator string) ([]byte, error) {
				return a.files.Download(ctx, locator)
			}
			return codec.ExportBundle(out, path, download)
		default:
			return fmt.Errorf("unknown format %q", format)
		}
	},
}
