package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatgraft/internal/codec"
	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/types"
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("format", "", "input format: tagged, jsonl, thirdparty, raw (default: detect)")
	importCmd.Flags().String("to", "new", "destination: new (fresh conversation) or phantom (existing overlay)")
	importCmd.Flags().String("conversation", "", "target conversation id (required for --to phantom)")
	importCmd.Flags().String("name", "", "name for the new conversation")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a conversation as a phantom overlay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		dest, _ := cmd.Flags().GetString("to")
		convFlag, _ := cmd.Flags().GetString("conversation")
		name, _ := cmd.Flags().GetString("name")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if format == "" {
			format = detectFormat(args[0], data)
		}

		msgs, warnings, err := decodeImport(format, data)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var target types.ConversationID
		switch dest {
		case "new":
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			target, err = a.client.Create(ctx, name, store.CreateOptions{})
			if err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Created conversation %s\n", target)
		case "phantom":
			if convFlag == "" {
				return fmt.Errorf("--to phantom requires --conversation")
			}
			target = types.ConversationID(convFlag)
		default:
			return fmt.Errorf("unknown destination %q", dest)
		}

		if err := a.overlay.Replace(ctx, target, msgs); err != nil {
			return fmt.Errorf("install overlay: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Imported %d messages into the overlay of %s\n", len(msgs), target)
		return nil
	},
}

func decodeImport(format string, data []byte) ([]*types.Message, []string, error) {
	r := bytes.NewReader(data)
	switch format {
	case "tagged":
		msgs, err := codec.ImportTagged(r)
		return msgs, nil, err
	case "jsonl":
		msgs, err := codec.ImportJSONL(r)
		return msgs, nil, err
	case "thirdparty":
		return codec.ImportThirdParty(r)
	case "raw":
		return codec.ImportRaw(r)
	default:
		return nil, nil, fmt.Errorf("unknown format %q", format)
	}
}

// detectFormat guesses from the file extension, falling back to a shape
// sniff for .json inputs.
func detectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return "jsonl"
	case ".json":
		var probe struct {
			ChatMessages json.RawMessage `json:"chat_messages"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && probe.ChatMessages != nil {
			return "raw"
		}
		return "thirdparty"
	default:
		return "tagged"
	}
}
