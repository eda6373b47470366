package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/chatgraft/internal/codec"
	"github.com/user/chatgraft/internal/types"
)

func init() {
	rootCmd.AddCommand(phantomCmd)
	phantomCmd.AddCommand(phantomShowCmd, phantomReplaceCmd, phantomClearCmd)
}

var phantomCmd = &cobra.Command{
	Use:   "phantom",
	Short: "Manage per-conversation phantom overlays",
}

var phantomShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a conversation's overlay in tagged-text form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := a.overlay.Overlay(cmd.Context(), types.ConversationID(args[0]))
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Fprintln(os.Stdout, "No overlay.")
			return nil
		}
		return codec.ExportTagged(os.Stdout, msgs)
	},
}

var phantomReplaceCmd = &cobra.Command{
	Use:   "replace <conversation-id> <file>",
	Short: "Replace a conversation's overlay from a tagged-text file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		msgs, err := codec.ImportTagged(f)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := types.ConversationID(args[0])
		if err := a.overlay.Replace(cmd.Context(), id, msgs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Overlay of %s replaced with %d messages.\n", id, len(msgs))
		return nil
	},
}

var phantomClearCmd = &cobra.Command{
	Use:   "clear <conversation-id>",
	Short: "Remove a conversation's overlay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := types.ConversationID(args[0])
		if err := a.overlay.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Overlay of %s cleared.\n", id)
		return nil
	},
}
