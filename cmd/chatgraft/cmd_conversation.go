package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chatgraft/internal/phantom"
	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/types"
)

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationListCmd, conversationShowCmd, conversationSetLeafCmd)
	conversationListCmd.Flags().String("search", "", "filter by title or text")
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Inspect and steer conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally known conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("search")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.overlay.Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stdout, "No conversations in the local cache. Run 'conversation show' to cache one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Conversation, e.Title, e.UpdatedAt)
		}
		return w.Flush()
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation's active branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := types.ConversationID(args[0])
		ctx := cmd.Context()

		meta, err := a.acc.Metadata(ctx, id, store.FetchOptions{AsTree: true})
		if err != nil {
			return err
		}
		path, err := a.acc.ActivePath(ctx, id, store.FetchOptions{})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s  (%d messages on active branch)\n\n", meta.Name, len(path))
		var body strings.Builder
		for _, m := range path {
			log := m.PlainTextLog()
			fmt.Fprintf(os.Stdout, "[%s] %s\n\n", m.Sender, log)
			body.WriteString(log)
			body.WriteString("\n")
		}

		// Feed the search cache so 'conversation list' can find it later.
		err = a.overlay.CacheConversation(ctx, phantom.CacheEntry{
			Conversation: id,
			Title:        meta.Name,
			Body:         body.String(),
			UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return nil
	},
}

var conversationSetLeafCmd = &cobra.Command{
	Use:   "set-leaf <conversation-id> <message-id>",
	Short: "Point the conversation's active branch at a leaf",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := types.ConversationID(args[0])
		leaf := types.MessageID(args[1])
		if err := a.acc.SetActiveLeaf(cmd.Context(), id, leaf); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Active leaf of %s set to %s.\n", id, leaf)
		return nil
	},
}
