package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/summarize"
	"github.com/user/chatgraft/internal/types"
)

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().String("name", "", "name for the summarized fork (default: original name + suffix)")
	summarizeCmd.Flags().Bool("yes", false, "accept all drafts without interactive review")
	summarizeCmd.Flags().StringArray("preserve", nil, "file to carry onto the summarized head, repeatable")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <conversation-id>",
	Short: "Summarize a long conversation into a forked overlay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		acceptAll, _ := cmd.Flags().GetBool("yes")
		preservePaths, _ := cmd.Flags().GetStringArray("preserve")

		var preserve []types.File
		for _, p := range preservePaths {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read preserved file: %w", err)
			}
			preserve = append(preserve, &types.InlineAttachment{
				Name:             filepath.Base(p),
				Size:             int64(len(data)),
				ExtractedContent: string(data),
			})
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := types.ConversationID(args[0])
		ctx := cmd.Context()

		var reviewer summarize.Reviewer = &terminalReviewer{in: os.Stdin, out: os.Stdout}
		if acceptAll {
			reviewer = acceptAllReviewer{}
		}

		pipe := summarize.NewPipeline(a.acc, a.client, a.rehomer, a.chunker, a.client, reviewer)
		res, err := pipe.Run(ctx, id, summarize.Options{PreserveFiles: preserve})
		if err != nil {
			return err
		}

		if name == "" {
			meta, err := a.acc.Metadata(ctx, id, store.FetchOptions{})
			if err == nil && meta.Name != "" {
				name = meta.Name + " (summarized)"
			} else {
				name = "summarized conversation"
			}
		}
		fork, err := a.client.Create(ctx, name, store.CreateOptions{})
		if err != nil {
			return fmt.Errorf("create fork conversation: %w", err)
		}
		if err := a.overlay.Replace(ctx, fork, res.Messages); err != nil {
			return fmt.Errorf("install summarized overlay: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Summarized %d chunks into conversation %s (%d messages)\n",
			len(res.Summaries), fork, len(res.Messages))
		return nil
	},
}

// acceptAllReviewer passes every draft through unchanged.
type acceptAllReviewer struct{}

func (acceptAllReviewer) Review(_ context.Context, drafts []string, _ summarize.Reviser) ([]string, error) {
	return drafts, nil
}

// terminalReviewer walks the drafts on the terminal. Commands: accept,
// edit <text>, revise <instruction>, next, prev, cancel.
type terminalReviewer struct {
	in  *os.File
	out *os.File
}

func (t *terminalReviewer) Review(ctx context.Context, drafts []string, revise summarize.Reviser) ([]string, error) {
	edited := make([]string, len(drafts))
	copy(edited, drafts)

	sc := bufio.NewScanner(t.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	i := 0
	for {
		fmt.Fprintf(t.out, "\n--- summary %d/%d ---\n%s\n", i+1, len(edited), edited[i])
		fmt.Fprint(t.out, "[accept | edit <text> | revise <instruction> | goto <n> | cancel] > ")
		if !sc.Scan() {
			return nil, summarize.ErrCancelled
		}
		line := strings.TrimSpace(sc.Text())
		verb, rest, _ := strings.Cut(line, " ")
		switch verb {
		case "accept", "":
			if i == len(edited)-1 {
				return edited, nil
			}
			i++
		case "edit":
			if rest == "" {
				fmt.Fprintln(t.out, "edit requires replacement text")
				continue
			}
			edited[i] = rest
		case "revise":
			if rest == "" {
				fmt.Fprintln(t.out, "revise requires an instruction")
				continue
			}
			replacement, err := revise(ctx, i, edited[i], rest)
			if err != nil {
				fmt.Fprintln(t.out, "revision failed:", err)
				continue
			}
			edited[i] = replacement
		case "goto":
			n, err := strconv.Atoi(rest)
			if err != nil || n < 1 || n > len(edited) {
				fmt.Fprintln(t.out, "goto requires a summary number")
				continue
			}
			i = n - 1
		case "cancel":
			return nil, summarize.ErrCancelled
		default:
			fmt.Fprintln(t.out, "unknown command", verb)
		}
	}
}
