// internal/codec/tagged.go

// Package codec converts between the canonical message model and the
// interchange formats: tagged text, line-delimited JSON, a third-party
// chat-app JSON shape, the host's raw JSON shape, and a zip bundle.
package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/user/chatgraft/internal/tree"
	"github.com/user/chatgraft/internal/types"
)

var taggedHeaderRe = regexp.MustCompile(`^\[(human|assistant)( +(\S+))?\]$`)

const (
	taggedBlockPrefix = "[block] "
	taggedFilesPrefix = "[files] "
)

// ExportTagged writes messages as a flat tagged-text document: a
// bracketed role tag (with timestamp) opens each message, followed by
// its text, one JSON line per non-text block, and a JSON array of
// attached files.
func ExportTagged(w io.Writer, messages []*types.Message) error {
	bw := bufio.NewWriter(w)
	for i, m := range messages {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "[%s %s]\n", m.Sender, m.CreatedAt.UTC().Format(time.RFC3339))
		if text := m.Text(); text != "" {
			fmt.Fprintln(bw, text)
		}
		for _, b := range m.Content {
			if b.Type == types.BlockText {
				continue
			}
			data, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("marshal content block: %w", err)
			}
			fmt.Fprintf(bw, "%s%s\n", taggedBlockPrefix, data)
		}
		if len(m.Files) > 0 {
			wire := make([]types.WireFile, 0, len(m.Files))
			for _, f := range m.Files {
				wire = append(wire, types.HistoryFileWire(f))
			}
			data, err := json.Marshal(wire)
			if err != nil {
				return fmt.Errorf("marshal file array: %w", err)
			}
			fmt.Fprintf(bw, "%s%s\n", taggedFilesPrefix, data)
		}
	}
	return bw.Flush()
}

// ImportTagged parses a tagged-text document back into a parent-chained
// message sequence. Consecutive same-role tags are malformed, as is a
// document with no tag at all.
func ImportTagged(r io.Reader) ([]*types.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var messages []*types.Message
	var cur *types.Message
	var textLines []string
	parent := types.RootID

	flush := func() {
		if cur == nil {
			return
		}
		text := strings.TrimRight(strings.Join(textLines, "\n"), "\n")
		if text != "" {
			// Text renders ahead of the other blocks on export, so it
			// goes back in front on import.
			cur.Content = append([]types.ContentBlock{types.TextBlock(text)}, cur.Content...)
		}
		messages = append(messages, cur)
		parent = cur.ID
		cur = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if match := taggedHeaderRe.FindStringSubmatch(line); match != nil {
			sender := types.Sender(match[1])
			if cur != nil && cur.Sender == sender {
				return nil, &types.MalformedInputError{
					Format: "tagged-text",
					Reason: fmt.Sprintf("consecutive %s tags", sender),
				}
			}
			flush()
			cur = &types.Message{
				ID:       types.NewMessageID(),
				ParentID: parent,
				Sender:   sender,
			}
			if match[3] != "" {
				if at, err := time.Parse(time.RFC3339, match[3]); err == nil {
					cur.CreatedAt = at
				}
			}
			continue
		}
		if cur == nil {
			// Leading lines outside any tag are ignored.
			continue
		}
		switch {
		case strings.HasPrefix(line, taggedBlockPrefix):
			var block types.ContentBlock
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, taggedBlockPrefix)), &block); err != nil {
				return nil, &types.MalformedInputError{
					Format: "tagged-text",
					Reason: fmt.Sprintf("bad block JSON: %v", err),
				}
			}
			cur.Content = append(cur.Content, block)
		case strings.HasPrefix(line, taggedFilesPrefix):
			var wire []types.WireFile
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, taggedFilesPrefix)), &wire); err != nil {
				return nil, &types.MalformedInputError{
					Format: "tagged-text",
					Reason: fmt.Sprintf("bad file array JSON: %v", err),
				}
			}
			for _, wf := range wire {
				cur.Files = append(cur.Files, types.FileFromWire(wf))
			}
		default:
			textLines = append(textLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan tagged-text input: %w", err)
	}
	flush()

	if len(messages) == 0 {
		return nil, &types.MalformedInputError{
			Format: "tagged-text",
			Reason: "no message tag found",
		}
	}
	return tree.LinearBranch(messages)
}
