// internal/codec/thirdparty.go
package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/user/chatgraft/internal/types"
)

const (
	attachmentOpenFmt = "<<<ATTACHMENT %s>>>"
	attachmentClose   = "<<<END ATTACHMENT>>>"
)

// thirdPartyDoc is the external chat-app document: either a flat array
// of parent-linked messages or a single recursive children-tree node.
type thirdPartyDoc struct {
	Messages []thirdPartyMessage `json:"messages,omitempty"`

	// Recursive form.
	Role     string           `json:"role,omitempty"`
	Text     string           `json:"text,omitempty"`
	Children []thirdPartyDoc  `json:"children,omitempty"`
	Files    []thirdPartyFile `json:"attachments,omitempty"`
}

type thirdPartyMessage struct {
	ID     string           `json:"id"`
	Parent string           `json:"parent,omitempty"`
	Role   string           `json:"role"`
	Text   string           `json:"text"`
	Files  []thirdPartyFile `json:"attachments,omitempty"`
}

type thirdPartyFile struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	FileText string `json:"file_text,omitempty"`
}

// ExportThirdParty writes the flat parent-linked form. Inline attachment
// content is additionally embedded into the message text between
// structural delimiters so reduced consumers keep it; import strips the
// wrapper back out.
func ExportThirdParty(w io.Writer, messages []*types.Message) error {
	doc := thirdPartyDoc{Messages: make([]thirdPartyMessage, 0, len(messages))}
	for _, m := range messages {
		tm := thirdPartyMessage{
			ID:   string(m.ID),
			Role: roleFromSender(m.Sender),
			Text: m.Text(),
		}
		if m.ParentID != types.RootID {
			tm.Parent = string(m.ParentID)
		}
		for _, f := range m.Files {
			att, ok := types.HistoryFile(f).(*types.InlineAttachment)
			if !ok {
				continue
			}
			tm.Files = append(tm.Files, thirdPartyFile{
				FileName: att.Name,
				FileType: att.MediaType,
				FileSize: att.Size,
				FileText: att.ExtractedContent,
			})
			tm.Text += "\n" + fmt.Sprintf(attachmentOpenFmt, att.Name) +
				"\n" + att.ExtractedContent + "\n" + attachmentClose
		}
		doc.Messages = append(doc.Messages, tm)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ImportThirdParty reads either form and selects a single linear branch:
// the flat form takes the path ending at the last array element, the
// recursive form follows the last child at every level. When the
// selected branch does not open with a human turn, a placeholder human
// turn is synthesized and a warning returned.
func ImportThirdParty(r io.Reader) ([]*types.Message, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read third-party input: %w", err)
	}
	var doc thirdPartyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, &types.MalformedInputError{
			Format: "third-party",
			Reason: fmt.Sprintf("bad JSON: %v", err),
		}
	}

	var flat []thirdPartyMessage
	switch {
	case len(doc.Messages) > 0:
		flat, err = selectFlatBranch(doc.Messages)
		if err != nil {
			return nil, nil, err
		}
	case doc.Role != "":
		flat = flattenLastChild(doc)
	default:
		return nil, nil, &types.MalformedInputError{
			Format: "third-party",
			Reason: "document has neither messages array nor message tree",
		}
	}

	var warnings []string
	messages := make([]*types.Message, 0, len(flat))
	parent := types.RootID
	for _, tm := range flat {
		m := &types.Message{
			ID:       types.NewMessageID(),
			ParentID: parent,
			Sender:   senderFromRole(tm.Role),
		}
		text := tm.Text
		for _, f := range tm.Files {
			text = stripAttachmentWrapper(text, f.FileName)
			m.Files = append(m.Files, &types.InlineAttachment{
				Name:             f.FileName,
				MediaType:        f.FileType,
				Size:             f.FileSize,
				ExtractedContent: f.FileText,
			})
		}
		if text != "" {
			m.Content = []types.ContentBlock{types.TextBlock(text)}
		}
		messages = append(messages, m)
		parent = m.ID
	}

	if len(messages) > 0 && messages[0].Sender != types.SenderHuman {
		placeholder := types.NewTextMessage(types.SenderHuman, "(imported conversation)", types.RootID)
		messages[0].ParentID = placeholder.ID
		messages = append([]*types.Message{placeholder}, messages...)
		warnings = append(warnings, "imported branch does not start with a human turn; placeholder inserted")
	}
	return messages, warnings, nil
}

// selectFlatBranch walks parent links from the last array element.
func selectFlatBranch(msgs []thirdPartyMessage) ([]thirdPartyMessage, error) {
	byID := make(map[string]thirdPartyMessage, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	var reversed []thirdPartyMessage
	cur := msgs[len(msgs)-1]
	for {
		reversed = append(reversed, cur)
		if cur.Parent == "" {
			break
		}
		next, ok := byID[cur.Parent]
		if !ok {
			return nil, &types.MalformedInputError{
				Format: "third-party",
				Reason: fmt.Sprintf("message %s references missing parent %s", cur.ID, cur.Parent),
			}
		}
		if len(reversed) > len(msgs) {
			return nil, &types.MalformedInputError{
				Format: "third-party",
				Reason: "parent links form a cycle",
			}
		}
		cur = next
	}
	out := make([]thirdPartyMessage, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}

// flattenLastChild descends the recursive tree, always taking the last
// child.
func flattenLastChild(node thirdPartyDoc) []thirdPartyMessage {
	var out []thirdPartyMessage
	for {
		out = append(out, thirdPartyMessage{
			Role:  node.Role,
			Text:  node.Text,
			Files: node.Files,
		})
		if len(node.Children) == 0 {
			return out
		}
		node = node.Children[len(node.Children)-1]
	}
}

func stripAttachmentWrapper(text, fileName string) string {
	open := fmt.Sprintf(attachmentOpenFmt, fileName)
	start := strings.Index(text, open)
	if start < 0 {
		return text
	}
	end := strings.Index(text[start:], attachmentClose)
	if end < 0 {
		return text
	}
	end += start + len(attachmentClose)
	return strings.TrimRight(text[:start], "\n") + text[end:]
}

func roleFromSender(s types.Sender) string {
	if s == types.SenderHuman {
		return "user"
	}
	return "assistant"
}

func senderFromRole(role string) types.Sender {
	if role == "user" || role == "human" {
		return types.SenderHuman
	}
	return types.SenderAssistant
}
