// internal/codec/raw.go
package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/user/chatgraft/internal/tree"
	"github.com/user/chatgraft/internal/types"
)

// RawConversation is the host's own conversation JSON: the full message
// tree plus the active-leaf pointer.
type RawConversation struct {
	UUID            string              `json:"uuid"`
	Name            string              `json:"name,omitempty"`
	CurrentLeafUUID string              `json:"current_leaf_message_uuid,omitempty"`
	ChatMessages    []types.WireMessage `json:"chat_messages"`
}

// ExportRaw writes the host's conversation shape verbatim.
func ExportRaw(w io.Writer, conversationID types.ConversationID, name string, messages []*types.Message) error {
	doc := RawConversation{
		UUID: string(conversationID),
		Name: name,
	}
	if len(messages) > 0 {
		doc.CurrentLeafUUID = string(messages[len(messages)-1].ID)
	}
	for _, m := range messages {
		doc.ChatMessages = append(doc.ChatMessages, m.WireFormat())
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ImportRaw reads the host shape and selects the active branch. When the
// tree holds more than one branch a warning notes that only the branch
// reachable from the current-leaf pointer is imported.
func ImportRaw(r io.Reader) ([]*types.Message, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read raw input: %w", err)
	}
	var doc RawConversation
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, &types.MalformedInputError{
			Format: "raw",
			Reason: fmt.Sprintf("bad JSON: %v", err),
		}
	}
	if len(doc.ChatMessages) == 0 {
		return nil, nil, &types.MalformedInputError{
			Format: "raw",
			Reason: "conversation has no messages",
		}
	}

	all := make([]*types.Message, 0, len(doc.ChatMessages))
	for _, wm := range doc.ChatMessages {
		all = append(all, types.MessageFromWire(wm))
	}
	idx := tree.NewIndex(all)

	var warnings []string
	if idx.HasBranches() {
		warnings = append(warnings, "conversation has multiple branches; only the currently active branch is imported")
	}

	leaf := types.MessageID(doc.CurrentLeafUUID)
	if leaf == "" || idx.Get(leaf) == nil {
		leaf = idx.DeepestLeaf(types.RootID).Leaf
	}
	path, err := idx.AncestorPath(leaf)
	if err != nil {
		return nil, nil, err
	}
	return path, warnings, nil
}
