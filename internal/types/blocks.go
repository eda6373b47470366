// internal/types/blocks.go
package types

import "encoding/json"

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one typed element of a message's content. Blocks of a
// type this system does not understand keep their raw JSON in Raw and
// round-trip byte-identically.
type ContentBlock struct {
	Type     BlockType       `json:"type"`
	Text     string          `json:"text,omitempty"`
	Thinking string          `json:"thinking,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Payload  json.RawMessage `json:"content,omitempty"`

	raw json.RawMessage
}

// TextBlock is a convenience constructor for the common case.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// IsKnown reports whether the block type is one this system interprets.
func (b ContentBlock) IsKnown() bool {
	switch b.Type {
	case BlockText, BlockThinking, BlockToolUse, BlockToolResult:
		return true
	}
	return false
}

// Raw returns the preserved wire JSON for pass-through blocks, or nil.
func (b ContentBlock) Raw() json.RawMessage { return b.raw }

// OpaqueBlock wraps raw JSON as a pass-through block.
func OpaqueBlock(blockType BlockType, raw json.RawMessage) ContentBlock {
	return ContentBlock{Type: blockType, raw: raw}
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if !b.IsKnown() && len(b.raw) > 0 {
		return b.raw, nil
	}
	type alias ContentBlock
	return json.Marshal(alias(b))
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	type alias ContentBlock
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*b = ContentBlock(a)
	if !b.IsKnown() {
		b.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}
