// internal/types/models.go
package types

import (
	"encoding/json"
	"strings"
	"time"
)

type Sender string

const (
	SenderHuman     Sender = "human"
	SenderAssistant Sender = "assistant"
)

// Other returns the alternate sender, used when synthesizing filler turns.
func (s Sender) Other() Sender {
	if s == SenderHuman {
		return SenderAssistant
	}
	return SenderHuman
}

const (
	// PhantomMarker is appended to the text of every overlay message at
	// splice time so renderers can de-emphasize it and copy paths can
	// strip it. It is invisible in terminals and browsers.
	PhantomMarker = "​​"

	// ContinuationMarker tags synthetic filler turns inserted by the
	// oversized-message splitter. Alternation repair collapses turns
	// carrying it back out before re-processing a path.
	ContinuationMarker = "⁣"

	// InlineThreshold is the largest extracted-content size, in
	// characters, at which a sandbox file is represented inline when
	// serialized for conversation history.
	InlineThreshold = 15000
)

// Message is one conversation turn. ParentID links form a forest rooted
// at RootID; a well-formed conversation is a single alternating path.
type Message struct {
	ID        MessageID
	ParentID  MessageID
	Sender    Sender
	Content   []ContentBlock
	Files     []File
	CreatedAt time.Time
	Index     int
}

// Text joins all text blocks with newline. It is a derived view, never
// stored on the message itself.
func (m *Message) Text() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// NewTextMessage builds a message with a single text block.
func NewTextMessage(sender Sender, text string, parent MessageID) *Message {
	return &Message{
		ID:        NewMessageID(),
		ParentID:  parent,
		Sender:    sender,
		Content:   []ContentBlock{{Type: BlockText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// OracleTurn is the projection of a human message into the shape needed
// to submit a new turn to the oracle.
type OracleTurn struct {
	Prompt      string
	ParentID    MessageID
	Attachments []WireFile
	FileIDs     []FileID
}

// OracleRequest projects a human-sender message into an OracleTurn.
// It fails with InvalidTurnError for non-human senders and for messages
// whose text is absent or split across multiple blocks (ambiguous prompt).
func (m *Message) OracleRequest() (OracleTurn, error) {
	if m.Sender != SenderHuman {
		return OracleTurn{}, &InvalidTurnError{Reason: "sender is not human"}
	}
	textBlocks := 0
	prompt := ""
	for _, b := range m.Content {
		if b.Type == BlockText {
			textBlocks++
			prompt = b.Text
		}
	}
	if textBlocks == 0 {
		return OracleTurn{}, &InvalidTurnError{Reason: "message has no text block"}
	}
	if textBlocks > 1 {
		return OracleTurn{}, &InvalidTurnError{Reason: "message has more than one text block"}
	}

	turn := OracleTurn{Prompt: prompt, ParentID: m.ParentID}
	for _, f := range m.Files {
		switch v := f.(type) {
		case *InlineAttachment:
			turn.Attachments = append(turn.Attachments, fileToWire(v))
		case *HostedFile:
			turn.FileIDs = append(turn.FileIDs, v.ID)
		case *SandboxFile:
			turn.FileIDs = append(turn.FileIDs, v.ID)
		}
	}
	return turn, nil
}

// PlainTextLog renders the message for archival and summarization input.
// Only text, tool_use, and tool_result blocks are rendered; callers must
// pre-filter anything else they do not want, because this function does
// not filter.
func (m *Message) PlainTextLog() string {
	var parts []string
	for _, b := range m.Content {
		switch b.Type {
		case BlockText:
			if s := strings.TrimSpace(b.Text); s != "" {
				parts = append(parts, s)
			}
		case BlockToolUse:
			name := b.Name
			if name == "" {
				name = "unknown"
			}
			line := "[tool_use] " + name
			if len(b.Input) > 0 && string(b.Input) != "null" {
				line += " " + string(b.Input)
			}
			parts = append(parts, line)
		case BlockToolResult:
			line := "[tool_result]"
			if len(b.Payload) > 0 && string(b.Payload) != "null" {
				line += " " + string(b.Payload)
			}
			parts = append(parts, line)
		}
	}
	if len(m.Files) > 0 {
		wire := make([]WireFile, 0, len(m.Files))
		for _, f := range m.Files {
			wire = append(wire, fileToWire(f))
		}
		if dump, err := json.Marshal(wire); err == nil {
			parts = append(parts, "[files] "+string(dump))
		}
	}
	return strings.Join(parts, "\n")
}
