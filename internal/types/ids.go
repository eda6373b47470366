// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type MessageID string
type ConversationID string
type FileID string
type OrgID string

// RootID is the sentinel parent of every root-level message. The remote
// store uses the zero UUID for the same purpose.
const RootID MessageID = "00000000-0000-0000-0000-000000000000"

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewFileID() FileID {
	return FileID(uuid.New().String())
}
