package oracle

// Turn is a human turn submitted to the oracle.
type Turn struct {
	Prompt      string       `json:"prompt"`
	ParentID    string       `json:"parent_message_uuid"`
	Attachments []Attachment `json:"attachments,omitempty"`
	FileIDs     []string     `json:"files,omitempty"`
}

// Attachment is inline text travelling with a turn.
type Attachment struct {
	FileName         string `json:"file_name"`
	FileType         string `json:"file_type,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	ExtractedContent string `json:"extracted_content"`
}

// Response is the oracle's single reply to a submitted turn.
type Response struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}
