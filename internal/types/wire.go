// internal/types/wire.go
package types

import (
	"time"
)

// WireFile is the host's file record. The shape is discriminated
// structurally: a path means sandbox, inline content with no id means
// inline attachment, and a bare durable id means hosted.
type WireFile struct {
	ID               string `json:"id,omitempty"`
	FileName         string `json:"file_name"`
	FileKind         string `json:"file_kind,omitempty"`
	FileType         string `json:"file_type,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	Path             string `json:"path,omitempty"`
	ExtractedContent string `json:"extracted_content,omitempty"`
	KeepBinary       bool   `json:"keep_binary,omitempty"`
	PreviewAsset     string `json:"preview_asset,omitempty"`
	DocumentAsset    string `json:"document_asset,omitempty"`
	FileURL          string `json:"file_url,omitempty"`
	ThumbnailAsset   string `json:"thumbnail_asset,omitempty"`
	ThumbnailURL     string `json:"thumbnail_url,omitempty"`
}

// WireMessage is the host's message record. Text is derived from the
// content blocks on serialization; attached files are partitioned into
// three arrays, with images duplicated into the legacy Files array.
type WireMessage struct {
	UUID        string         `json:"uuid"`
	ParentUUID  string         `json:"parent_message_uuid"`
	Sender      string         `json:"sender"`
	Text        string         `json:"text"`
	Content     []ContentBlock `json:"content"`
	Files       []WireFile     `json:"files,omitempty"`
	FilesV2     []WireFile     `json:"files_v2,omitempty"`
	Attachments []WireFile     `json:"attachments,omitempty"`
	Index       int            `json:"index"`
	CreatedAt   time.Time      `json:"created_at"`
}

func fileToWire(f File) WireFile {
	switch v := f.(type) {
	case *HostedFile:
		return WireFile{
			ID:             string(v.ID),
			FileName:       v.Name,
			FileKind:       v.Kind,
			FileType:       v.MIMEType,
			FileSize:       v.Size,
			PreviewAsset:   v.PreviewAsset,
			DocumentAsset:  v.DocumentAsset,
			FileURL:        v.URL,
			ThumbnailAsset: v.ThumbnailAsset,
			ThumbnailURL:   v.ThumbnailURL,
		}
	case *SandboxFile:
		return WireFile{
			ID:               string(v.ID),
			FileName:         v.Name,
			FileSize:         v.Size,
			Path:             v.Path,
			ExtractedContent: v.ExtractedContent,
			KeepBinary:       v.KeepBinary,
			FileURL:          v.DownloadURL,
		}
	case *InlineAttachment:
		return WireFile{
			FileName:         v.Name,
			FileType:         v.MediaType,
			FileSize:         v.Size,
			ExtractedContent: v.ExtractedContent,
		}
	}
	return WireFile{}
}

// HistoryFileWire serializes a file the way conversation history carries
// it: small sandbox files travel inline (see HistoryFile).
func HistoryFileWire(f File) WireFile {
	return fileToWire(HistoryFile(f))
}

// FileToWire serializes a file to its host wire record with no
// representation change.
func FileToWire(f File) WireFile { return fileToWire(f) }

// FileFromWire reconstructs the File variant from its wire record using
// the structural discriminator.
func FileFromWire(w WireFile) File {
	switch {
	case w.Path != "":
		return &SandboxFile{
			ID:               FileID(w.ID),
			Name:             w.FileName,
			Path:             w.Path,
			Size:             w.FileSize,
			ExtractedContent: w.ExtractedContent,
			DownloadURL:      w.FileURL,
			KeepBinary:       w.KeepBinary,
		}
	case w.ID == "" && w.ExtractedContent != "":
		return &InlineAttachment{
			Name:             w.FileName,
			MediaType:        w.FileType,
			Size:             w.FileSize,
			ExtractedContent: w.ExtractedContent,
		}
	default:
		return &HostedFile{
			ID:             FileID(w.ID),
			Name:           w.FileName,
			Kind:           w.FileKind,
			MIMEType:       w.FileType,
			Size:           w.FileSize,
			PreviewAsset:   w.PreviewAsset,
			DocumentAsset:  w.DocumentAsset,
			URL:            w.FileURL,
			ThumbnailAsset: w.ThumbnailAsset,
			ThumbnailURL:   w.ThumbnailURL,
		}
	}
}

// WireFormat serializes the message to the host's wire shape. The result
// round-trips through MessageFromWire with no loss for any field this
// system reads.
func (m *Message) WireFormat() WireMessage {
	w := WireMessage{
		UUID:       string(m.ID),
		ParentUUID: string(m.ParentID),
		Sender:     string(m.Sender),
		Text:       m.Text(),
		Content:    m.Content,
		Index:      m.Index,
		CreatedAt:  m.CreatedAt,
	}
	for _, f := range m.Files {
		wf := fileToWire(f)
		switch v := f.(type) {
		case *InlineAttachment:
			w.Attachments = append(w.Attachments, wf)
		case *HostedFile:
			w.FilesV2 = append(w.FilesV2, wf)
			if v.IsImage() {
				w.Files = append(w.Files, wf)
			}
		default:
			w.FilesV2 = append(w.FilesV2, wf)
		}
	}
	return w
}

// MessageFromWire is the inverse of WireFormat.
func MessageFromWire(w WireMessage) *Message {
	m := &Message{
		ID:        MessageID(w.UUID),
		ParentID:  MessageID(w.ParentUUID),
		Sender:    Sender(w.Sender),
		Content:   w.Content,
		Index:     w.Index,
		CreatedAt: w.CreatedAt,
	}
	if m.ParentID == "" {
		m.ParentID = RootID
	}
	for _, wf := range w.FilesV2 {
		m.Files = append(m.Files, FileFromWire(wf))
	}
	for _, wf := range w.Attachments {
		m.Files = append(m.Files, FileFromWire(wf))
	}
	// The legacy Files array is a duplicate of the image subset of
	// FilesV2 and is not re-imported.
	return m
}
