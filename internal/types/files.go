// internal/types/files.go
package types

import "strings"

// File is a reference to content attached to a message. Exactly one of
// the three concrete shapes applies to any reference:
//
//   - HostedFile: durable id plus a retrievable download locator.
//   - SandboxFile: durable id plus a path inside the execution sandbox.
//   - InlineAttachment: no id, entire payload carried inline as text.
type File interface {
	FileName() string
	isFile()
}

// HostedFile is an image, PDF, or other binary stored by the host. Which
// asset-URL fields are populated depends on the file kind.
type HostedFile struct {
	ID             FileID
	Name           string
	Kind           string
	MIMEType       string
	Size           int64
	PreviewAsset   string
	DocumentAsset  string
	URL            string
	ThumbnailAsset string
	ThumbnailURL   string
}

func (f *HostedFile) FileName() string { return f.Name }
func (f *HostedFile) isFile()          {}

// IsImage reports whether the file belongs in the legacy image-only
// wire array.
func (f *HostedFile) IsImage() bool {
	return f.Kind == "image" || strings.HasPrefix(f.MIMEType, "image/")
}

// SandboxFile lives inside an ephemeral execution environment. Small
// files additionally carry their extracted text so they can travel as
// inline attachments (see InlineThreshold); KeepBinary forces the binary
// representation regardless of size.
type SandboxFile struct {
	ID               FileID
	Name             string
	Path             string
	Size             int64
	ExtractedContent string
	DownloadURL      string
	KeepBinary       bool
}

func (f *SandboxFile) FileName() string { return f.Name }
func (f *SandboxFile) isFile()          {}

// InlineAttachment carries its entire payload as text within the message
// record. It is immutable once constructed; re-homing one is a copy.
type InlineAttachment struct {
	Name             string
	MediaType        string
	Size             int64
	ExtractedContent string
}

func (f *InlineAttachment) FileName() string { return f.Name }
func (f *InlineAttachment) isFile()          {}

// DownloadLocator selects a retrieval URL for the file using a fixed
// priority order. It returns "" (not an error) when no locator exists;
// callers treat a missing locator as a skip.
func DownloadLocator(f File) string {
	switch v := f.(type) {
	case *HostedFile:
		for _, candidate := range []string{
			v.PreviewAsset,
			v.DocumentAsset,
			v.URL,
			v.ThumbnailAsset,
			v.ThumbnailURL,
		} {
			if candidate != "" {
				return candidate
			}
		}
		return ""
	case *SandboxFile:
		return v.DownloadURL
	default:
		return ""
	}
}

// HistoryFile returns the representation a file takes when serialized
// for conversation history: a sandbox file whose extracted content fits
// under InlineThreshold becomes an inline attachment unless KeepBinary
// is set. All other files pass through unchanged.
func HistoryFile(f File) File {
	sb, ok := f.(*SandboxFile)
	if !ok || sb.KeepBinary || sb.ExtractedContent == "" {
		return f
	}
	if len(sb.ExtractedContent) > InlineThreshold {
		return f
	}
	return &InlineAttachment{
		Name:             sb.Name,
		MediaType:        "text/plain",
		Size:             int64(len(sb.ExtractedContent)),
		ExtractedContent: sb.ExtractedContent,
	}
}
