// internal/codec/bundle.go
package codec

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/user/chatgraft/internal/types"
)

// Downloader fetches the bytes behind a file locator.
type Downloader func(locator string) ([]byte, error)

// ExportBundle writes a zip holding the tagged-text conversation plus a
// files/ directory of binary assets named {basename}-{id}{ext}. Inline
// attachments are bundled too, suffixed _NOEXTRACT so re-import does not
// treat them as binary files. A file whose download fails is logged and
// skipped; the bundle still completes.
func ExportBundle(w io.Writer, messages []*types.Message, download Downloader) error {
	zw := zip.NewWriter(w)

	conv, err := zw.Create("conversation.txt")
	if err != nil {
		return fmt.Errorf("create conversation entry: %w", err)
	}
	if err := ExportTagged(conv, messages); err != nil {
		return fmt.Errorf("write tagged conversation: %w", err)
	}

	for _, m := range messages {
		for _, f := range m.Files {
			if err := bundleFile(zw, f, download); err != nil {
				slog.Warn("skipping file in bundle export",
					"file", f.FileName(), "error", err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}
	return nil
}

func bundleFile(zw *zip.Writer, f types.File, download Downloader) error {
	switch v := f.(type) {
	case *types.InlineAttachment:
		entry, err := zw.Create(bundleEntryName(v.Name, "", true))
		if err != nil {
			return fmt.Errorf("create bundle entry: %w", err)
		}
		_, err = entry.Write([]byte(v.ExtractedContent))
		return err
	default:
		locator := types.DownloadLocator(f)
		if locator == "" {
			// No locator is a skip, not a failure.
			return nil
		}
		data, err := download(locator)
		if err != nil {
			return &types.NetworkError{Op: "download " + f.FileName(), Err: err}
		}
		id := ""
		switch fv := f.(type) {
		case *types.HostedFile:
			id = string(fv.ID)
		case *types.SandboxFile:
			id = string(fv.ID)
		}
		entry, err := zw.Create(bundleEntryName(f.FileName(), id, false))
		if err != nil {
			return fmt.Errorf("create bundle entry: %w", err)
		}
		_, err = entry.Write(data)
		return err
	}
}

// bundleEntryName builds files/{basename}-{id}{ext}, or for inline
// attachments files/{basename}_NOEXTRACT{ext}.
func bundleEntryName(name, id string, inline bool) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(path.Base(name), ext)
	if inline {
		return "files/" + base + "_NOEXTRACT" + ext
	}
	return "files/" + base + "-" + id + ext
}
