// internal/rehome/rehome.go

// Package rehome copies file references into a different conversation
// scope, since file identifiers are not portable across conversations.
package rehome

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/chatgraft/internal/types"
)

// ErrNoLocator marks a hosted or sandbox file with no retrievable
// download locator. Bulk operations treat it as a skip.
var ErrNoLocator = errors.New("file has no download locator")

// Uploader is the slice of the file store API re-homing needs.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*types.HostedFile, error)
	SandboxUpload(ctx context.Context, conversationID types.ConversationID, filename string, data []byte) (*types.SandboxFile, error)
	Download(ctx context.Context, locator string) ([]byte, error)
}

// Target identifies where re-homed copies land. Sandbox upload is chosen
// when the target conversation has code execution enabled.
type Target struct {
	Conversation         types.ConversationID
	CodeExecutionEnabled bool
}

// Rehomer performs re-homing against a file store, with a rate-limiting
// delay between bulk items.
type Rehomer struct {
	files     Uploader
	delay     time.Duration
	cancelled atomic.Bool
}

// New creates a Rehomer. delay spaces successive items within each bulk
// lane to stay under the remote's rate limits.
func New(files Uploader, delay time.Duration) *Rehomer {
	return &Rehomer{files: files, delay: delay}
}

// Cancel requests cooperative cancellation: in-flight transfers finish,
// subsequent bulk iterations are skipped.
func (r *Rehomer) Cancel() { r.cancelled.Store(true) }

// Rehome produces a copy of f valid in the target conversation scope.
// Inline attachments copy without I/O. Hosted and sandbox files are
// downloaded and re-uploaded; failures wrap into RehomeError. Repeated
// calls produce independent new copies and never mutate the source.
func (r *Rehomer) Rehome(ctx context.Context, f types.File, target Target) (types.File, error) {
	if att, ok := f.(*types.InlineAttachment); ok {
		copied := *att
		return &copied, nil
	}

	locator := types.DownloadLocator(f)
	if locator == "" {
		return nil, &types.RehomeError{FileName: f.FileName(), Err: ErrNoLocator}
	}
	data, err := r.files.Download(ctx, locator)
	if err != nil {
		return nil, &types.RehomeError{FileName: f.FileName(), Err: err}
	}

	if target.CodeExecutionEnabled {
		uploaded, err := r.files.SandboxUpload(ctx, target.Conversation, f.FileName(), data)
		if err != nil {
			return nil, &types.RehomeError{FileName: f.FileName(), Err: err}
		}
		return uploaded, nil
	}
	uploaded, err := r.files.Upload(ctx, f.FileName(), data)
	if err != nil {
		return nil, &types.RehomeError{FileName: f.FileName(), Err: err}
	}
	return uploaded, nil
}

// RehomeAll re-homes a worklist, splitting it into two interleaved
// halves processed concurrently to bound wall-clock time against the
// rate-limited remote. A failed file is logged and skipped so one bad
// file does not abort the whole batch. Order of the input is preserved
// in the result.
func (r *Rehomer) RehomeAll(ctx context.Context, files []types.File, target Target) []types.File {
	results := make([]types.File, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for lane := 0; lane < 2; lane++ {
		start := lane
		g.Go(func() error {
			for i := start; i < len(files); i += 2 {
				if r.cancelled.Load() {
					return nil
				}
				if i != start {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(r.delay):
					}
				}
				copied, err := r.Rehome(ctx, files[i], target)
				if err != nil {
					slog.Warn("skipping file during bulk re-home",
						"file", files[i].FileName(), "error", err)
					continue
				}
				results[i] = copied
			}
			return nil
		})
	}
	// Lanes only log and skip; the group never returns an error.
	_ = g.Wait()

	out := make([]types.File, 0, len(results))
	for _, f := range results {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
