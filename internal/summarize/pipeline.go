// internal/summarize/pipeline.go

// Package summarize drives the chunk-by-chunk summarization of a long
// conversation path through an external oracle, with a user review step
// between drafting and finalization.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/chatgraft/internal/chunk"
	"github.com/user/chatgraft/internal/rehome"
	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/tree"
	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

// State reports where a run currently is. Writes to the destination
// happen only in Finalizing, so cancellation before that commits
// nothing.
type State int

const (
	StateIdle State = iota
	StateChunking
	StateSummarizing
	StateUserReview
	StateFinalizing
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChunking:
		return "chunking"
	case StateSummarizing:
		return "summarizing"
	case StateUserReview:
		return "review"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ErrCancelled is returned by a Reviewer to abort the run.
var ErrCancelled = errors.New("summarization cancelled")

// ErrNothingToSummarize means the path fits in a single chunk.
var ErrNothingToSummarize = errors.New("conversation fits in a single chunk, nothing to summarize")

const summaryAckText = "I have read the summarized context above and will continue from it."

// Reviser asks the oracle to redo the draft for one chunk given a
// free-text instruction, returning the replacement draft.
type Reviser func(ctx context.Context, i int, draft, instruction string) (string, error)

// Reviewer presents drafts for manual editing, one per chunk. It
// returns the (possibly edited) summaries in order, or ErrCancelled to
// abort the whole run.
type Reviewer interface {
	Review(ctx context.Context, drafts []string, revise Reviser) ([]string, error)
}

// Options tunes a single run.
type Options struct {
	// PreserveFiles ride on the first synthesized summary turn.
	PreserveFiles []types.File
}

// Result is the synthetic head produced by finalization: one
// human/assistant pair per chunk summary, followed by the kept-verbatim
// tail re-parented onto the last pair.
type Result struct {
	Messages  []*types.Message
	Summaries []string
}

// Pipeline owns the summarization state machine for one run at a time.
type Pipeline struct {
	acc      *store.Accessor
	client   *store.Client
	rehomer  *rehome.Rehomer
	chunker  *chunk.Chunker
	provider oracle.Provider
	reviewer Reviewer

	mu         sync.Mutex
	state      State
	chunkIndex int
}

func NewPipeline(acc *store.Accessor, client *store.Client, rehomer *rehome.Rehomer, chunker *chunk.Chunker, provider oracle.Provider, reviewer Reviewer) *Pipeline {
	return &Pipeline{
		acc:      acc,
		client:   client,
		rehomer:  rehomer,
		chunker:  chunker,
		provider: provider,
		reviewer: reviewer,
	}
}

// State returns the current state and, while summarizing, the chunk
// index being worked.
func (p *Pipeline) State() (State, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.chunkIndex
}

func (p *Pipeline) setState(s State, i int) {
	p.mu.Lock()
	p.state = s
	p.chunkIndex = i
	p.mu.Unlock()
}

// Run executes the whole state machine for one conversation. Any oracle
// failure aborts the run with no partial result. The returned Result is
// not written anywhere; committing it is the caller's decision.
func (p *Pipeline) Run(ctx context.Context, id types.ConversationID, opts Options) (*Result, error) {
	p.setState(StateChunking, 0)

	path, err := p.acc.ActivePath(ctx, id, store.FetchOptions{ForceRefresh: true})
	if err != nil {
		p.setState(StateIdle, 0)
		return nil, fmt.Errorf("fetch active path: %w", err)
	}
	path = tree.RepairAlternation(path)
	path = p.expandOversized(path)

	chunks := p.chunker.Partition(path)
	if len(chunks) < 2 {
		p.setState(StateIdle, 0)
		return nil, ErrNothingToSummarize
	}
	fronts, tail := chunks[:len(chunks)-1], chunks[len(chunks)-1]

	scratch, err := p.client.Create(ctx, "summarization scratch", store.CreateOptions{})
	if err != nil {
		p.setState(StateIdle, 0)
		return nil, fmt.Errorf("create scratch conversation: %w", err)
	}
	defer func() {
		if err := p.client.Delete(context.Background(), scratch); err != nil {
			slog.Warn("could not delete scratch conversation",
				"conversation", scratch, "error", err)
		}
	}()

	summaries := make([]string, 0, len(fronts))
	for i, ch := range fronts {
		p.setState(StateSummarizing, i)
		ids := p.rehomeChunkFiles(ctx, ch, scratch)
		turn, err := buildTurn(ch, summaries, ids)
		if err != nil {
			p.setState(StateIdle, 0)
			return nil, err
		}
		resp, err := p.provider.Submit(ctx, string(scratch), turn)
		if err != nil {
			p.setState(StateIdle, 0)
			return nil, fmt.Errorf("summarize chunk %d: %w", i, err)
		}
		summaries = append(summaries, resp.Text)
	}

	p.setState(StateUserReview, 0)
	revise := func(ctx context.Context, i int, draft, instruction string) (string, error) {
		if i < 0 || i >= len(fronts) {
			return "", fmt.Errorf("no chunk %d", i)
		}
		turn, err := buildReviseTurn(fronts[i], summaries[:i], draft, instruction)
		if err != nil {
			return "", err
		}
		resp, err := p.provider.Submit(ctx, string(scratch), turn)
		if err != nil {
			return "", fmt.Errorf("revise chunk %d: %w", i, err)
		}
		return resp.Text, nil
	}
	edited, err := p.reviewer.Review(ctx, summaries, revise)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			p.setState(StateCancelled, 0)
		} else {
			p.setState(StateIdle, 0)
		}
		return nil, err
	}
	if len(edited) != len(fronts) {
		p.setState(StateIdle, 0)
		return nil, fmt.Errorf("reviewer returned %d summaries for %d chunks", len(edited), len(fronts))
	}

	p.setState(StateFinalizing, 0)
	res := Finalize(edited, tail, opts)
	p.setState(StateDone, 0)
	return res, nil
}

// Finalize synthesizes the new conversation head: a human turn carrying
// each summary and a fixed assistant acknowledgment, chained by parent
// ID, with the verbatim tail re-parented onto the last pair.
func Finalize(summaries []string, tail []*types.Message, opts Options) *Result {
	out := make([]*types.Message, 0, 2*len(summaries)+len(tail))
	parent := types.RootID
	for i, s := range summaries {
		human := types.NewTextMessage(types.SenderHuman, s, parent)
		if i == 0 {
			human.Files = opts.PreserveFiles
		}
		ack := types.NewTextMessage(types.SenderAssistant, summaryAckText, human.ID)
		out = append(out, human, ack)
		parent = ack.ID
	}
	for i, m := range tail {
		cp := *m
		if i == 0 {
			cp.ParentID = parent
		}
		out = append(out, &cp)
	}
	for i, m := range out {
		m.Index = i
	}
	return &Result{Messages: out, Summaries: summaries}
}

// expandOversized replaces any message whose inline attachments alone
// overflow the last-chunk budget with its split sequence.
func (p *Pipeline) expandOversized(path []*types.Message) []*types.Message {
	out := make([]*types.Message, 0, len(path))
	for _, m := range path {
		out = append(out, p.chunker.SplitOversized(m, chunk.LastChunkTokens)...)
	}
	return out
}

// rehomeChunkFiles copies a chunk's hosted and sandbox files into the
// scratch conversation so the oracle can read them there. Inline
// attachments already travel in the transcript and are skipped.
func (p *Pipeline) rehomeChunkFiles(ctx context.Context, ch []*types.Message, scratch types.ConversationID) []string {
	var files []types.File
	for _, m := range ch {
		for _, f := range m.Files {
			if _, inline := f.(*types.InlineAttachment); inline {
				continue
			}
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil
	}
	copied := p.rehomer.RehomeAll(ctx, files, rehome.Target{Conversation: scratch})
	ids := make([]string, 0, len(copied))
	for _, f := range copied {
		switch v := f.(type) {
		case *types.HostedFile:
			ids = append(ids, string(v.ID))
		case *types.SandboxFile:
			ids = append(ids, string(v.ID))
		}
	}
	return ids
}
