// internal/phantom/engine.go
package phantom

import (
	"context"
	"log/slog"
	"sync"

	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

const phantomAckText = "Understood." + types.PhantomMarker

// Engine splices stored overlays into fetched message lists and fixes
// up outgoing parent references so the remote store never learns of the
// phantom messages.
type Engine struct {
	store *Store

	mu         sync.Mutex
	lastSplice map[types.ConversationID]types.MessageID
}

func NewEngine(s *Store) *Engine {
	return &Engine{
		store:      s,
		lastSplice: make(map[types.ConversationID]types.MessageID),
	}
}

// Register hooks the engine into an accessor pipeline: overlay splice
// on read, parent correction on write.
func (e *Engine) Register(pipe *store.Pipeline) {
	pipe.OnRead(func(id types.ConversationID, msgs []*types.Message) []*types.Message {
		return e.Read(context.Background(), id, msgs)
	})
	pipe.OnWrite(func(id types.ConversationID, turn *oracle.Turn) {
		e.CorrectParent(id, turn)
	})
}

// Read returns the conversation's messages with its overlay spliced in
// front. Phantom text carries the invisible marker, indexes are
// recomputed to stay contiguous, and real root messages are re-pointed
// at the last phantom so ancestor walks cross the seam. A store error
// is logged and the real messages pass through unchanged.
func (e *Engine) Read(ctx context.Context, id types.ConversationID, msgs []*types.Message) []*types.Message {
	overlay, err := e.store.Overlay(ctx, id)
	if err != nil {
		slog.Warn("overlay lookup failed, serving conversation unmodified",
			"conversation", id, "error", err)
		return msgs
	}
	if len(overlay) == 0 {
		e.rememberSplice(id, "")
		return msgs
	}

	spliced := make([]*types.Message, 0, len(overlay)+len(msgs)+1)
	parent := types.RootID
	for _, pm := range overlay {
		cp := *pm
		cp.ParentID = parent
		cp.Content = markPhantom(cp.Content)
		spliced = append(spliced, &cp)
		parent = cp.ID
	}

	// The seam must hand off to a human turn on the real side. When the
	// overlay itself ends on a human turn, close it with a synthetic
	// assistant acknowledgment.
	if spliced[len(spliced)-1].Sender == types.SenderHuman {
		ack := types.NewTextMessage(types.SenderAssistant, phantomAckText, parent)
		ack.CreatedAt = spliced[len(spliced)-1].CreatedAt
		spliced = append(spliced, ack)
		parent = ack.ID
	}
	e.rememberSplice(id, parent)

	for _, m := range msgs {
		cp := *m
		if cp.ParentID == types.RootID || cp.ParentID == "" {
			cp.ParentID = parent
		}
		spliced = append(spliced, &cp)
	}
	for i, m := range spliced {
		m.Index = i
	}
	return spliced
}

// CorrectParent rewrites an outgoing turn whose parent is the overlay
// seam back to the root sentinel, since the remote store has no record
// of any phantom ID.
func (e *Engine) CorrectParent(id types.ConversationID, turn *oracle.Turn) {
	e.mu.Lock()
	seam := e.lastSplice[id]
	e.mu.Unlock()
	if seam != "" && turn.ParentID == string(seam) {
		turn.ParentID = string(types.RootID)
	}
}

func (e *Engine) rememberSplice(id types.ConversationID, seam types.MessageID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seam == "" {
		delete(e.lastSplice, id)
		return
	}
	e.lastSplice[id] = seam
}

// markPhantom appends the phantom marker to every text block, copying
// the block slice so the stored overlay is never mutated.
func markPhantom(blocks []types.ContentBlock) []types.ContentBlock {
	out := make([]types.ContentBlock, len(blocks))
	copy(out, blocks)
	for i := range out {
		if out[i].Type == types.BlockText {
			out[i].Text += types.PhantomMarker
		}
	}
	return out
}
