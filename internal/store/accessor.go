// internal/store/accessor.go
package store

import (
	"context"
	"sync"

	"github.com/user/chatgraft/internal/tree"
	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

// FetchOptions controls a message fetch.
type FetchOptions struct {
	// AsTree requests server-side tree hydration, needed before branch
	// queries.
	AsTree bool
	// ForceRefresh bypasses the cache.
	ForceRefresh bool
}

type cachedConversation struct {
	data     *ConversationData
	messages []*types.Message
	asTree   bool
}

// Accessor caches fetched conversations and answers tree queries over
// them. Read and write transforms registered on its pipeline run on
// every fetch and every submitted turn.
type Accessor struct {
	client *Client
	pipe   *Pipeline

	mu    sync.RWMutex
	cache map[types.ConversationID]*cachedConversation
}

// NewAccessor wraps a client with a cache and a transform pipeline. A
// nil pipeline gets an empty one.
func NewAccessor(client *Client, pipe *Pipeline) *Accessor {
	if pipe == nil {
		pipe = NewPipeline()
	}
	return &Accessor{
		client: client,
		pipe:   pipe,
		cache:  make(map[types.ConversationID]*cachedConversation),
	}
}

// Pipeline returns the accessor's transform pipeline for registration.
func (a *Accessor) Pipeline() *Pipeline { return a.pipe }

// Client returns the underlying store client.
func (a *Accessor) Client() *Client { return a.client }

func (a *Accessor) fetch(ctx context.Context, id types.ConversationID, opts FetchOptions) (*cachedConversation, error) {
	a.mu.RLock()
	entry, ok := a.cache[id]
	a.mu.RUnlock()
	if ok && !opts.ForceRefresh && (entry.asTree || !opts.AsTree) {
		return entry, nil
	}

	data, err := a.client.Fetch(ctx, id, opts.AsTree)
	if err != nil {
		return nil, err
	}
	messages := make([]*types.Message, 0, len(data.ChatMessages))
	for _, wm := range data.ChatMessages {
		messages = append(messages, types.MessageFromWire(wm))
	}
	messages = a.pipe.ApplyRead(id, messages)

	entry = &cachedConversation{data: data, messages: messages, asTree: opts.AsTree}
	a.mu.Lock()
	a.cache[id] = entry
	a.mu.Unlock()
	return entry, nil
}

// Messages returns the conversation's message set, served from cache
// unless a refresh is forced.
func (a *Accessor) Messages(ctx context.Context, id types.ConversationID, opts FetchOptions) ([]*types.Message, error) {
	entry, err := a.fetch(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return entry.messages, nil
}

// Metadata returns the conversation's fetched metadata.
func (a *Accessor) Metadata(ctx context.Context, id types.ConversationID, opts FetchOptions) (*ConversationData, error) {
	entry, err := a.fetch(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return entry.data, nil
}

// DeepestLeaf finds the deepest leaf below from in the conversation's
// message tree, ties going to the most recent.
func (a *Accessor) DeepestLeaf(ctx context.Context, id types.ConversationID, from types.MessageID) (tree.LeafInfo, error) {
	entry, err := a.fetch(ctx, id, FetchOptions{AsTree: true})
	if err != nil {
		return tree.LeafInfo{}, err
	}
	return tree.NewIndex(entry.messages).DeepestLeaf(from), nil
}

// ActivePath returns the root-to-leaf path ending at the conversation's
// current leaf, falling back to the deepest leaf when no pointer is set.
func (a *Accessor) ActivePath(ctx context.Context, id types.ConversationID, opts FetchOptions) ([]*types.Message, error) {
	opts.AsTree = true
	entry, err := a.fetch(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	idx := tree.NewIndex(entry.messages)
	leaf := entry.data.CurrentLeaf
	if leaf == "" || idx.Get(leaf) == nil {
		leaf = idx.DeepestLeaf(types.RootID).Leaf
	}
	return idx.AncestorPath(leaf)
}

// SetActiveLeaf forwards the leaf-pointer update and drops the cached
// entry so the next read observes it.
func (a *Accessor) SetActiveLeaf(ctx context.Context, id types.ConversationID, leaf types.MessageID) error {
	if err := a.client.SetActiveLeaf(ctx, id, leaf); err != nil {
		return err
	}
	a.Invalidate(id)
	return nil
}

// Submit applies write transforms to the turn, forwards it, and
// invalidates the cache for the conversation.
func (a *Accessor) Submit(ctx context.Context, id types.ConversationID, turn oracle.Turn) (oracle.Response, error) {
	a.pipe.ApplyWrite(id, &turn)
	resp, err := a.client.Submit(ctx, string(id), turn)
	if err != nil {
		return oracle.Response{}, err
	}
	a.Invalidate(id)
	return resp, nil
}

// Invalidate drops the cached entry for a conversation.
func (a *Accessor) Invalidate(id types.ConversationID) {
	a.mu.Lock()
	delete(a.cache, id)
	a.mu.Unlock()
}
