// internal/store/pipeline.go
package store

import (
	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

// ReadTransform rewrites a fetched message list before callers see it.
type ReadTransform func(id types.ConversationID, messages []*types.Message) []*types.Message

// WriteTransform rewrites an outgoing turn before it reaches the remote.
type WriteTransform func(id types.ConversationID, turn *oracle.Turn)

// Pipeline is an ordered set of request/response transforms applied by
// the accessor. The phantom overlay registers a read transform (splice)
// and a write transform (parent-id correction) here instead of patching
// any transport globals.
type Pipeline struct {
	reads  []ReadTransform
	writes []WriteTransform
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// OnRead appends a read transform; transforms run in registration order.
func (p *Pipeline) OnRead(t ReadTransform) {
	p.reads = append(p.reads, t)
}

// OnWrite appends a write transform; transforms run in registration
// order.
func (p *Pipeline) OnWrite(t WriteTransform) {
	p.writes = append(p.writes, t)
}

// ApplyRead runs all read transforms over a fetched message list.
func (p *Pipeline) ApplyRead(id types.ConversationID, messages []*types.Message) []*types.Message {
	for _, t := range p.reads {
		messages = t(id, messages)
	}
	return messages
}

// ApplyWrite runs all write transforms over an outgoing turn in place.
func (p *Pipeline) ApplyWrite(id types.ConversationID, turn *oracle.Turn) {
	for _, t := range p.writes {
		t(id, turn)
	}
}
