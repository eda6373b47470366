// internal/tree/repair.go
package tree

import (
	"strings"

	"github.com/user/chatgraft/internal/types"
)

const (
	fillerAfterHuman     = "Acknowledged."
	fillerAfterAssistant = "Continue."
)

// RepairAlternation makes a linear path alternate human/assistant.
//
// Filler turns previously inserted by the oversized-message splitter
// (tagged with ContinuationMarker) are collapsed back out first, then a
// minimal synthetic turn is inserted between every adjacent same-sender
// pair. The filler inherits the preceding message's timestamp, gets a
// fresh id, and the following message is re-parented onto it. An already
// alternating path comes back unchanged.
func RepairAlternation(path []*types.Message) []*types.Message {
	path = dropContinuationFiller(path)

	out := make([]*types.Message, 0, len(path))
	for _, m := range path {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.Sender == m.Sender {
				filler := syntheticFiller(prev)
				out = append(out, filler)
				m.ParentID = filler.ID
			}
		}
		out = append(out, m)
	}
	return out
}

// dropContinuationFiller removes marker-tagged synthetic turns and
// repoints each survivor onto its nearest surviving ancestor.
func dropContinuationFiller(path []*types.Message) []*types.Message {
	kept := make([]*types.Message, 0, len(path))
	for _, m := range path {
		if strings.Contains(m.Text(), types.ContinuationMarker) {
			continue
		}
		if len(kept) > 0 {
			last := kept[len(kept)-1]
			if m.ParentID != last.ID {
				m.ParentID = last.ID
			}
		}
		kept = append(kept, m)
	}
	return kept
}

func syntheticFiller(prev *types.Message) *types.Message {
	text := fillerAfterAssistant
	if prev.Sender == types.SenderHuman {
		text = fillerAfterHuman
	}
	return &types.Message{
		ID:        types.NewMessageID(),
		ParentID:  prev.ID,
		Sender:    prev.Sender.Other(),
		Content:   []types.ContentBlock{types.TextBlock(text)},
		CreatedAt: prev.CreatedAt,
	}
}
