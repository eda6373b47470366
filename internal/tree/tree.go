// internal/tree/tree.go

// Package tree reconstructs linear conversation paths from raw branching
// message sets.
package tree

import (
	"sort"
	"time"

	"github.com/user/chatgraft/internal/types"
)

// Index holds a message set keyed for tree queries.
type Index struct {
	byID     map[types.MessageID]*types.Message
	children map[types.MessageID][]*types.Message
}

// NewIndex builds lookup maps over the given message set. Children are
// ordered by creation time, oldest first.
func NewIndex(messages []*types.Message) *Index {
	idx := &Index{
		byID:     make(map[types.MessageID]*types.Message, len(messages)),
		children: make(map[types.MessageID][]*types.Message),
	}
	for _, m := range messages {
		idx.byID[m.ID] = m
		idx.children[m.ParentID] = append(idx.children[m.ParentID], m)
	}
	for parent := range idx.children {
		kids := idx.children[parent]
		sort.SliceStable(kids, func(i, j int) bool {
			return kids[i].CreatedAt.Before(kids[j].CreatedAt)
		})
	}
	return idx
}

// Get returns the message with the given id, or nil.
func (idx *Index) Get(id types.MessageID) *types.Message { return idx.byID[id] }

// Children returns the direct children of the given message id.
func (idx *Index) Children(id types.MessageID) []*types.Message { return idx.children[id] }

// HasBranches reports whether any parent in the set has more than one
// child, i.e. whether selecting a single path discards messages.
func (idx *Index) HasBranches() bool {
	for _, kids := range idx.children {
		if len(kids) > 1 {
			return true
		}
	}
	return false
}

// AncestorPath walks parent links from leaf back to the root sentinel and
// returns the path in root-to-leaf order. A reference to a parent that is
// absent from the set fails with BrokenChainError.
func (idx *Index) AncestorPath(leaf types.MessageID) ([]*types.Message, error) {
	var reversed []*types.Message
	seen := make(map[types.MessageID]bool)
	cur := leaf
	for cur != types.RootID {
		m := idx.byID[cur]
		if m == nil {
			child := types.RootID
			if len(reversed) > 0 {
				child = reversed[len(reversed)-1].ID
			}
			return nil, &types.BrokenChainError{Child: child, Parent: cur}
		}
		if seen[cur] {
			return nil, &types.BrokenChainError{Child: m.ID, Parent: m.ParentID}
		}
		seen[cur] = true
		reversed = append(reversed, m)
		cur = m.ParentID
	}
	path := make([]*types.Message, len(reversed))
	for i, m := range reversed {
		path[len(reversed)-1-i] = m
	}
	return path, nil
}

// LeafInfo describes the endpoint of the deepest branch under a node.
type LeafInfo struct {
	Leaf      types.MessageID
	Depth     int
	CreatedAt time.Time
}

// DeepestLeaf finds the leaf at maximum depth below from. Depth counts
// edges between real messages: the children of from sit at depth 0, so
// a path of N messages ends at depth N-1. Ties between equally deep
// branches go to the leaf with the larger creation timestamp. A node
// with no children has depth 0. The walk is iterative so adversarial
// depths cannot overflow the stack, and a visited set guards against
// cycles in corrupt input.
func (idx *Index) DeepestLeaf(from types.MessageID) LeafInfo {
	type frame struct {
		id    types.MessageID
		depth int
	}
	best := LeafInfo{Leaf: from}
	if m := idx.byID[from]; m != nil {
		best.CreatedAt = m.CreatedAt
	}
	kids := idx.children[from]
	if len(kids) == 0 {
		return best
	}

	best.Depth = -1
	visited := map[types.MessageID]bool{from: true}
	stack := make([]frame, 0, len(kids))
	for _, kid := range kids {
		stack = append(stack, frame{id: kid.ID})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.id] {
			continue
		}
		visited[f.id] = true

		kids := idx.children[f.id]
		if len(kids) == 0 {
			at := time.Time{}
			if m := idx.byID[f.id]; m != nil {
				at = m.CreatedAt
			}
			if f.depth > best.Depth ||
				(f.depth == best.Depth && at.After(best.CreatedAt)) {
				best = LeafInfo{Leaf: f.id, Depth: f.depth, CreatedAt: at}
			}
			continue
		}
		for _, kid := range kids {
			stack = append(stack, frame{id: kid.ID, depth: f.depth + 1})
		}
	}
	if best.Depth < 0 {
		best.Depth = 0
	}
	return best
}

// LinearBranch selects the path for imported linear formats where no
// explicit tree exists: the last message is the implicit leaf. When the
// messages carry parent pointers the ancestor path is walked; when they
// do not, the whole sequence is the path.
func LinearBranch(messages []*types.Message) ([]*types.Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	linked := false
	for _, m := range messages {
		if m.ParentID != types.RootID && m.ParentID != "" {
			linked = true
			break
		}
	}
	if !linked {
		return messages, nil
	}
	return NewIndex(messages).AncestorPath(messages[len(messages)-1].ID)
}
