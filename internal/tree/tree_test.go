package tree

import (
	"errors"
	"testing"
	"time"

	"github.com/user/chatgraft/internal/types"
)

func msgAt(t *testing.T, id, parent string, sender types.Sender, at time.Time) *types.Message {
	t.Helper()
	pid := types.RootID
	if parent != "" {
		pid = types.MessageID(parent)
	}
	return &types.Message{
		ID:        types.MessageID(id),
		ParentID:  pid,
		Sender:    sender,
		Content:   []types.ContentBlock{types.TextBlock("msg " + id)},
		CreatedAt: at,
	}
}

func TestAncestorPath_RootToLeafOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		msgAt(t, "b", "a", types.SenderAssistant, base.Add(time.Minute)),
		msgAt(t, "c", "b", types.SenderHuman, base.Add(2*time.Minute)),
		// A sibling branch that must not appear in the path.
		msgAt(t, "b2", "a", types.SenderAssistant, base.Add(3*time.Minute)),
	}
	idx := NewIndex(msgs)

	path, err := idx.AncestorPath("c")
	if err != nil {
		t.Fatalf("AncestorPath failed: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(path) != len(want) {
		t.Fatalf("path length = %d, want %d", len(path), len(want))
	}
	for i, id := range want {
		if string(path[i].ID) != id {
			t.Errorf("path[%d] = %s, want %s", i, path[i].ID, id)
		}
	}
}

func TestAncestorPath_DanglingParentFails(t *testing.T) {
	msgs := []*types.Message{
		msgAt(t, "b", "missing", types.SenderAssistant, time.Now()),
	}
	_, err := NewIndex(msgs).AncestorPath("b")
	var bce *types.BrokenChainError
	if !errors.As(err, &bce) {
		t.Fatalf("error = %v, want BrokenChainError", err)
	}
	if bce.Parent != "missing" {
		t.Errorf("Parent = %s, want missing", bce.Parent)
	}
}

func TestAncestorPath_CycleFails(t *testing.T) {
	now := time.Now()
	msgs := []*types.Message{
		msgAt(t, "a", "b", types.SenderHuman, now),
		msgAt(t, "b", "a", types.SenderAssistant, now),
	}
	if _, err := NewIndex(msgs).AncestorPath("b"); err == nil {
		t.Fatal("cycle should fail, got nil error")
	}
}

func TestDeepestLeaf_PrefersDepthThenRecency(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		// Short branch.
		msgAt(t, "b1", "a", types.SenderAssistant, base.Add(time.Minute)),
		// Deep branch.
		msgAt(t, "b2", "a", types.SenderAssistant, base.Add(2*time.Minute)),
		msgAt(t, "c", "b2", types.SenderHuman, base.Add(3*time.Minute)),
	}
	idx := NewIndex(msgs)

	info := idx.DeepestLeaf(types.RootID)
	if info.Leaf != "c" {
		t.Errorf("deepest leaf = %s, want c", info.Leaf)
	}
	if info.Depth != 2 {
		t.Errorf("depth = %d, want 2", info.Depth)
	}
	path, err := idx.AncestorPath(info.Leaf)
	if err != nil {
		t.Fatalf("AncestorPath failed: %v", err)
	}
	if len(path) != info.Depth+1 {
		t.Errorf("path length = %d, want depth+1 = %d", len(path), info.Depth+1)
	}

	// Two equally deep leaves: the newer one wins.
	msgs = append(msgs, msgAt(t, "c2", "b1", types.SenderHuman, base.Add(10*time.Minute)))
	info = NewIndex(msgs).DeepestLeaf(types.RootID)
	if info.Leaf != "c2" {
		t.Errorf("tie-break leaf = %s, want newer c2", info.Leaf)
	}
}

func TestDeepestLeaf_SingleMessageHasDepthZero(t *testing.T) {
	msgs := []*types.Message{
		msgAt(t, "only", "", types.SenderHuman, time.Now()),
	}
	info := NewIndex(msgs).DeepestLeaf(types.RootID)
	if info.Leaf != "only" || info.Depth != 0 {
		t.Errorf("leaf = %s depth = %d, want only/0", info.Leaf, info.Depth)
	}
}

func TestHasBranches(t *testing.T) {
	base := time.Now()
	linear := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		msgAt(t, "b", "a", types.SenderAssistant, base),
	}
	if NewIndex(linear).HasBranches() {
		t.Error("linear chain reported branches")
	}
	forked := append(linear, msgAt(t, "b2", "a", types.SenderAssistant, base))
	if !NewIndex(forked).HasBranches() {
		t.Error("forked chain reported no branches")
	}
}

func TestLinearBranch_UnlinkedSequencePassesThrough(t *testing.T) {
	base := time.Now()
	msgs := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		msgAt(t, "b", "", types.SenderAssistant, base),
	}
	got, err := LinearBranch(msgs)
	if err != nil {
		t.Fatalf("LinearBranch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
}

func TestRepairAlternation_InsertsFiller(t *testing.T) {
	base := time.Now()
	path := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		msgAt(t, "b", "a", types.SenderHuman, base.Add(time.Minute)),
	}
	out := RepairAlternation(path)
	if len(out) != 3 {
		t.Fatalf("repaired path has %d messages, want 3", len(out))
	}
	if out[1].Sender != types.SenderAssistant {
		t.Errorf("filler sender = %s, want assistant", out[1].Sender)
	}
	if out[1].ParentID != "a" {
		t.Errorf("filler parent = %s, want a", out[1].ParentID)
	}
	if out[2].ParentID != out[1].ID {
		t.Errorf("follower not re-parented onto filler")
	}
	if out[1].Text() != "Acknowledged." {
		t.Errorf("filler after human = %q", out[1].Text())
	}
}

func TestRepairAlternation_DropsContinuationFiller(t *testing.T) {
	base := time.Now()
	cont := msgAt(t, "x", "a", types.SenderAssistant, base)
	cont.Content = []types.ContentBlock{types.TextBlock("Acknowledged." + types.ContinuationMarker)}
	path := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		cont,
		msgAt(t, "b", "x", types.SenderHuman, base.Add(time.Minute)),
	}
	out := RepairAlternation(path)
	// The tagged filler is collapsed out, then a fresh filler is
	// inserted between the two adjacent human turns.
	if len(out) != 3 {
		t.Fatalf("repaired path has %d messages, want 3", len(out))
	}
	for _, m := range out {
		if m.ID == "x" {
			t.Fatal("continuation filler survived repair")
		}
	}
}

func TestRepairAlternation_Idempotent(t *testing.T) {
	base := time.Now()
	path := []*types.Message{
		msgAt(t, "a", "", types.SenderHuman, base),
		msgAt(t, "b", "a", types.SenderHuman, base.Add(time.Minute)),
		msgAt(t, "c", "b", types.SenderAssistant, base.Add(2*time.Minute)),
		msgAt(t, "d", "c", types.SenderAssistant, base.Add(3*time.Minute)),
	}
	once := RepairAlternation(path)
	twice := RepairAlternation(once)

	if len(once) != len(twice) {
		t.Fatalf("second repair changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("message %d changed identity on second repair", i)
		}
	}
	// Alternation holds after repair.
	for i := 1; i < len(once); i++ {
		if once[i].Sender == once[i-1].Sender {
			t.Errorf("messages %d and %d share a sender after repair", i-1, i)
		}
	}
}
