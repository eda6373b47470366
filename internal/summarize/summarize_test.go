package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/chatgraft/internal/chunk"
	"github.com/user/chatgraft/internal/rehome"
	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

// fakeOracle answers every turn with a numbered summary and records
// what it was asked.
type fakeOracle struct {
	mu    sync.Mutex
	turns []oracle.Turn
	fail  bool
}

func (f *fakeOracle) Submit(_ context.Context, _ string, turn oracle.Turn) (oracle.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return oracle.Response{}, errors.New("oracle unavailable")
	}
	f.turns = append(f.turns, turn)
	return oracle.Response{
		MessageID: fmt.Sprintf("resp-%d", len(f.turns)),
		Text:      fmt.Sprintf("summary %d", len(f.turns)),
	}, nil
}

// testHarness wires a pipeline against an httptest conversation store
// holding one long conversation.
type testHarness struct {
	pipe     *Pipeline
	provider *fakeOracle
	created  *atomic.Int32
	deleted  *atomic.Int32
}

func newHarness(t *testing.T, reviewer Reviewer) *testHarness {
	t.Helper()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var wire []types.WireMessage
	parent := ""
	for i := 0; i < 40; i++ {
		sender := "human"
		if i%2 == 1 {
			sender = "assistant"
		}
		id := fmt.Sprintf("m%d", i)
		wire = append(wire, types.WireMessage{
			UUID:       id,
			ParentUUID: parent,
			Sender:     sender,
			Content:    []types.ContentBlock{types.TextBlock(strings.Repeat("w", 8000))},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		parent = id
	}

	created := &atomic.Int32{}
	deleted := &atomic.Int32{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/organizations/org1/conversations/c1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(store.ConversationData{
			ID:           "c1",
			Name:         "long chat",
			CurrentLeaf:  "m39",
			ChatMessages: wire,
		})
	})
	mux.HandleFunc("POST /api/organizations/org1/conversations", func(w http.ResponseWriter, r *http.Request) {
		created.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"uuid": "scratch"})
	})
	mux.HandleFunc("DELETE /api/organizations/org1/conversations/scratch", func(w http.ResponseWriter, r *http.Request) {
		deleted.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := store.NewClient(oracle.Config{BaseURL: srv.URL, Org: "org1"})
	acc := store.NewAccessor(client, nil)
	files := store.NewFileClient(client)
	provider := &fakeOracle{}

	pipe := NewPipeline(acc, client, rehome.New(files, 0), chunk.New(nil), provider, reviewer)
	return &testHarness{pipe: pipe, provider: provider, created: created, deleted: deleted}
}

type passReviewer struct{}

func (passReviewer) Review(_ context.Context, drafts []string, _ Reviser) ([]string, error) {
	return drafts, nil
}

func TestRun_SummarizesFrontChunksAndKeepsTail(t *testing.T) {
	h := newHarness(t, passReviewer{})

	res, err := h.pipe.Run(context.Background(), "c1", Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Summaries) == 0 {
		t.Fatal("no summaries produced")
	}
	if len(h.provider.turns) != len(res.Summaries) {
		t.Errorf("oracle saw %d turns for %d summaries", len(h.provider.turns), len(res.Summaries))
	}

	// Head pairs: human summary then assistant acknowledgment.
	for i, s := range res.Summaries {
		human := res.Messages[2*i]
		ack := res.Messages[2*i+1]
		if human.Sender != types.SenderHuman || human.Text() != s {
			t.Errorf("pair %d human turn = %q", i, human.Text())
		}
		if ack.Sender != types.SenderAssistant {
			t.Errorf("pair %d ack sender = %s", i, ack.Sender)
		}
		if ack.ParentID != human.ID {
			t.Errorf("pair %d ack not chained", i)
		}
	}

	// The verbatim tail follows, re-parented onto the last pair.
	tailStart := 2 * len(res.Summaries)
	if tailStart >= len(res.Messages) {
		t.Fatal("result has no verbatim tail")
	}
	if res.Messages[tailStart].ParentID != res.Messages[tailStart-1].ID {
		t.Error("tail not re-parented onto the last pair")
	}
	for i, m := range res.Messages {
		if m.Index != i {
			t.Errorf("message %d has index %d", i, m.Index)
		}
	}

	// The scratch conversation is created once and deleted afterwards.
	if h.created.Load() != 1 || h.deleted.Load() != 1 {
		t.Errorf("scratch lifecycle: created %d, deleted %d", h.created.Load(), h.deleted.Load())
	}

	if state, _ := h.pipe.State(); state != StateDone {
		t.Errorf("final state = %s", state)
	}
}

func TestRun_ThreadsPriorSummariesForward(t *testing.T) {
	h := newHarness(t, passReviewer{})

	res, err := h.pipe.Run(context.Background(), "c1", Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Summaries) < 2 {
		t.Fatalf("need at least 2 chunks to check threading, got %d", len(res.Summaries))
	}

	first := h.provider.turns[0]
	if len(first.Attachments) != 0 {
		t.Errorf("first chunk carried %d attachments, want none", len(first.Attachments))
	}
	second := h.provider.turns[1]
	if len(second.Attachments) != 1 {
		t.Fatalf("second chunk carried %d attachments, want prior-summary attachment", len(second.Attachments))
	}
	att := second.Attachments[0]
	if !strings.Contains(att.ExtractedContent, "summary 1") {
		t.Errorf("prior-summary attachment = %q", att.ExtractedContent)
	}
	if !strings.Contains(att.ExtractedContent, "Do NOT re-summarize") {
		t.Error("prior-summary attachment lacks the already-summarized warning")
	}
}

func TestRun_OracleFailureAbortsAndCleansUp(t *testing.T) {
	h := newHarness(t, passReviewer{})
	h.provider.fail = true

	_, err := h.pipe.Run(context.Background(), "c1", Options{})
	if err == nil {
		t.Fatal("Run succeeded despite oracle failure")
	}
	if h.deleted.Load() != 1 {
		t.Error("scratch conversation not deleted after failure")
	}
}

type cancelReviewer struct{}

func (cancelReviewer) Review(_ context.Context, _ []string, _ Reviser) ([]string, error) {
	return nil, ErrCancelled
}

func TestRun_ReviewerCancelAbortsWithoutResult(t *testing.T) {
	h := newHarness(t, cancelReviewer{})

	_, err := h.pipe.Run(context.Background(), "c1", Options{})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if state, _ := h.pipe.State(); state != StateCancelled {
		t.Errorf("state = %s, want cancelled", state)
	}
	if h.deleted.Load() != 1 {
		t.Error("scratch conversation not deleted after cancellation")
	}
}

type revisingReviewer struct{}

func (revisingReviewer) Review(ctx context.Context, drafts []string, revise Reviser) ([]string, error) {
	out := make([]string, len(drafts))
	copy(out, drafts)
	replacement, err := revise(ctx, 0, out[0], "make it shorter")
	if err != nil {
		return nil, err
	}
	out[0] = replacement
	return out, nil
}

func TestRun_ReviseResendsChunkMaterials(t *testing.T) {
	h := newHarness(t, revisingReviewer{})

	res, err := h.pipe.Run(context.Background(), "c1", Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The revise turn carries the draft and the instruction.
	last := h.provider.turns[len(h.provider.turns)-1]
	if !strings.Contains(last.Prompt, "make it shorter") {
		t.Error("revise turn missing the instruction")
	}
	if !strings.Contains(last.Prompt, "summary 1") {
		t.Error("revise turn missing the current draft")
	}
	// The replacement becomes the first finalized summary.
	want := fmt.Sprintf("summary %d", len(h.provider.turns))
	if res.Summaries[0] != want {
		t.Errorf("first summary = %q, want revised %q", res.Summaries[0], want)
	}
}

func TestBuildTurn_ProjectsMessageMaterials(t *testing.T) {
	transcript := []*types.Message{
		types.NewTextMessage(types.SenderHuman, "the question", types.RootID),
		types.NewTextMessage(types.SenderAssistant, "the answer", "q"),
	}

	turn, err := buildTurn(transcript, []string{"earlier context"}, []string{"f1", "f2"})
	if err != nil {
		t.Fatalf("buildTurn failed: %v", err)
	}
	if turn.ParentID != string(types.RootID) {
		t.Errorf("parent = %q, want root sentinel", turn.ParentID)
	}
	if !strings.Contains(turn.Prompt, "the question") || !strings.Contains(turn.Prompt, "the answer") {
		t.Error("prompt missing transcript content")
	}
	if len(turn.Attachments) != 1 || turn.Attachments[0].FileName != priorSummariesFileName {
		t.Fatalf("attachments = %+v", turn.Attachments)
	}
	if !strings.Contains(turn.Attachments[0].ExtractedContent, "earlier context") {
		t.Error("prior summary not carried in the attachment")
	}
	if len(turn.FileIDs) != 2 || turn.FileIDs[0] != "f1" || turn.FileIDs[1] != "f2" {
		t.Errorf("file ids = %v", turn.FileIDs)
	}
}

func TestFinalize_PreservesFilesOnFirstPair(t *testing.T) {
	att := &types.InlineAttachment{Name: "keep.txt", ExtractedContent: "kept"}
	tail := []*types.Message{
		types.NewTextMessage(types.SenderHuman, "recent question", "old-parent"),
		types.NewTextMessage(types.SenderAssistant, "recent answer", "recent"),
	}

	res := Finalize([]string{"s1", "s2"}, tail, Options{PreserveFiles: []types.File{att}})

	if len(res.Messages) != 6 {
		t.Fatalf("finalized %d messages, want 6", len(res.Messages))
	}
	if len(res.Messages[0].Files) != 1 || res.Messages[0].Files[0] != types.File(att) {
		t.Error("preserved files not on the first summary turn")
	}
	if len(res.Messages[2].Files) != 0 {
		t.Error("later summary turn carries files")
	}
	if res.Messages[0].ParentID != types.RootID {
		t.Error("head does not start at the root sentinel")
	}
	if res.Messages[4].ParentID != res.Messages[3].ID {
		t.Error("tail not chained onto the last pair")
	}
}

func TestRun_SingleChunkIsRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/organizations/org1/conversations/c1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(store.ConversationData{
			ID:          "c1",
			CurrentLeaf: "m1",
			ChatMessages: []types.WireMessage{
				{UUID: "m1", Sender: "human", Content: []types.ContentBlock{types.TextBlock("short")}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := store.NewClient(oracle.Config{BaseURL: srv.URL, Org: "org1"})
	pipe := NewPipeline(store.NewAccessor(client, nil), client, rehome.New(store.NewFileClient(client), 0), chunk.New(nil), &fakeOracle{}, passReviewer{})

	_, err := pipe.Run(context.Background(), "c1", Options{})
	if !errors.Is(err, ErrNothingToSummarize) {
		t.Fatalf("error = %v, want ErrNothingToSummarize", err)
	}
}
