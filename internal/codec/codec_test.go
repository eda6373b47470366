package codec

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/user/chatgraft/internal/tree"
	"github.com/user/chatgraft/internal/types"
)

func threeTurnConversation(t *testing.T) []*types.Message {
	t.Helper()
	base := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	m1 := types.NewTextMessage(types.SenderHuman, "please run the numbers", types.RootID)
	m1.CreatedAt = base
	m1.Files = []types.File{&types.InlineAttachment{
		Name:             "data.csv",
		MediaType:        "text/csv",
		Size:             9,
		ExtractedContent: "1,2\n3,4\n5",
	}}

	m2 := &types.Message{
		ID:       types.NewMessageID(),
		ParentID: m1.ID,
		Sender:   types.SenderAssistant,
		Content: []types.ContentBlock{
			types.TextBlock("computing"),
			{Type: types.BlockToolUse, Name: "calculator", Input: json.RawMessage(`{"op":"sum"}`)},
			{Type: types.BlockToolResult, Payload: json.RawMessage(`{"value":15}`)},
		},
		CreatedAt: base.Add(time.Minute),
	}

	m3 := types.NewTextMessage(types.SenderHuman, "thanks,\nthat is all", m2.ID)
	m3.CreatedAt = base.Add(2 * time.Minute)

	return []*types.Message{m1, m2, m3}
}

func TestTagged_RoundTrip(t *testing.T) {
	msgs := threeTurnConversation(t)

	var buf bytes.Buffer
	if err := ExportTagged(&buf, msgs); err != nil {
		t.Fatalf("ExportTagged failed: %v", err)
	}

	got, err := ImportTagged(&buf)
	if err != nil {
		t.Fatalf("ImportTagged failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("imported %d messages, want 3", len(got))
	}

	for i := range got {
		if got[i].Sender != msgs[i].Sender {
			t.Errorf("message %d sender = %s, want %s", i, got[i].Sender, msgs[i].Sender)
		}
		if got[i].Text() != msgs[i].Text() {
			t.Errorf("message %d text = %q, want %q", i, got[i].Text(), msgs[i].Text())
		}
		if !got[i].CreatedAt.Equal(msgs[i].CreatedAt) {
			t.Errorf("message %d timestamp = %v, want %v", i, got[i].CreatedAt, msgs[i].CreatedAt)
		}
	}

	// Parent chain is rebuilt from document order.
	if got[0].ParentID != types.RootID {
		t.Errorf("first message parent = %s, want root", got[0].ParentID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ParentID != got[i-1].ID {
			t.Errorf("message %d not chained to predecessor", i)
		}
	}

	// Non-text blocks round-trip with type and payload.
	var tool *types.ContentBlock
	for i := range got[1].Content {
		if got[1].Content[i].Type == types.BlockToolUse {
			tool = &got[1].Content[i]
		}
	}
	if tool == nil {
		t.Fatal("tool_use block lost in round trip")
	}
	if tool.Name != "calculator" || string(tool.Input) != `{"op":"sum"}` {
		t.Errorf("tool_use block = %+v", tool)
	}

	// The inline attachment survives.
	if len(got[0].Files) != 1 {
		t.Fatalf("first message has %d files, want 1", len(got[0].Files))
	}
	att, ok := got[0].Files[0].(*types.InlineAttachment)
	if !ok || att.ExtractedContent != "1,2\n3,4\n5" {
		t.Errorf("attachment = %+v", got[0].Files[0])
	}
}

func TestImportTagged_ConsecutiveSameRoleFails(t *testing.T) {
	in := "[human]\nfirst\n\n[human]\nsecond\n"
	_, err := ImportTagged(strings.NewReader(in))
	var mie *types.MalformedInputError
	if !errors.As(err, &mie) {
		t.Fatalf("error = %v, want MalformedInputError", err)
	}
	if !strings.Contains(mie.Reason, "consecutive") {
		t.Errorf("Reason = %q", mie.Reason)
	}
}

func TestImportTagged_NoTagFails(t *testing.T) {
	_, err := ImportTagged(strings.NewReader("just some text\nwith no tags\n"))
	var mie *types.MalformedInputError
	if !errors.As(err, &mie) {
		t.Fatalf("error = %v, want MalformedInputError", err)
	}
	if !strings.Contains(mie.Reason, "no message tag") {
		t.Errorf("Reason = %q", mie.Reason)
	}
}

func TestImportJSONL_ResultIsItsOwnActiveBranch(t *testing.T) {
	input := `{"role":"human","text":"q"}
{"role":"assistant","text":"a"}
{"role":"human","text":"q2"}`

	msgs, err := ImportJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportJSONL failed: %v", err)
	}
	branch, err := tree.LinearBranch(msgs)
	if err != nil {
		t.Fatalf("LinearBranch failed: %v", err)
	}
	if len(branch) != len(msgs) {
		t.Fatalf("branch has %d messages, want %d", len(branch), len(msgs))
	}
	for i := range msgs {
		if branch[i] != msgs[i] {
			t.Errorf("message %d differs from its branch selection", i)
		}
	}
}

func TestJSONL_ExportShapeAndReimport(t *testing.T) {
	msgs := threeTurnConversation(t)

	var buf bytes.Buffer
	if err := ExportJSONL(&buf, msgs); err != nil {
		t.Fatalf("ExportJSONL failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	var rec struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("bad jsonl line: %v", err)
	}
	if rec.Role != "human" || rec.Text != "please run the numbers" {
		t.Errorf("record = %+v", rec)
	}

	got, err := ImportJSONL(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ImportJSONL failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("reimported %d messages, want 3", len(got))
	}
	// Attachments and tool calls are gone; only role and text survive.
	if len(got[0].Files) != 0 || len(got[1].Content) != 1 {
		t.Error("jsonl reimport kept structure it should have dropped")
	}
}

func TestThirdParty_RoundTripStripsAttachmentWrapper(t *testing.T) {
	msgs := threeTurnConversation(t)

	var buf bytes.Buffer
	if err := ExportThirdParty(&buf, msgs); err != nil {
		t.Fatalf("ExportThirdParty failed: %v", err)
	}
	if !strings.Contains(buf.String(), "<<<ATTACHMENT data.csv>>>") {
		t.Fatal("export did not embed the attachment delimiter")
	}

	got, warnings, err := ImportThirdParty(&buf)
	if err != nil {
		t.Fatalf("ImportThirdParty failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(got) != 3 {
		t.Fatalf("imported %d messages, want 3", len(got))
	}
	if got[0].Text() != "please run the numbers" {
		t.Errorf("wrapper not stripped: %q", got[0].Text())
	}
	if len(got[0].Files) != 1 {
		t.Fatalf("attachment lost: %d files", len(got[0].Files))
	}
}

func TestImportThirdParty_FlatSelectsBranchEndingAtLastElement(t *testing.T) {
	doc := `{"messages":[
		{"id":"1","role":"user","text":"root"},
		{"id":"2","parent":"1","role":"assistant","text":"abandoned"},
		{"id":"3","parent":"1","role":"assistant","text":"kept"},
		{"id":"4","parent":"3","role":"user","text":"leaf"}
	]}`
	got, _, err := ImportThirdParty(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportThirdParty failed: %v", err)
	}
	texts := make([]string, len(got))
	for i, m := range got {
		texts[i] = m.Text()
	}
	want := []string{"root", "kept", "leaf"}
	if len(texts) != len(want) {
		t.Fatalf("branch = %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("branch = %v, want %v", texts, want)
		}
	}
}

func TestImportThirdParty_RecursiveFollowsLastChild(t *testing.T) {
	doc := `{"role":"user","text":"a","children":[
		{"role":"assistant","text":"b-old","children":[]},
		{"role":"assistant","text":"b","children":[
			{"role":"user","text":"c","children":[]}
		]}
	]}`
	got, _, err := ImportThirdParty(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportThirdParty failed: %v", err)
	}
	if len(got) != 3 || got[1].Text() != "b" || got[2].Text() != "c" {
		t.Fatalf("unexpected branch: %d messages", len(got))
	}
}

func TestImportThirdParty_SynthesizesLeadingHumanTurn(t *testing.T) {
	doc := `{"messages":[{"id":"1","role":"assistant","text":"hello"}]}`
	got, warnings, err := ImportThirdParty(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportThirdParty failed: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one", warnings)
	}
	if len(got) != 2 || got[0].Sender != types.SenderHuman {
		t.Fatalf("placeholder not inserted: %d messages", len(got))
	}
	if got[1].ParentID != got[0].ID {
		t.Error("original first message not re-parented onto placeholder")
	}
}

func TestRaw_RoundTripAndBranchWarning(t *testing.T) {
	msgs := threeTurnConversation(t)

	var buf bytes.Buffer
	if err := ExportRaw(&buf, "conv-1", "numbers", msgs); err != nil {
		t.Fatalf("ExportRaw failed: %v", err)
	}
	got, warnings, err := ImportRaw(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ImportRaw failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("linear conversation warned: %v", warnings)
	}
	if len(got) != 3 {
		t.Fatalf("imported %d messages, want 3", len(got))
	}

	// Add a sibling branch and confirm the warning plus active-branch
	// selection via the leaf pointer.
	var doc RawConversation
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	branch := types.NewTextMessage(types.SenderAssistant, "road not taken", msgs[0].ID)
	doc.ChatMessages = append(doc.ChatMessages, branch.WireFormat())

	data, _ := json.Marshal(doc)
	got, warnings, err = ImportRaw(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ImportRaw with branches failed: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want branch warning", warnings)
	}
	if len(got) != 3 || got[len(got)-1].ID != msgs[2].ID {
		t.Error("active branch not selected by leaf pointer")
	}
}

func TestExportBundle_LayoutAndSkips(t *testing.T) {
	base := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	m := types.NewTextMessage(types.SenderHuman, "bundle me", types.RootID)
	m.CreatedAt = base
	m.Files = []types.File{
		&types.HostedFile{ID: "img1", Name: "chart.png", Kind: "image", PreviewAsset: "/f/chart"},
		&types.HostedFile{ID: "gone", Name: "broken.pdf", DocumentAsset: "/f/broken"},
		&types.HostedFile{ID: "nourl", Name: "orphan.bin"},
		&types.InlineAttachment{Name: "notes.txt", ExtractedContent: "inline text"},
	}

	download := func(locator string) ([]byte, error) {
		if locator == "/f/chart" {
			return []byte("png-bytes"), nil
		}
		return nil, errors.New("boom")
	}

	var buf bytes.Buffer
	if err := ExportBundle(&buf, []*types.Message{m}, download); err != nil {
		t.Fatalf("ExportBundle failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		entries[f.Name] = string(data)
	}

	if _, ok := entries["conversation.txt"]; !ok {
		t.Error("bundle missing conversation.txt")
	}
	if entries["files/chart-img1.png"] != "png-bytes" {
		t.Errorf("image entry = %q", entries["files/chart-img1.png"])
	}
	if entries["files/notes_NOEXTRACT.txt"] != "inline text" {
		t.Errorf("inline entry = %q", entries["files/notes_NOEXTRACT.txt"])
	}
	// Failed download and missing locator are skipped, not fatal.
	for name := range entries {
		if strings.Contains(name, "broken") || strings.Contains(name, "orphan") {
			t.Errorf("unexpected entry %s", name)
		}
	}
}
