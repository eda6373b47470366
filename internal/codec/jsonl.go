// internal/codec/jsonl.go
package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/user/chatgraft/internal/tree"
	"github.com/user/chatgraft/internal/types"
)

// jsonlRecord is the one-object-per-line export shape. It carries only
// the role and the flattened text: attachments and tool calls are
// dropped by design. The format exists for simple downstream
// consumption, not for re-import.
type jsonlRecord struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ExportJSONL writes one {role, text} JSON object per message line.
func ExportJSONL(w io.Writer, messages []*types.Message) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, m := range messages {
		if err := enc.Encode(jsonlRecord{
			Role: string(m.Sender),
			Text: m.Text(),
		}); err != nil {
			return fmt.Errorf("encode jsonl record: %w", err)
		}
	}
	return bw.Flush()
}

// ImportJSONL reads the records back as bare text turns. Anything an
// export dropped stays dropped.
func ImportJSONL(r io.Reader) ([]*types.Message, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var msgs []*types.Message
	parent := types.RootID
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &types.MalformedInputError{
				Format: "jsonl",
				Reason: fmt.Sprintf("line %d: %v", line, err),
			}
		}
		m := types.NewTextMessage(senderFromRole(rec.Role), rec.Text, parent)
		parent = m.ID
		msgs = append(msgs, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	if len(msgs) == 0 {
		return nil, &types.MalformedInputError{Format: "jsonl", Reason: "no records found"}
	}
	return tree.LinearBranch(msgs)
}
