// internal/summarize/prompt.go
package summarize

import (
	"fmt"
	"strings"

	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

const summaryInstruction = `You are producing a dense summary of part of a long conversation so that the conversation can continue in a fresh context.

Summarize the transcript below. Preserve concrete facts, decisions, open questions, names, file references and code identifiers. Write the summary as plain prose, no preamble, no headings. Do not summarize any attachment that is marked as already-summarized context.

Transcript:
`

const priorSummariesHeader = `The following is already-summarized context from earlier in the conversation. It is provided for reference only. Do NOT re-summarize it.`

const reviseInstructionFmt = `Below is a transcript, a draft summary of it, and an instruction for revising the draft. Produce the full revised summary, nothing else.

Instruction: %s

Draft summary:
%s

Transcript:
`

const priorSummariesFileName = "prior_summaries.txt"

// buildTurn assembles the oracle request for one chunk. The prompt is
// staged as a regular human message and projected through its
// OracleRequest, so turn validation applies here too. Prior chunk
// summaries ride along as an inline attachment flagged as context, not
// material to summarize.
func buildTurn(chunk []*types.Message, priorSummaries []string, rehomedIDs []string) (oracle.Turn, error) {
	var sb strings.Builder
	sb.WriteString(summaryInstruction)
	writeTranscript(&sb, chunk)
	return projectTurn(sb.String(), priorSummaries, rehomedIDs)
}

// buildReviseTurn assembles the request for the redo-with-instruction
// sub-operation: same chunk materials plus the current draft and the
// user's free-text instruction.
func buildReviseTurn(chunk []*types.Message, priorSummaries []string, draft, instruction string) (oracle.Turn, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, reviseInstructionFmt, instruction, draft)
	writeTranscript(&sb, chunk)
	return projectTurn(sb.String(), priorSummaries, nil)
}

func projectTurn(prompt string, priorSummaries []string, rehomedIDs []string) (oracle.Turn, error) {
	m := types.NewTextMessage(types.SenderHuman, prompt, types.RootID)
	if len(priorSummaries) > 0 {
		m.Files = append(m.Files, priorSummariesAttachment(priorSummaries))
	}
	proj, err := m.OracleRequest()
	if err != nil {
		return oracle.Turn{}, fmt.Errorf("project summary turn: %w", err)
	}

	turn := oracle.Turn{Prompt: proj.Prompt, ParentID: string(proj.ParentID)}
	for _, a := range proj.Attachments {
		turn.Attachments = append(turn.Attachments, oracle.Attachment{
			FileName:         a.FileName,
			FileType:         a.FileType,
			FileSize:         a.FileSize,
			ExtractedContent: a.ExtractedContent,
		})
	}
	for _, id := range proj.FileIDs {
		turn.FileIDs = append(turn.FileIDs, string(id))
	}
	turn.FileIDs = append(turn.FileIDs, rehomedIDs...)
	return turn, nil
}

func writeTranscript(sb *strings.Builder, chunk []*types.Message) {
	for _, m := range chunk {
		fmt.Fprintf(sb, "%s:\n%s\n\n", m.Sender, m.PlainTextLog())
	}
}

func priorSummariesAttachment(summaries []string) *types.InlineAttachment {
	var sb strings.Builder
	sb.WriteString(priorSummariesHeader)
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\n\n[summary %d]\n%s", i+1, s)
	}
	content := sb.String()
	return &types.InlineAttachment{
		Name:             priorSummariesFileName,
		MediaType:        "text/plain",
		Size:             int64(len(content)),
		ExtractedContent: content,
	}
}
