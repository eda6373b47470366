// internal/chunk/chunker.go
package chunk

import (
	"log/slog"
	"math"

	"github.com/user/chatgraft/internal/types"
)

const (
	// LastChunkTokens sizes the trailing chunk that is kept closest to
	// verbatim during summarization.
	LastChunkTokens = 15000

	// FrontChunkTokens is the target size for each chunk ahead of the
	// last one.
	FrontChunkTokens = 30000
)

// Chunker splits linear message sequences into token-bounded windows.
type Chunker struct {
	est Estimator
}

// New creates a Chunker. A nil estimator selects the char/4 heuristic.
func New(est Estimator) *Chunker {
	if est == nil {
		est = HeuristicEstimator{}
	}
	return &Chunker{est: est}
}

// Estimator returns the chunker's token estimator.
func (c *Chunker) Estimator() Estimator { return c.est }

// TakeFromEnd returns how many trailing messages fit within budget.
// Conservative mode stops before exceeding the budget; greedy mode also
// includes the one message that crosses it. Non-empty input always
// yields at least 1.
func (c *Chunker) TakeFromEnd(messages []*types.Message, budget int, greedy bool) int {
	count := 0
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		size := c.est.Estimate(messages[i : i+1])
		if greedy {
			count++
			total += size
			if total > budget {
				break
			}
			continue
		}
		if total+size > budget {
			break
		}
		count++
		total += size
	}
	if count == 0 && len(messages) > 0 {
		count = 1
	}
	return count
}

// Partition splits messages into front chunks (oldest to newest)
// followed by a reserved last chunk. Concatenating the result reproduces
// the input exactly; every chunk except possibly the first starts on a
// human turn.
func (c *Chunker) Partition(messages []*types.Message) [][]*types.Message {
	if len(messages) == 0 {
		return nil
	}
	total := c.est.Estimate(messages)
	if total < 2*LastChunkTokens {
		return [][]*types.Message{messages}
	}

	take := c.TakeFromEnd(messages, LastChunkTokens, true)
	start := c.alignToHuman(messages, len(messages)-take, LastChunkTokens)
	last := messages[start:]
	remaining := messages[:start]
	if len(remaining) == 0 {
		return [][]*types.Message{last}
	}

	remTokens := c.est.Estimate(remaining)
	n := int(math.Round(float64(remTokens) / float64(FrontChunkTokens)))
	if n < 1 {
		n = 1
	}
	perChunk := remTokens / n
	if perChunk < 1 {
		perChunk = 1
	}

	var fronts [][]*types.Message
	for len(remaining) > 0 {
		count := c.TakeFromEnd(remaining, perChunk, false)
		s := c.alignToHuman(remaining, len(remaining)-count, perChunk)
		fronts = append([][]*types.Message{remaining[s:]}, fronts...)
		remaining = remaining[:s]
	}
	return append(fronts, last)
}

// alignToHuman walks a chunk's start boundary toward older messages
// until it lands on a human turn, so a human/assistant pair is never
// split across a boundary. Long same-sender runs can drag the boundary
// well past its token target; the drift is capped at the chunk budget,
// accepting a non-human start past that point.
func (c *Chunker) alignToHuman(messages []*types.Message, start, budget int) int {
	orig := start
	drift := 0
	for start > 0 && messages[start].Sender != types.SenderHuman {
		step := c.est.Estimate(messages[start-1 : start])
		if drift+step > budget {
			slog.Warn("chunk boundary left unaligned, drift would exceed budget",
				"drift_tokens", drift+step, "budget", budget, "walked", orig-start)
			return start
		}
		drift += step
		start--
	}
	return start
}
