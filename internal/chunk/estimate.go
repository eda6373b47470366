// internal/chunk/estimate.go

// Package chunk partitions linear message paths into token-bounded
// windows for summarization.
package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/chatgraft/internal/types"
)

// Estimator counts tokens in message text and inline attachment content.
type Estimator interface {
	EstimateText(s string) int
	Estimate(messages []*types.Message) int
}

// HeuristicEstimator is the default estimator: character count divided
// by four, rounded up. This is an intentional approximation, not a
// tokenizer; it undercounts non-English text and binary-looking
// attachment content, and that inaccuracy is accepted.
type HeuristicEstimator struct{}

func (HeuristicEstimator) EstimateText(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}

func (h HeuristicEstimator) Estimate(messages []*types.Message) int {
	total := 0
	for _, m := range messages {
		total += h.EstimateText(messageChars(m))
	}
	return total
}

// messageChars gathers the text content plus inline-attachment extracted
// content that the estimators count.
func messageChars(m *types.Message) string {
	s := m.Text()
	for _, f := range m.Files {
		if att, ok := f.(*types.InlineAttachment); ok {
			s += att.ExtractedContent
		}
	}
	return s
}

// TiktokenEstimator counts with a real BPE tokenizer. It costs more per
// call than the heuristic and is only used when exact counts are wanted.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator builds an estimator for the given model, falling
// back to cl100k_base for unknown models.
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) EstimateText(s string) int {
	return len(e.enc.Encode(s, nil, nil))
}

func (e *TiktokenEstimator) Estimate(messages []*types.Message) int {
	total := 0
	for _, m := range messages {
		total += e.EstimateText(messageChars(m))
	}
	return total
}
