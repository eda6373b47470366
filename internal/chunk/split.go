// internal/chunk/split.go
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/user/chatgraft/internal/types"
)

const (
	splitAckText         = "Acknowledged." + types.ContinuationMarker
	splitContinuationFmt = "[attachment continuation %d/%d]" + types.ContinuationMarker
)

// SplitOversized breaks a message whose inline attachments alone exceed
// budget into a chain of synthetic messages, each carrying a bin of
// attachments under budget. Individually oversized attachments are first
// split into numbered _partN pieces at the last newline before the byte
// limit. The first message keeps the original text and non-inline files;
// later bins are placeholder turns, separated by acknowledgment turns
// from the alternate sender so alternation holds. The final message
// reuses the original id so downstream parent pointers stay valid.
//
// A message already under budget comes back as itself, untouched.
func (c *Chunker) SplitOversized(m *types.Message, budget int) []*types.Message {
	var inline []*types.InlineAttachment
	var other []types.File
	for _, f := range m.Files {
		if att, ok := f.(*types.InlineAttachment); ok {
			inline = append(inline, att)
		} else {
			other = append(other, f)
		}
	}

	attTokens := 0
	for _, att := range inline {
		attTokens += c.est.EstimateText(att.ExtractedContent)
	}
	if attTokens <= budget {
		return []*types.Message{m}
	}

	pieces := c.explodeOversized(inline, budget)
	bins := c.binAttachments(pieces, budget)

	out := make([]*types.Message, 0, 2*len(bins)-1)
	parent := m.ParentID
	for i, bin := range bins {
		if i > 0 {
			ack := &types.Message{
				ID:        types.NewMessageID(),
				ParentID:  parent,
				Sender:    m.Sender.Other(),
				Content:   []types.ContentBlock{types.TextBlock(splitAckText)},
				CreatedAt: m.CreatedAt,
			}
			out = append(out, ack)
			parent = ack.ID
		}

		msg := &types.Message{
			ID:        types.NewMessageID(),
			ParentID:  parent,
			Sender:    m.Sender,
			CreatedAt: m.CreatedAt,
		}
		if i == 0 {
			msg.Content = m.Content
			msg.Files = append(msg.Files, other...)
		} else {
			msg.Content = []types.ContentBlock{
				types.TextBlock(fmt.Sprintf(splitContinuationFmt, i+1, len(bins))),
			}
		}
		if i == len(bins)-1 {
			msg.ID = m.ID
		}
		for _, att := range bin {
			msg.Files = append(msg.Files, att)
		}
		out = append(out, msg)
		parent = msg.ID
	}
	return out
}

// explodeOversized replaces any attachment over budget with numbered
// _partN pieces, each under budget.
func (c *Chunker) explodeOversized(attachments []*types.InlineAttachment, budget int) []*types.InlineAttachment {
	byteLimit := budget * 4
	var out []*types.InlineAttachment
	for _, att := range attachments {
		if c.est.EstimateText(att.ExtractedContent) <= budget {
			out = append(out, att)
			continue
		}
		parts := splitAtNewlines(att.ExtractedContent, byteLimit)
		for i, part := range parts {
			out = append(out, &types.InlineAttachment{
				Name:             fmt.Sprintf("%s_part%d", att.Name, i+1),
				MediaType:        att.MediaType,
				Size:             int64(len(part)),
				ExtractedContent: part,
			})
		}
	}
	return out
}

// binAttachments packs attachments greedily into sequential groups, each
// within budget.
func (c *Chunker) binAttachments(attachments []*types.InlineAttachment, budget int) [][]*types.InlineAttachment {
	var bins [][]*types.InlineAttachment
	var bin []*types.InlineAttachment
	binTokens := 0
	for _, att := range attachments {
		size := c.est.EstimateText(att.ExtractedContent)
		if len(bin) > 0 && binTokens+size > budget {
			bins = append(bins, bin)
			bin = nil
			binTokens = 0
		}
		bin = append(bin, att)
		binTokens += size
	}
	if len(bin) > 0 {
		bins = append(bins, bin)
	}
	return bins
}

// splitAtNewlines cuts s into pieces no longer than byteLimit,
// preferring the last newline before the limit as the cut point. With
// no newline available the cut backs up to the nearest rune boundary so
// a multi-byte character is never torn across pieces.
func splitAtNewlines(s string, byteLimit int) []string {
	var parts []string
	for len(s) > byteLimit {
		cut := strings.LastIndexByte(s[:byteLimit], '\n')
		if cut <= 0 {
			cut = byteLimit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				cut = byteLimit
			}
		}
		parts = append(parts, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if len(s) > 0 {
		parts = append(parts, s)
	}
	return parts
}
