package oracle

import "context"

// Provider is the external text-generation service driven by the
// summarization pipeline. Submitting a turn to a conversation yields the
// assistant's single response; the service is otherwise opaque.
type Provider interface {
	Submit(ctx context.Context, conversationID string, turn Turn) (Response, error)
}

// Config holds common configuration for oracle providers.
type Config struct {
	BaseURL string
	APIKey  string
	Org     string
	Model   string
}
