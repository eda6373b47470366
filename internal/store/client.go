// internal/store/client.go

// Package store talks to the host's conversation and file APIs and
// caches fetched message sets for tree queries.
package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/chatgraft/internal/types"
	"github.com/user/chatgraft/pkg/oracle"
)

// streamDone terminates the append-turn response stream.
const streamDone = "[DONE]"

// Client is an HTTP client for the conversation store API.
type Client struct {
	baseURL    string
	apiKey     string
	org        types.OrgID
	model      string
	httpClient *http.Client
	retry      *RetryPolicy
}

// NewClient creates a conversation store client scoped to one
// organization. The config's model, when set, is requested for every
// conversation created without an explicit model override.
func NewClient(cfg oracle.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		org:     types.OrgID(cfg.Org),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		retry: DefaultRetryPolicy(),
	}
}

// CreateOptions configures conversation creation.
type CreateOptions struct {
	Model     string `json:"model,omitempty"`
	ProjectID string `json:"project_uuid,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// ConversationData is one fetched conversation: metadata plus the raw
// message set.
type ConversationData struct {
	ID                   types.ConversationID `json:"uuid"`
	Name                 string               `json:"name"`
	CurrentLeaf          types.MessageID      `json:"current_leaf_message_uuid"`
	CodeExecutionEnabled bool                 `json:"code_execution_enabled"`
	ChatMessages         []types.WireMessage  `json:"chat_messages"`
}

func (c *Client) orgURL(parts ...string) string {
	return c.baseURL + "/api/organizations/" + string(c.org) + "/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.NetworkError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &types.NetworkError{
			Op:  method + " " + url,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Create makes a new conversation and returns its id.
func (c *Client) Create(ctx context.Context, name string, opts CreateOptions) (types.ConversationID, error) {
	if opts.Model == "" {
		opts.Model = c.model
	}
	payload := struct {
		Name string `json:"name"`
		CreateOptions
	}{Name: name, CreateOptions: opts}

	var result struct {
		UUID string `json:"uuid"`
	}
	if err := c.do(ctx, http.MethodPost, c.orgURL("conversations"), payload, &result); err != nil {
		return "", err
	}
	return types.ConversationID(result.UUID), nil
}

// Fetch retrieves a conversation's metadata and raw message set. Tree
// hydration is requested when branch queries will follow.
func (c *Client) Fetch(ctx context.Context, id types.ConversationID, asTree bool) (*ConversationData, error) {
	url := c.orgURL("conversations", string(id))
	if asTree {
		url += "?tree=true&rendering_mode=messages"
	}
	var data ConversationData
	if err := c.do(ctx, http.MethodGet, url, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetActiveLeaf moves the conversation's current-leaf pointer. The
// server is the authority on whether the leaf exists.
func (c *Client) SetActiveLeaf(ctx context.Context, id types.ConversationID, leaf types.MessageID) error {
	payload := map[string]string{"current_leaf_message_uuid": string(leaf)}
	return c.do(ctx, http.MethodPut, c.orgURL("conversations", string(id), "current_leaf"), payload, nil)
}

// Delete removes a conversation.
func (c *Client) Delete(ctx context.Context, id types.ConversationID) error {
	return c.do(ctx, http.MethodDelete, c.orgURL("conversations", string(id)), nil, nil)
}

// Submit appends a human turn, drains the response stream to its
// end-of-stream marker, then polls for the newly created assistant
// message. It implements oracle.Provider.
func (c *Client) Submit(ctx context.Context, conversationID string, turn oracle.Turn) (oracle.Response, error) {
	sentAt := time.Now()
	if err := c.streamCompletion(ctx, types.ConversationID(conversationID), turn); err != nil {
		return oracle.Response{}, err
	}
	reply, err := c.pollAssistantReply(ctx, types.ConversationID(conversationID), sentAt)
	if err != nil {
		return oracle.Response{}, err
	}
	return oracle.Response{
		MessageID: string(reply.ID),
		Text:      reply.Text(),
	}, nil
}

func (c *Client) streamCompletion(ctx context.Context, id types.ConversationID, turn oracle.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	url := c.orgURL("conversations", string(id), "completion")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.NetworkError{Op: "POST " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &types.NetworkError{
			Op:  "POST " + url,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		if strings.TrimSpace(strings.TrimPrefix(line, "data:")) == streamDone {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return &types.NetworkError{Op: "stream completion", Err: err}
	}
	// Stream closed without the marker; the poll below decides whether
	// an assistant message actually landed.
	return nil
}

// pollAssistantReply refetches the conversation with bounded attempts
// and fixed backoff, looking for an assistant message created after the
// turn was sent.
func (c *Client) pollAssistantReply(ctx context.Context, id types.ConversationID, sentAt time.Time) (*types.Message, error) {
	var reply *types.Message
	err := c.retry.Execute(ctx, func() error {
		data, err := c.Fetch(ctx, id, false)
		if err != nil {
			return err
		}
		for i := len(data.ChatMessages) - 1; i >= 0; i-- {
			m := types.MessageFromWire(data.ChatMessages[i])
			if m.Sender == types.SenderAssistant && m.CreatedAt.After(sentAt) {
				reply = m
				return nil
			}
		}
		return fmt.Errorf("assistant reply not yet visible in conversation %s", id)
	})
	if err != nil {
		return nil, &types.NetworkError{Op: "poll assistant reply", Err: err}
	}
	return reply, nil
}
