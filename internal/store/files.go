// internal/store/files.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/user/chatgraft/internal/types"
)

// binaryExtensions route to the direct upload endpoint; everything else
// goes through document conversion.
var binaryExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// FileClient is an HTTP client for the host's file store.
type FileClient struct {
	client *Client
}

// NewFileClient wraps a conversation store client for file operations in
// the same organization scope.
func NewFileClient(client *Client) *FileClient {
	return &FileClient{client: client}
}

// Upload stores bytes as a hosted file, routing to the binary-upload or
// document-conversion endpoint by extension.
func (fc *FileClient) Upload(ctx context.Context, filename string, data []byte) (*types.HostedFile, error) {
	endpoint := "convert_document"
	if binaryExtensions[strings.ToLower(path.Ext(filename))] {
		endpoint = "upload"
	}
	var wire types.WireFile
	if err := fc.multipartPost(ctx, fc.client.orgURL(endpoint), filename, data, &wire); err != nil {
		return nil, err
	}
	hosted, ok := types.FileFromWire(wire).(*types.HostedFile)
	if !ok {
		return nil, fmt.Errorf("upload of %s returned a non-hosted record", filename)
	}
	return hosted, nil
}

// SandboxUpload stores bytes inside the conversation's execution
// sandbox.
func (fc *FileClient) SandboxUpload(ctx context.Context, conversationID types.ConversationID, filename string, data []byte) (*types.SandboxFile, error) {
	url := fc.client.orgURL("conversations", string(conversationID), "sandbox_files")
	var wire types.WireFile
	if err := fc.multipartPost(ctx, url, filename, data, &wire); err != nil {
		return nil, err
	}
	sandbox, ok := types.FileFromWire(wire).(*types.SandboxFile)
	if !ok {
		return nil, fmt.Errorf("sandbox upload of %s returned a non-sandbox record", filename)
	}
	return sandbox, nil
}

// Download fetches the bytes behind a locator. Relative locators resolve
// against the store's base URL.
func (fc *FileClient) Download(ctx context.Context, locator string) ([]byte, error) {
	url := locator
	if strings.HasPrefix(locator, "/") {
		url = fc.client.baseURL + locator
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if fc.client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+fc.client.apiKey)
	}
	resp, err := fc.client.httpClient.Do(req)
	if err != nil {
		return nil, &types.NetworkError{Op: "GET " + url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &types.NetworkError{
			Op:  "GET " + url,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return io.ReadAll(resp.Body)
}

func (fc *FileClient) multipartPost(ctx context.Context, url, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if fc.client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+fc.client.apiKey)
	}

	resp, err := fc.client.httpClient.Do(req)
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
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	return nil
}
