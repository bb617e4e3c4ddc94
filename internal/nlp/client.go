package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client is an HTTP client for a dependency-parsing service exposing
// tokenization, part-of-speech tags, lemmas, dependency labels, sentence
// segmentation, and named entities.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a new parsing client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		client:  http.DefaultClient,
	}
}

// ParseRequest represents the request payload for the parse API.
type ParseRequest struct {
	Text string `json:"text"`
}

// Parse sends the text to the parsing service and returns the parsed document.
func (c *Client) Parse(ctx context.Context, text string) (*Doc, error) {
	url := fmt.Sprintf("%s/parse", c.BaseURL)

	body, err := json.Marshal(ParseRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var doc Doc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &doc, nil
}
