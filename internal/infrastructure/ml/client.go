package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
)

// Client talks to a hosted text-classification model (Hugging Face inference format).
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client; timeout defaults to 15 seconds.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

type classifyRequest struct {
	Inputs  []string        `json:"inputs"`
	Options classifyOptions `json:"options"`
}

type classifyOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Classify returns label scores for every input text, in input order.
func (c *Client) Classify(ctx context.Context, texts []string) ([][]domain.LabelScore, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("classifier endpoint is not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	payload := classifyRequest{
		Inputs:  texts,
		Options: classifyOptions{WaitForModel: true},
	}

	var raw json.RawMessage
	if err := c.post(ctx, payload, &raw); err != nil {
		return nil, err
	}

	return decodeScores(raw, len(texts))
}

// decodeScores accepts both the nested per-input form and the flat single-input form.
func decodeScores(raw json.RawMessage, inputs int) ([][]domain.LabelScore, error) {
	var nested [][]domain.LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested, nil
	}

	var flat []domain.LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if inputs != 1 {
		// A flat list with several inputs is one top label per input.
		out := make([][]domain.LabelScore, len(flat))
		for i := range flat {
			out[i] = []domain.LabelScore{flat[i]}
		}
		return out, nil
	}
	return [][]domain.LabelScore{flat}, nil
}

func (c *Client) post(ctx context.Context, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
