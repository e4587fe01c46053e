// Package llmclient implements llm.Transport against a DeepSeek-compatible
// chat-completions HTTP endpoint, matching the shape llm.Adapter's own
// doc comment describes it as wrapping.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
)

const defaultBaseURL = "https://api.deepseek.com/v1/chat/completions"

var _ llm.Transport = (*DeepSeekTransport)(nil)

// DeepSeekTransport posts chat-completion requests and reports the raw
// HTTP status code so llm.Adapter can translate 451 into its
// RegionalBlock error kind without inspecting response bodies.
type DeepSeekTransport struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewDeepSeekTransport(apiKey, model string) *DeepSeekTransport {
	return &DeepSeekTransport{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts system/user messages to the configured endpoint and
// returns the first choice's content. The caller (llm.Adapter) owns
// the per-call timeout via ctx; this transport makes exactly one
// attempt.
func (t *DeepSeekTransport) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (llm.Completion, int, error) {
	payload := chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return llm.Completion{}, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return llm.Completion{}, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return llm.Completion{}, 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Completion{}, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return llm.Completion{}, resp.StatusCode, fmt.Errorf("deepseek returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return llm.Completion{}, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return llm.Completion{}, resp.StatusCode, fmt.Errorf("deepseek returned no choices")
	}

	return llm.Completion{
		Content: parsed.Choices[0].Message.Content,
		Meta:    map[string]any{"model": t.model},
	}, resp.StatusCode, nil
}
