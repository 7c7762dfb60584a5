package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// deepseekProvider implements Provider using the DeepSeek API
// (OpenAI-compatible chat completions).
type deepseekProvider struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  http.Client
}

// DeepSeek request/response types (OpenAI-compatible).
type dsRequest struct {
	Model          string         `json:"model"`
	Messages       []dsMessage    `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	Stream         bool           `json:"stream"`
	ResponseFormat *dsResponseFmt `json:"response_format,omitempty"`
}

type dsMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type dsResponseFmt struct {
	Type string `json:"type"`
}

type dsResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *dsError `json:"error,omitempty"`
}

type dsError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (d *deepseekProvider) Name() string {
	return "deepseek/" + d.model
}

func (d *deepseekProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	model := d.model
	if opts.Model != "" {
		model = opts.Model
	}

	messages := make([]dsMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, dsMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, dsMessage{Role: "user", Content: prompt})

	req := dsRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if strings.ToLower(opts.Format) == "json" {
		req.ResponseFormat = &dsResponseFmt{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := d.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	client := d.client
	client.Timeout = d.timeout
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepseek API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var dsResp dsResponse
	if err := json.Unmarshal(respBody, &dsResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if dsResp.Error != nil {
		return "", fmt.Errorf("deepseek API error: %s", dsResp.Error.Message)
	}

	if len(dsResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from deepseek API")
	}

	return strings.TrimSpace(dsResp.Choices[0].Message.Content), nil
}
