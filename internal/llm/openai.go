package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type OpenAIOption func(*openai.ClientConfig)

// WithHTTPClient replaces the transport used for completion calls.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(cfg *openai.ClientConfig) {
		cfg.HTTPClient = hc
	}
}

func NewOpenAIClient(baseURL, apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.HTTPClient = statusDoer{next: cfg.HTTPClient}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete returns the first choice's content, or "" when the service
// answered without any choices.
func (c *OpenAIClient) Complete(ctx context.Context, comp Completion) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: comp.System},
			{Role: openai.ChatMessageRoleUser, Content: comp.User},
		},
		MaxTokens:   comp.MaxTokens,
		Temperature: comp.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// statusDoer turns every non-2xx response into a *StatusError before the SDK
// sees it. The SDK only keeps the status code for JSON error bodies; proxies
// and gateways in front of self-hosted models often answer with HTML.
type statusDoer struct {
	next openai.HTTPDoer
}

const maxErrorBody = 4 << 10

func (d statusDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
}

// errorMessage pulls the human-readable message out of an error body,
// accepting the OpenAI shape ({"error":{"message":...}}) and a flat
// {"message":...}.
func errorMessage(body []byte, status string) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return status
}
