package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/genai"
)

// GeminiClient implements Client on the Gemini API backend.
type GeminiClient struct {
	client *genai.Client
	model  string
}

type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at a proxy or test server instead of
// generativelanguage.googleapis.com.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(cfg *genai.ClientConfig) { cfg.HTTPOptions.BaseURL = u }
}

func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(cfg *genai.ClientConfig) { cfg.HTTPClient = hc }
}

func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.HTTPClient = guardErrorBodies(cfg.HTTPClient)

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, comp Completion) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: genai.Ptr(int32(comp.MaxTokens)),
		Temperature:     genai.Ptr(comp.Temperature),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: comp.System}},
		},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: comp.User}},
		},
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", geminiStatusError(err))
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil ||
		len(result.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// geminiStatusError translates the SDK's 4xx/5xx error values into
// *StatusError. The SDK leaves Code unset when the body omits it, so the
// error's class supplies a fallback.
func geminiStatusError(err error) error {
	var ce genai.ClientError
	if errors.As(err, &ce) {
		return &StatusError{StatusCode: codeOr(ce.Code, http.StatusBadRequest), Message: ce.Message}
	}
	var se genai.ServerError
	if errors.As(err, &se) {
		return &StatusError{StatusCode: codeOr(se.Code, http.StatusInternalServerError), Message: se.Message}
	}
	return err
}

func codeOr(code, fallback int) int {
	if code == 0 {
		return fallback
	}
	return code
}

// guardErrorBodies returns a copy of hc whose transport answers for error
// responses the SDK cannot decode. The SDK dereferences the "error" object
// of any JSON error body, so a gateway's {"message":...} would panic.
func guardErrorBodies(hc *http.Client) *http.Client {
	guarded := &http.Client{}
	if hc != nil {
		*guarded = *hc
	}
	next := guarded.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	guarded.Transport = errorBodyGuard{next: next}
	return guarded
}

type errorBodyGuard struct {
	next http.RoundTripper
}

func (g errorBodyGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.next.RoundTrip(req)
	if err != nil || resp.StatusCode < 400 {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading error body: %w", err)
	}

	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if len(body) == 0 || (json.Unmarshal(body, &parsed) == nil && len(parsed.Error) > 0 && string(parsed.Error) != "null") {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
}
