package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevinmichaelchen/gitvibe/internal/config"
)

// Completion is one chat-style completion call: a system instruction, one
// user message and the sampling limits.
type Completion struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Client is implemented by every completion backend.
type Client interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// StatusError is returned when the completion service answers with a non-2xx
// HTTP status. Backends translate their SDK errors into it so callers can
// tell a rejected request from an unavailable service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.StatusCode, e.Message)
}

// New builds the client selected by cfg.LLMProvider. cfg is expected to have
// passed config.Validate.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	case config.ProviderGemini:
		var opts []GeminiOption
		if cfg.LLMBaseURL != "" {
			opts = append(opts, WithGeminiBaseURL(cfg.LLMBaseURL))
		}
		return NewGeminiClient(ctx, cfg.LLMAPIKey, cfg.LLMModel, opts...)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

var quotePairs = [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}}

// CleanText trims the decoration models like to wrap short answers in:
// markdown code fences and a single pair of surrounding quotes.
func CleanText(s string) string {
	s = stripCodeFences(s)
	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}

// stripCodeFences removes markdown code fences that some models wrap around
// their answer.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (```text or ```)
		if i := strings.Index(s, "\n"); i != -1 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
