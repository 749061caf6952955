package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks everything the server and the roast pipeline need. It is
// meant to run once at startup.
func Validate(cfg *Config) []error {
	var errs []error

	switch cfg.LLMProvider {
	case ProviderOpenAI:
		if cfg.LLMBaseURL == "" {
			errs = append(errs, ValidationError{"LLM_BASE_URL", "required"})
		} else if u, err := url.Parse(cfg.LLMBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{"LLM_BASE_URL", "must be an absolute URL"})
		}
	case ProviderGemini:
	default:
		errs = append(errs, ValidationError{"LLM_PROVIDER", "must be 'openai' or 'gemini'"})
	}

	if cfg.LLMAPIKey == "" {
		errs = append(errs, ValidationError{"LLM_API_KEY", "required"})
	}
	if cfg.LLMModel == "" {
		errs = append(errs, ValidationError{"LLM_MODEL", "required"})
	}

	for field, v := range map[string]string{
		"LLM_API_KEY":  cfg.LLMAPIKey,
		"LLM_MODEL":    cfg.LLMModel,
		"GITHUB_TOKEN": cfg.GitHubToken,
	} {
		if envVarPattern.MatchString(v) {
			errs = append(errs, ValidationError{field, "references an unset environment variable"})
		}
	}

	if cfg.timeoutErr != nil {
		errs = append(errs, ValidationError{"ROAST_TIMEOUT", cfg.timeoutErr.Error()})
	} else if cfg.RoastTimeout < 0 {
		errs = append(errs, ValidationError{"ROAST_TIMEOUT", "must be positive"})
	}

	if cfg.GitHubAPIURL != "" && !strings.HasPrefix(cfg.GitHubAPIURL, "http") {
		errs = append(errs, ValidationError{"GITHUB_API_URL", "must be an http(s) URL"})
	}

	return errs
}
