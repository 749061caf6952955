package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultPort         = "8000"
	DefaultRoastTimeout = 6 * time.Second
)

type Config struct {
	Port string

	GitHubToken  string
	GitHubAPIURL string

	LLMProvider string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string

	RoastTimeout time.Duration

	timeoutErr error
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port: os.Getenv("PORT"),

		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		GitHubAPIURL: os.Getenv("GITHUB_API_URL"),

		LLMProvider: os.Getenv("LLM_PROVIDER"),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    os.Getenv("LLM_MODEL"),
	}
	cfg.setTimeout(os.Getenv("ROAST_TIMEOUT"))
	cfg.normalize()
	return cfg
}

// fileConfig mirrors Config for YAML files. String values may reference
// environment variables as ${VAR}.
type fileConfig struct {
	Port   string `yaml:"port"`
	GitHub struct {
		Token  string `yaml:"token"`
		APIURL string `yaml:"api_url"`
	} `yaml:"github"`
	LLM struct {
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
	} `yaml:"llm"`
	Roast struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"roast"`
}

// LoadFile loads the environment like Load, then overlays the non-empty
// values found in the YAML file at path.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	overlay(&cfg.Port, fc.Port)
	overlay(&cfg.GitHubToken, fc.GitHub.Token)
	overlay(&cfg.GitHubAPIURL, fc.GitHub.APIURL)
	overlay(&cfg.LLMProvider, fc.LLM.Provider)
	overlay(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	overlay(&cfg.LLMAPIKey, fc.LLM.APIKey)
	overlay(&cfg.LLMModel, fc.LLM.Model)
	if t := expandEnvVars(fc.Roast.Timeout); t != "" {
		cfg.setTimeout(t)
	}

	cfg.normalize()
	return cfg, nil
}

func overlay(dst *string, v string) {
	if v = expandEnvVars(v); v != "" {
		*dst = v
	}
}

func (c *Config) setTimeout(raw string) {
	c.timeoutErr = nil
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.timeoutErr = err
		return
	}
	c.RoastTimeout = d
}

// normalize fills in defaults that are safe to assume. Credentials, model
// and completion endpoint never get defaults; Validate reports them.
func (c *Config) normalize() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.LLMProvider == "" {
		c.LLMProvider = ProviderOpenAI
	}
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.LLMBaseURL = strings.TrimSuffix(c.LLMBaseURL, "/")
	if c.RoastTimeout == 0 {
		c.RoastTimeout = DefaultRoastTimeout
	}
}
