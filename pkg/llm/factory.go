package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Options selects and configures a provider.
type Options struct {
	Provider string // "anthropic" or "openai"
	Model    string
	Endpoint string // OpenAI-compatible base URL override
	APIKey   string
}

// NewClient builds the provider named in opts.
func NewClient(opts Options, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(opts.Provider) {
	case "anthropic":
		return NewAnthropicClient(opts.APIKey, opts.Model, logger), nil
	case "openai":
		return NewOpenAIClient(opts.APIKey, opts.Model, opts.Endpoint, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}
