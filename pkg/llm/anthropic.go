package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
	"github.com/kcmh-data/sqlbot-engine/pkg/prompts"
)

const anthropicMaxTokens = 4096

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient builds a client for the given model.
func NewAnthropicClient(apiKey, model string, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  model,
		logger: logger.Named("llm"),
	}
}

// GenerateSQL asks for a structured query plan.
func (c *AnthropicClient) GenerateSQL(ctx context.Context, req GenerateRequest) (*models.QueryPlan, error) {
	user := prompts.GenerateUserPrompt(req.Question, req.SchemaContext, req.ConceptsContext, req.RetryContext)
	text, err := c.complete(ctx, prompts.GenerateSystemPrompt(), req.History, user)
	if err != nil {
		return nil, err
	}
	return ParsePlan(text)
}

// FormatAnswer turns an executed query into a plain-language answer.
func (c *AnthropicClient) FormatAnswer(ctx context.Context, req FormatRequest) (string, error) {
	user := prompts.FormatUserPrompt(req.Question, req.SQL, req.Result, req.Assumptions, req.ConceptsUsed)
	text, err := c.complete(ctx, prompts.FormatSystemPrompt(), nil, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *AnthropicClient) complete(ctx context.Context, system string, history []Message, user string) (string, error) {
	messages := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		role := anthropic.RoleUser
		if m.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		content := m.Content
		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{{Type: anthropic.MessagesContentTypeText, Text: &content}},
		})
	}
	prompt := user
	messages = append(messages, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.MessageContent{{Type: anthropic.MessagesContentTypeText, Text: &prompt}},
	})

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	c.logger.Debug("anthropic completion",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_chars", b.Len()))
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic request: empty response")
	}
	return b.String(), nil
}
