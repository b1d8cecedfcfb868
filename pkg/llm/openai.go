package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
	"github.com/kcmh-data/sqlbot-engine/pkg/prompts"
)

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint,
// which covers self-hosted gateways as well.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient builds a client. endpoint overrides the default base URL
// when non-empty.
func NewOpenAIClient(apiKey, model, endpoint string, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("llm"),
	}
}

// GenerateSQL asks for a structured query plan.
func (c *OpenAIClient) GenerateSQL(ctx context.Context, req GenerateRequest) (*models.QueryPlan, error) {
	user := prompts.GenerateUserPrompt(req.Question, req.SchemaContext, req.ConceptsContext, req.RetryContext)
	text, err := c.complete(ctx, prompts.GenerateSystemPrompt(), req.History, user)
	if err != nil {
		return nil, err
	}
	return ParsePlan(text)
}

// FormatAnswer turns an executed query into a plain-language answer.
func (c *OpenAIClient) FormatAnswer(ctx context.Context, req FormatRequest) (string, error) {
	user := prompts.FormatUserPrompt(req.Question, req.SQL, req.Result, req.Assumptions, req.ConceptsUsed)
	text, err := c.complete(ctx, prompts.FormatSystemPrompt(), nil, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *OpenAIClient) complete(ctx context.Context, system string, history []Message, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}
