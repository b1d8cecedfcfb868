// Package llm abstracts the language-model providers behind a two-call
// interface: plan generation and answer formatting. The model's output is
// untrusted; callers parse it into a fixed shape and validate everything.
package llm

import (
	"context"
	"errors"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

// ErrMalformedPlan reports a model response that could not be parsed into a
// query plan. The orchestrator turns it into a clarification request.
var ErrMalformedPlan = errors.New("malformed query plan")

// Message is one turn of conversation history passed back to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// GenerateRequest carries everything needed to ask for a query plan.
// RetryContext is empty on the first attempt.
type GenerateRequest struct {
	Question        string
	SchemaContext   string
	ConceptsContext string
	RetryContext    string
	History         []Message
}

// FormatRequest carries an executed query for answer formatting.
type FormatRequest struct {
	Question     string
	SQL          string
	Result       *models.QueryResult
	Assumptions  []string
	ConceptsUsed []string
}

// Client is the provider-independent surface the orchestrator uses.
type Client interface {
	GenerateSQL(ctx context.Context, req GenerateRequest) (*models.QueryPlan, error)
	FormatAnswer(ctx context.Context, req FormatRequest) (string, error)
}
