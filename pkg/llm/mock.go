package llm

import (
	"context"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

// Mock implements Client with function fields for tests. Unset functions
// return zero values.
type Mock struct {
	GenerateSQLFunc  func(ctx context.Context, req GenerateRequest) (*models.QueryPlan, error)
	FormatAnswerFunc func(ctx context.Context, req FormatRequest) (string, error)

	GenerateCalls []GenerateRequest
	FormatCalls   []FormatRequest
}

func (m *Mock) GenerateSQL(ctx context.Context, req GenerateRequest) (*models.QueryPlan, error) {
	m.GenerateCalls = append(m.GenerateCalls, req)
	if m.GenerateSQLFunc != nil {
		return m.GenerateSQLFunc(ctx, req)
	}
	return &models.QueryPlan{NeedsClarification: true}, nil
}

func (m *Mock) FormatAnswer(ctx context.Context, req FormatRequest) (string, error) {
	m.FormatCalls = append(m.FormatCalls, req)
	if m.FormatAnswerFunc != nil {
		return m.FormatAnswerFunc(ctx, req)
	}
	return "", nil
}
