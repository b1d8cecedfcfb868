package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/concepts"
	"github.com/kcmh-data/sqlbot-engine/pkg/guard"
	"github.com/kcmh-data/sqlbot-engine/pkg/llm"
	"github.com/kcmh-data/sqlbot-engine/pkg/models"
	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
	"github.com/kcmh-data/sqlbot-engine/pkg/session"
)

type mockExecutor struct {
	fn    func(ctx context.Context, sqlText string) (*models.QueryResult, error)
	calls []string
}

func (m *mockExecutor) ExecuteQuery(ctx context.Context, sqlText string) (*models.QueryResult, error) {
	m.calls = append(m.calls, sqlText)
	if m.fn != nil {
		return m.fn(ctx, sqlText)
	}
	return &models.QueryResult{Columns: []string{"count"}, Rows: [][]any{{int64(42)}}, RowCount: 1}, nil
}

func chatCatalog() *schema.Catalog {
	mkTable := func(name string, cols ...string) *schema.Table {
		t := &schema.Table{Name: name, Columns: make(map[string]*schema.Column)}
		for _, c := range cols {
			t.Columns[c] = &schema.Column{Name: c, IsPHI: schema.IsPHIName(c)}
		}
		return t
	}
	return &schema.Catalog{
		Tables: map[string]*schema.Table{
			"OVST": mkTable("OVST", "vn", "hn", "vstdate"),
			"PT":   mkTable("PT", "hn", "pttype"),
		},
		JoinEdges: []schema.JoinEdge{
			{FromTable: "OVST", FromColumn: "hn", ToTable: "PT", ToColumn: "hn",
				Confidence: schema.ConfidenceHigh, RelType: schema.RelUniversal},
		},
	}
}

func newTestOrchestrator(t *testing.T, client llm.Client, exec *mockExecutor) (*ChatOrchestrator, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(6, 0, zap.NewNop())
	orch := NewChatOrchestrator(
		schema.NewHandle(chatCatalog()),
		guard.New(2000, true, zap.NewNop()),
		exec,
		client,
		sessions,
		concepts.New(nil),
		zap.NewNop(),
	)
	return orch, sessions
}

func planWith(sql string) *models.QueryPlan {
	return &models.QueryPlan{SQL: sql, Confidence: models.ConfidenceHigh}
}

var superUser = &models.UserInfo{Email: "a@h.test", Role: models.RoleSuperUser}
var standardUser = &models.UserInfo{Email: "b@h.test", Role: models.RoleStandardUser}

func TestChatHappyPath(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return planWith("SELECT COUNT(*) FROM ovst"), nil
		},
		FormatAnswerFunc: func(ctx context.Context, req llm.FormatRequest) (string, error) {
			return "There were 42 visits.", nil
		},
	}
	exec := &mockExecutor{}
	orch, sessions := newTestOrchestrator(t, mock, exec)

	resp := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "how many visits?"})

	require.Empty(t, resp.Error)
	assert.Equal(t, "There were 42 visits.", resp.Answer)
	assert.Equal(t, "SELECT COUNT(*) FROM ovst", resp.SQL)
	require.NotNil(t, resp.QueryResult)
	assert.Equal(t, 1, resp.QueryResult.RowCount)
	assert.NotEmpty(t, resp.SanityChecks)
	assert.Len(t, mock.GenerateCalls, 1)
	assert.Len(t, exec.calls, 1)

	history := sessions.History(resp.SessionID)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "SELECT COUNT(*) FROM ovst", history[1].SQL)
}

func TestChatStandardUserIsRedacted(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return planWith("SELECT COUNT(*) FROM ovst"), nil
		},
		FormatAnswerFunc: func(ctx context.Context, req llm.FormatRequest) (string, error) {
			return "There were 42 visits.", nil
		},
	}
	orch, sessions := newTestOrchestrator(t, mock, &mockExecutor{})

	resp := orch.Chat(context.Background(), standardUser, models.ChatRequest{Message: "how many visits?"})

	assert.Equal(t, "There were 42 visits.", resp.Answer)
	assert.Empty(t, resp.SQL)
	assert.Nil(t, resp.QueryResult)
	assert.Nil(t, resp.SanityChecks)

	// the session message never records SQL for standard users
	history := sessions.History(resp.SessionID)
	require.Len(t, history, 2)
	assert.Empty(t, history[1].SQL)
}

func TestChatRetriesOnceOnValidationFailure(t *testing.T) {
	mock := &llm.Mock{}
	mock.GenerateSQLFunc = func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
		if len(mock.GenerateCalls) == 1 {
			return planWith("SELECT hn FROM ovst LIMIT 10"), nil // PHI, rejected
		}
		return planWith("SELECT COUNT(*) FROM ovst"), nil
	}
	mock.FormatAnswerFunc = func(ctx context.Context, req llm.FormatRequest) (string, error) {
		return "ok", nil
	}
	exec := &mockExecutor{}
	orch, _ := newTestOrchestrator(t, mock, exec)

	resp := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "list patients"})

	require.Empty(t, resp.Error)
	require.Len(t, mock.GenerateCalls, 2)
	assert.Empty(t, mock.GenerateCalls[0].RetryContext)
	assert.Contains(t, mock.GenerateCalls[1].RetryContext, "SELECT hn FROM ovst LIMIT 10")
	assert.Contains(t, mock.GenerateCalls[1].RetryContext, "PHI")
	// only the corrected SQL is executed
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "SELECT COUNT(*) FROM ovst", exec.calls[0])
}

func TestChatSecondFailureIsTerminal(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return planWith("SELECT hn FROM ovst LIMIT 10"), nil
		},
	}
	exec := &mockExecutor{}
	orch, _ := newTestOrchestrator(t, mock, exec)

	resp := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "list patients"})

	assert.NotEmpty(t, resp.Error)
	assert.Len(t, mock.GenerateCalls, 2)
	assert.Empty(t, exec.calls, "rejected SQL must never execute")
}

func TestChatUnsafeQueryStaysGeneric(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return planWith("DROP TABLE ovst"), nil
		},
	}
	orch, _ := newTestOrchestrator(t, mock, &mockExecutor{})

	resp := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "cleanup"})

	assert.NotEmpty(t, resp.Error)
	assert.NotContains(t, resp.Error, "DROP")
}

func TestChatMalformedPlanAsksForClarification(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return nil, llm.ErrMalformedPlan
		},
	}
	orch, _ := newTestOrchestrator(t, mock, &mockExecutor{})

	resp := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "???"})

	assert.True(t, resp.NeedsClarification)
	assert.NotEmpty(t, resp.ClarificationQuestion)
	assert.Empty(t, resp.Error)
}

func TestChatClarificationPassthrough(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return &models.QueryPlan{
				NeedsClarification:    true,
				ClarificationQuestion: "Which year do you mean?",
			}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, mock, &mockExecutor{})

	resp := orch.Chat(context.Background(), standardUser, models.ChatRequest{Message: "visits?"})

	assert.True(t, resp.NeedsClarification)
	assert.Equal(t, "Which year do you mean?", resp.ClarificationQuestion)
}

func TestChatExecutionErrorIsSurfaced(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return planWith("SELECT COUNT(*) FROM ovst"), nil
		},
	}
	exec := &mockExecutor{fn: func(ctx context.Context, sqlText string) (*models.QueryResult, error) {
		return nil, errors.New("canceling statement due to statement timeout")
	}}
	orch, _ := newTestOrchestrator(t, mock, exec)

	resp := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "how many visits?"})

	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, "SELECT COUNT(*) FROM ovst", resp.SQL, "super user sees the failing SQL")
	assert.Nil(t, resp.QueryResult)
	// execution errors are never retried
	assert.Len(t, mock.GenerateCalls, 1)
	assert.Len(t, exec.calls, 1)
}

func TestChatSessionContinuity(t *testing.T) {
	mock := &llm.Mock{
		GenerateSQLFunc: func(ctx context.Context, req llm.GenerateRequest) (*models.QueryPlan, error) {
			return planWith("SELECT COUNT(*) FROM ovst"), nil
		},
		FormatAnswerFunc: func(ctx context.Context, req llm.FormatRequest) (string, error) {
			return "answer", nil
		},
	}
	orch, _ := newTestOrchestrator(t, mock, &mockExecutor{})

	first := orch.Chat(context.Background(), superUser, models.ChatRequest{Message: "q1"})
	second := orch.Chat(context.Background(), superUser, models.ChatRequest{
		Message: "q2", SessionID: first.SessionID,
	})

	assert.Equal(t, first.SessionID, second.SessionID)
	// the second request sees the first exchange as history
	require.Len(t, mock.GenerateCalls, 2)
	assert.Empty(t, mock.GenerateCalls[0].History)
	assert.Len(t, mock.GenerateCalls[1].History, 2)
}
