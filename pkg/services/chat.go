// Package services drives the per-request pipeline: generate, validate,
// retry once, execute, sanity-check, format, redact.
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/concepts"
	"github.com/kcmh-data/sqlbot-engine/pkg/guard"
	"github.com/kcmh-data/sqlbot-engine/pkg/llm"
	"github.com/kcmh-data/sqlbot-engine/pkg/models"
	"github.com/kcmh-data/sqlbot-engine/pkg/prompts"
	"github.com/kcmh-data/sqlbot-engine/pkg/sanity"
	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
	"github.com/kcmh-data/sqlbot-engine/pkg/session"
)

const clarificationFallback = "Could you rephrase the question? I could not turn it into a query plan."

// QueryExecutor abstracts the guarded executor for tests.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, sqlText string) (*models.QueryResult, error)
}

// ChatOrchestrator owns one user question end to end. The retry budget is
// exactly one extra generation per request; later requests on the same
// session start fresh.
type ChatOrchestrator struct {
	catalog  *schema.Handle
	guard    *guard.Guard
	executor QueryExecutor
	llm      llm.Client
	sessions *session.Manager
	concepts *concepts.Library
	logger   *zap.Logger
}

// NewChatOrchestrator wires the pipeline.
func NewChatOrchestrator(
	catalog *schema.Handle,
	g *guard.Guard,
	executor QueryExecutor,
	client llm.Client,
	sessions *session.Manager,
	library *concepts.Library,
	logger *zap.Logger,
) *ChatOrchestrator {
	return &ChatOrchestrator{
		catalog:  catalog,
		guard:    g,
		executor: executor,
		llm:      client,
		sessions: sessions,
		concepts: library,
		logger:   logger.Named("chat"),
	}
}

// Chat answers one question. The returned response is already redacted for
// the caller's role.
func (o *ChatOrchestrator) Chat(ctx context.Context, user *models.UserInfo, req models.ChatRequest) *models.ChatResponse {
	sess := o.sessions.GetOrCreate(req.SessionID)
	history := historyMessages(o.sessions.History(sess.ID))
	o.sessions.Append(sess.ID, session.Message{Role: "user", Content: req.Message})

	cat, graph := o.catalog.Snapshot()
	genReq := llm.GenerateRequest{
		Question:        req.Message,
		SchemaContext:   prompts.SchemaContext(cat),
		ConceptsContext: prompts.ConceptsContext(o.concepts),
		History:         history,
	}

	plan, err := o.llm.GenerateSQL(ctx, genReq)
	if err != nil {
		o.logger.Warn("plan generation failed", zap.String("session_id", sess.ID), zap.Error(err))
		return o.respondClarification(sess.ID, user, clarificationFallback)
	}
	if plan.NeedsClarification {
		question := plan.ClarificationQuestion
		if question == "" {
			question = clarificationFallback
		}
		return o.respondClarification(sess.ID, user, question)
	}

	vr := o.guard.Validate(plan.SQL, cat, graph)
	if !vr.Valid {
		o.logger.Info("validation failed, retrying once",
			zap.String("session_id", sess.ID),
			zap.String("error_type", string(vr.ErrorType)))

		genReq.RetryContext = prompts.RetryContext(plan.SQL, vr.Error, cat, vr.TablesUsed)
		retryPlan, retryErr := o.llm.GenerateSQL(ctx, genReq)
		if retryErr != nil || retryPlan.NeedsClarification {
			return o.respondError(sess.ID, user, userFacingError(vr.ErrorType, vr.Error))
		}
		retryVR := o.guard.Validate(retryPlan.SQL, cat, graph)
		if !retryVR.Valid {
			o.logger.Warn("validation failed after retry",
				zap.String("session_id", sess.ID),
				zap.String("error_type", string(retryVR.ErrorType)))
			return o.respondError(sess.ID, user, userFacingError(retryVR.ErrorType, retryVR.Error))
		}
		plan, vr = retryPlan, retryVR
	}

	for _, w := range vr.JoinWarnings {
		o.logger.Info("join warning",
			zap.String("session_id", sess.ID),
			zap.String("from", w.From), zap.String("to", w.To),
			zap.String("message", w.Message))
	}

	result, err := o.executor.ExecuteQuery(ctx, plan.SQL)
	if err != nil {
		o.logger.Error("query execution failed", zap.String("session_id", sess.ID), zap.Error(err))
		resp := o.respondError(sess.ID, user, "the query failed to execute")
		if user.IsSuperUser() {
			resp.SQL = plan.SQL
			resp.Error = fmt.Sprintf("execution failed: %v", err)
		}
		return resp
	}

	checks := sanity.Run(result)

	answer, err := o.llm.FormatAnswer(ctx, llm.FormatRequest{
		Question:     req.Message,
		SQL:          plan.SQL,
		Result:       result,
		Assumptions:  plan.Assumptions,
		ConceptsUsed: plan.ConceptsUsed,
	})
	if err != nil || answer == "" {
		answer = fmt.Sprintf("The query returned %d rows.", result.RowCount)
	}

	assistantMsg := session.Message{Role: "assistant", Content: answer}
	if user.IsSuperUser() {
		assistantMsg.SQL = plan.SQL
	}
	o.sessions.Append(sess.ID, assistantMsg)

	resp := &models.ChatResponse{
		SessionID:    sess.ID,
		Answer:       answer,
		SQL:          plan.SQL,
		Assumptions:  plan.Assumptions,
		ConceptsUsed: plan.ConceptsUsed,
		Confidence:   plan.Confidence,
		SanityChecks: checks,
		QueryResult:  result,
	}
	return FilterForRole(resp, user.Role)
}

func (o *ChatOrchestrator) respondClarification(sessionID string, user *models.UserInfo, question string) *models.ChatResponse {
	o.sessions.Append(sessionID, session.Message{Role: "assistant", Content: question})
	return FilterForRole(&models.ChatResponse{
		SessionID:             sessionID,
		Answer:                question,
		NeedsClarification:    true,
		ClarificationQuestion: question,
	}, user.Role)
}

func (o *ChatOrchestrator) respondError(sessionID string, user *models.UserInfo, message string) *models.ChatResponse {
	o.sessions.Append(sessionID, session.Message{Role: "assistant", Content: message})
	return FilterForRole(&models.ChatResponse{
		SessionID: sessionID,
		Answer:    message,
		Error:     message,
	}, user.Role)
}

// userFacingError maps a guard rejection to the message shown to the
// caller. Forbidden statements stay generic; the keyword is logged, not
// echoed.
func userFacingError(t guard.ErrorType, detail string) string {
	switch t {
	case guard.ErrForbiddenKeyword, guard.ErrForbiddenStatement:
		return "the generated query was unsafe and was not executed"
	default:
		return fmt.Sprintf("couldn't generate a safe SQL query: %s", detail)
	}
}

func historyMessages(msgs []session.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
