// Package prompts assembles the text sent to the LLM: the planning system
// prompt, the schema and concept context blocks, and the retry context built
// after a validation failure.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

// maxResultRowsInPrompt caps how many result rows are echoed back to the LLM
// when formatting an answer.
const maxResultRowsInPrompt = 50

// GenerateSystemPrompt instructs the model to emit a single JSON plan and
// states the safety rules the guard will enforce anyway.
func GenerateSystemPrompt() string {
	return `You are a SQL analyst for a hospital information system on PostgreSQL.
Answer every request with a single JSON object and nothing else, using exactly
these fields:

{
  "needs_clarification": boolean,
  "clarification_question": string,
  "clarified_question": string,
  "assumptions": [string],
  "concepts_used": [string],
  "sql": string,
  "validation_checks": [string],
  "answer_plan": string,
  "confidence": "high" | "medium" | "low"
}

Rules the validator will enforce:
- SELECT statements only. Never modify data or session state.
- Never use SELECT *; list the columns you need.
- Never put patient-identifying columns (hn, names, addresses, phone numbers,
  birth dates, id numbers) in the SELECT list. Counting or grouping by them
  is fine; exposing their values is not.
- Non-aggregate queries must end with an explicit LIMIT.
- Use only the tables and columns in the schema context.
- Prefer the join patterns listed in the schema context.

If the question is ambiguous or needs information you do not have, set
needs_clarification to true and ask one precise question.`
}

// GenerateUserPrompt combines the question with its context blocks.
// retryContext is empty on the first attempt.
func GenerateUserPrompt(question, schemaContext, conceptsContext, retryContext string) string {
	var b strings.Builder
	b.WriteString("## Schema\n\n")
	b.WriteString(schemaContext)
	if conceptsContext != "" {
		b.WriteString("\n\n## Clinical concepts\n\n")
		b.WriteString(conceptsContext)
	}
	if retryContext != "" {
		b.WriteString("\n\n## Previous attempt failed\n\n")
		b.WriteString(retryContext)
	}
	b.WriteString("\n\n## Question\n\n")
	b.WriteString(question)
	return b.String()
}

// FormatSystemPrompt instructs the model to turn a query result into a short
// plain-language answer.
func FormatSystemPrompt() string {
	return `You summarize SQL query results for hospital analysts. Answer the
question directly in plain language, citing the numbers from the result.
State the assumptions that were made. Do not invent values that are not in
the result. Do not mention SQL unless the result is empty or surprising.`
}

// FormatUserPrompt packages the question, the executed SQL and its result
// for answer formatting. Rows beyond the cap are summarized, not included.
func FormatUserPrompt(question, sqlText string, result *models.QueryResult, assumptions, conceptsUsed []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "SQL executed:\n%s\n\n", sqlText)

	if result != nil {
		rows := result.Rows
		omitted := 0
		if len(rows) > maxResultRowsInPrompt {
			omitted = len(rows) - maxResultRowsInPrompt
			rows = rows[:maxResultRowsInPrompt]
		}
		payload, _ := json.Marshal(map[string]any{
			"columns":   result.Columns,
			"rows":      rows,
			"row_count": result.RowCount,
			"truncated": result.Truncated,
		})
		fmt.Fprintf(&b, "Result:\n%s\n", payload)
		if omitted > 0 {
			fmt.Fprintf(&b, "(%d more rows omitted)\n", omitted)
		}
		b.WriteString("\n")
	}

	if len(assumptions) > 0 {
		fmt.Fprintf(&b, "Assumptions: %s\n", strings.Join(assumptions, "; "))
	}
	if len(conceptsUsed) > 0 {
		fmt.Fprintf(&b, "Concepts used: %s\n", strings.Join(conceptsUsed, ", "))
	}
	return b.String()
}
