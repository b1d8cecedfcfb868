package models

// Confidence is the LLM's self-reported confidence in a generated plan.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// QueryPlan is the structured response the LLM must produce for a question.
// The orchestrator never parses SQL out of free-form text; a malformed plan
// collapses to NeedsClarification.
type QueryPlan struct {
	NeedsClarification    bool       `json:"needs_clarification"`
	ClarificationQuestion string     `json:"clarification_question,omitempty"`
	ClarifiedQuestion     string     `json:"clarified_question,omitempty"`
	Assumptions           []string   `json:"assumptions,omitempty"`
	ConceptsUsed          []string   `json:"concepts_used,omitempty"`
	SQL                   string     `json:"sql,omitempty"`
	ValidationChecks      []string   `json:"validation_checks,omitempty"`
	AnswerPlan            string     `json:"answer_plan,omitempty"`
	Confidence            Confidence `json:"confidence,omitempty"`
}
