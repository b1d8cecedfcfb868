package models

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the body returned by POST /api/chat.
// SQL, QueryResult and SanityChecks are stripped for non-privileged callers
// by the role filter before the response leaves the handler.
type ChatResponse struct {
	SessionID             string              `json:"session_id"`
	Answer                string              `json:"answer"`
	SQL                   string              `json:"sql,omitempty"`
	Assumptions           []string            `json:"assumptions,omitempty"`
	ConceptsUsed          []string            `json:"concepts_used,omitempty"`
	Confidence            Confidence          `json:"confidence,omitempty"`
	SanityChecks          []SanityCheckResult `json:"sanity_checks,omitempty"`
	QueryResult           *QueryResult        `json:"query_result,omitempty"`
	Error                 string              `json:"error,omitempty"`
	NeedsClarification    bool                `json:"needs_clarification"`
	ClarificationQuestion string              `json:"clarification_question,omitempty"`
}
