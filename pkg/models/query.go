package models

// QueryResult is the outcome of executing a validated SELECT.
// Rows are positional tuples in the declared column order.
type QueryResult struct {
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	RowCount        int      `json:"row_count"`
	Truncated       bool     `json:"truncated"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
}

// SanityCheckResult is a single post-execution invariant check.
type SanityCheckResult struct {
	CheckName string `json:"check_name"`
	Passed    bool   `json:"passed"`
	Message   string `json:"message"`
}
