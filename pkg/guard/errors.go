package guard

import "fmt"

// ErrorType classifies why a statement was rejected. Every failed check
// surfaces a distinct type; silent rejection is forbidden.
type ErrorType string

const (
	ErrForbiddenKeyword   ErrorType = "ForbiddenKeywordError"
	ErrForbiddenStatement ErrorType = "ForbiddenStatementError"
	ErrSQLParse           ErrorType = "SQLParseError"
	ErrSelectStar         ErrorType = "SelectStarError"
	ErrPHIExposure        ErrorType = "PHIExposureError"
	ErrUnknownTable       ErrorType = "UnknownTableError"
	ErrUnknownColumn      ErrorType = "UnknownColumnError"
	ErrMissingLimit       ErrorType = "MissingLimitError"
)

// ValidationError is the common supertype of all guard rejections.
type ValidationError struct {
	Type    ErrorType
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newError(t ErrorType, format string, args ...any) *ValidationError {
	return &ValidationError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// JoinWarning is a non-fatal observation about one equality join condition.
type JoinWarning struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Confidence string `json:"confidence,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationResult is the guard's verdict for one SQL string. It is a pure
// function of (sql, catalog, limits): validating twice yields equal results.
type ValidationResult struct {
	Valid           bool                `json:"valid"`
	ErrorType       ErrorType           `json:"error_type,omitempty"`
	Error           string              `json:"error,omitempty"`
	TablesUsed      []string            `json:"tables_used,omitempty"`
	ColumnsUsed     map[string][]string `json:"columns_used,omitempty"`
	AllColumns      map[string][]string `json:"all_columns,omitempty"`
	HasAggregation  bool                `json:"has_aggregation"`
	HasLimit        bool                `json:"has_limit"`
	LimitValue      int                 `json:"limit_value,omitempty"`
	PHIColumnsFound []string            `json:"phi_columns_found,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
	JoinWarnings    []JoinWarning       `json:"join_warnings,omitempty"`
}

func failed(err *ValidationError) *ValidationResult {
	return &ValidationResult{ErrorType: err.Type, Error: err.Message}
}
