package logging

import "regexp"

var (
	dsnPasswordPattern = regexp.MustCompile(`(postgres(?:ql)?://[^:/@]+):[^@]+@`)
	kvPasswordPattern  = regexp.MustCompile(`(?i)(password|secret|api[_-]?key|token)=\S+`)
	quotedValuePattern = regexp.MustCompile(`'[^']*'`)
)

// SanitizeDSN masks the password of a connection string for logging.
func SanitizeDSN(dsn string) string {
	out := dsnPasswordPattern.ReplaceAllString(dsn, "$1:***@")
	return kvPasswordPattern.ReplaceAllString(out, "$1=***")
}

// SanitizeSQL prepares a SQL string for logging: string literals are masked
// (they may carry patient identifiers) and long statements are truncated.
func SanitizeSQL(sqlText string) string {
	const maxLen = 500
	out := quotedValuePattern.ReplaceAllString(sqlText, "'***'")
	if len(out) > maxLen {
		out = out[:maxLen] + "..."
	}
	return out
}
