package guard

import (
	"regexp"
	"strings"
)

// forbiddenKeywords are rejected as whole words anywhere outside string
// literals. The scan runs before the parser so stacked statements and
// session-state commands are caught even when a single-statement AST cannot
// model them.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "COPY", "VACUUM", "ANALYZE", "CALL", "DO", "MERGE",
	"EXECUTE", "PREPARE", "DEALLOCATE", "COMMIT", "ROLLBACK", "SAVEPOINT",
	"LOCK", "UNLOCK", "SET ROLE", "RESET", "DISCARD", "LOAD", "UNLOAD",
}

var keywordPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(forbiddenKeywords))
	for _, kw := range forbiddenKeywords {
		expr := strings.ReplaceAll(regexp.QuoteMeta(kw), ` `, `\s+`)
		out[kw] = regexp.MustCompile(`(?i)\b` + expr + `\b`)
	}
	return out
}()

// findForbiddenKeyword scans SQL with string literals already stripped and
// returns the first forbidden keyword present, in list order.
func findForbiddenKeyword(scrubbed string) (string, bool) {
	for _, kw := range forbiddenKeywords {
		if keywordPatterns[kw].MatchString(scrubbed) {
			return kw, true
		}
	}
	return "", false
}

// stripStringLiterals removes the contents of '…' and "…" literals so a
// keyword inside a literal (WHERE note LIKE '%DELETE%') cannot trip the
// filter. Escaped quotes inside literals are deliberately not modeled; the
// parse stage catches anything this mis-scans. The removed contents are
// returned for the secondary injection net.
func stripStringLiterals(sql string) (string, []string) {
	var (
		out      strings.Builder
		literal  strings.Builder
		literals []string
		inSingle bool
		inDouble bool
	)
	for _, r := range sql {
		switch {
		case inSingle:
			if r == '\'' {
				inSingle = false
				out.WriteRune(r)
				literals = append(literals, literal.String())
				literal.Reset()
			} else {
				literal.WriteRune(r)
			}
		case inDouble:
			if r == '"' {
				inDouble = false
				out.WriteRune(r)
				literals = append(literals, literal.String())
				literal.Reset()
			} else {
				literal.WriteRune(r)
			}
		case r == '\'':
			inSingle = true
			out.WriteRune(r)
		case r == '"':
			inDouble = true
			out.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}
	return out.String(), literals
}

// normalizeStatement trims whitespace and at most one trailing semicolon.
// Interior semicolons are left for the keyword and parse layers to reject.
func normalizeStatement(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
