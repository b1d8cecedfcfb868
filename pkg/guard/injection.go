package guard

import (
	"fmt"
	"strings"

	"github.com/corazawaf/libinjection-go"
)

// minLiteralLen skips literals too short to carry a meaningful injection
// fingerprint.
const minLiteralLen = 4

// literalInjectionWarnings runs the libinjection heuristics over string
// literal contents. The AST layers are the authority; these are warnings
// for observability only.
func literalInjectionWarnings(literals []string) []string {
	var out []string
	for _, lit := range literals {
		trimmed := strings.TrimSpace(lit)
		if len(trimmed) < minLiteralLen {
			continue
		}
		if isInjection, fingerprint := libinjection.IsSQLi(trimmed); isInjection {
			out = append(out, fmt.Sprintf(
				"string literal %q matches an injection pattern (fingerprint %s)",
				truncateLiteral(trimmed), fingerprint))
		}
	}
	return out
}

func truncateLiteral(s string) string {
	const max = 40
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
