package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSON pulls the first balanced JSON object out of model output,
// tolerating reasoning tags, markdown fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	text = thinkTagPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if fenced := stripCodeFence(text); fenced != "" {
		text = fenced
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

func stripCodeFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	return ""
}

// ParsePlan decodes model output into a QueryPlan. Any failure wraps
// ErrMalformedPlan; a plan that neither asks for clarification nor carries
// SQL is also malformed.
func ParsePlan(text string) (*models.QueryPlan, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	var plan models.QueryPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if !plan.NeedsClarification && strings.TrimSpace(plan.SQL) == "" {
		return nil, fmt.Errorf("%w: plan has neither sql nor a clarification request", ErrMalformedPlan)
	}
	switch plan.Confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow, "":
	default:
		plan.Confidence = models.ConfidenceLow
	}
	return &plan, nil
}
