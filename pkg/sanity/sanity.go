// Package sanity runs post-execution invariant checks on query results.
// Failures annotate the response; they never suppress it.
package sanity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

// Check names as they appear in responses.
const (
	CheckNonEmpty        = "non_empty"
	CheckDenominatorSign = "denominator_sign"
	CheckPercentRange    = "percent_range"
)

// Run applies every applicable check to the result.
func Run(result *models.QueryResult) []models.SanityCheckResult {
	checks := []models.SanityCheckResult{nonEmpty(result)}
	if c, applies := denominatorSign(result); applies {
		checks = append(checks, c)
	}
	checks = append(checks, percentRange(result)...)
	return checks
}

func nonEmpty(result *models.QueryResult) models.SanityCheckResult {
	if result.RowCount == 0 {
		return models.SanityCheckResult{
			CheckName: CheckNonEmpty,
			Message:   "query returned no rows - the filters may be too narrow",
		}
	}
	return models.SanityCheckResult{
		CheckName: CheckNonEmpty,
		Passed:    true,
		Message:   fmt.Sprintf("query returned %d rows", result.RowCount),
	}
}

// denominatorSign applies when a column named exactly "count" exists
// (case-insensitive). Non-null values must be positive.
func denominatorSign(result *models.QueryResult) (models.SanityCheckResult, bool) {
	idx := -1
	for i, name := range result.Columns {
		if strings.EqualFold(name, "count") {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.SanityCheckResult{}, false
	}
	for _, row := range result.Rows {
		v, ok := numericValue(row, idx)
		if !ok {
			continue
		}
		if v <= 0 {
			return models.SanityCheckResult{
				CheckName: CheckDenominatorSign,
				Message:   fmt.Sprintf("column %q has a non-positive value (%v)", result.Columns[idx], v),
			}, true
		}
	}
	return models.SanityCheckResult{
		CheckName: CheckDenominatorSign,
		Passed:    true,
		Message:   "all count values are positive",
	}, true
}

// percentRange applies per column whose name contains "percent"
// (case-insensitive substring). Non-null values must lie in [0, 100].
func percentRange(result *models.QueryResult) []models.SanityCheckResult {
	var checks []models.SanityCheckResult
	for i, name := range result.Columns {
		if !strings.Contains(strings.ToLower(name), "percent") {
			continue
		}
		check := models.SanityCheckResult{
			CheckName: CheckPercentRange,
			Passed:    true,
			Message:   fmt.Sprintf("column %q is within [0, 100]", name),
		}
		for _, row := range result.Rows {
			v, ok := numericValue(row, i)
			if !ok {
				continue
			}
			if v < 0 || v > 100 {
				check.Passed = false
				check.Message = fmt.Sprintf("column %q has a value outside [0, 100]: %v", name, v)
				break
			}
		}
		checks = append(checks, check)
	}
	return checks
}

// numericValue extracts a float from a result cell. Nulls and non-numeric
// values do not participate in the checks.
func numericValue(row []any, idx int) (float64, bool) {
	if idx >= len(row) || row[idx] == nil {
		return 0, false
	}
	switch v := row[idx].(type) {
	case int:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
