package sanity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

func result(columns []string, rows [][]any) *models.QueryResult {
	return &models.QueryResult{Columns: columns, Rows: rows, RowCount: len(rows)}
}

func byName(checks []models.SanityCheckResult, name string) (models.SanityCheckResult, bool) {
	for _, c := range checks {
		if c.CheckName == name {
			return c, true
		}
	}
	return models.SanityCheckResult{}, false
}

func TestNonEmptyCheck(t *testing.T) {
	checks := Run(result([]string{"vn"}, [][]any{{"1"}}))
	c, ok := byName(checks, CheckNonEmpty)
	require.True(t, ok)
	assert.True(t, c.Passed)

	checks = Run(result([]string{"vn"}, nil))
	c, _ = byName(checks, CheckNonEmpty)
	assert.False(t, c.Passed)
}

func TestDenominatorSignCheck(t *testing.T) {
	t.Run("applies only when a count column exists", func(t *testing.T) {
		checks := Run(result([]string{"vn", "total"}, [][]any{{"1", int64(-3)}}))
		_, ok := byName(checks, CheckDenominatorSign)
		assert.False(t, ok)
	})

	t.Run("case insensitive exact name", func(t *testing.T) {
		checks := Run(result([]string{"Count"}, [][]any{{int64(5)}}))
		c, ok := byName(checks, CheckDenominatorSign)
		require.True(t, ok)
		assert.True(t, c.Passed)
	})

	t.Run("non-positive value fails", func(t *testing.T) {
		checks := Run(result([]string{"count"}, [][]any{{int64(3)}, {int64(0)}}))
		c, ok := byName(checks, CheckDenominatorSign)
		require.True(t, ok)
		assert.False(t, c.Passed)
	})

	t.Run("nulls do not participate", func(t *testing.T) {
		checks := Run(result([]string{"count"}, [][]any{{nil}, {int64(2)}}))
		c, ok := byName(checks, CheckDenominatorSign)
		require.True(t, ok)
		assert.True(t, c.Passed)
	})
}

func TestPercentRangeCheck(t *testing.T) {
	t.Run("substring match applies", func(t *testing.T) {
		checks := Run(result([]string{"admit_percentage"}, [][]any{{float64(42.5)}}))
		c, ok := byName(checks, CheckPercentRange)
		require.True(t, ok)
		assert.True(t, c.Passed)
	})

	t.Run("out of range fails", func(t *testing.T) {
		checks := Run(result([]string{"percent"}, [][]any{{float64(101)}}))
		c, ok := byName(checks, CheckPercentRange)
		require.True(t, ok)
		assert.False(t, c.Passed)

		checks = Run(result([]string{"percent"}, [][]any{{float64(-0.5)}}))
		c, _ = byName(checks, CheckPercentRange)
		assert.False(t, c.Passed)
	})

	t.Run("string numerics are read", func(t *testing.T) {
		checks := Run(result([]string{"percent"}, [][]any{{"99.9"}}))
		c, ok := byName(checks, CheckPercentRange)
		require.True(t, ok)
		assert.True(t, c.Passed)
	})

	t.Run("one check per percent column", func(t *testing.T) {
		checks := Run(result([]string{"percent_a", "percent_b"}, [][]any{{float64(10), float64(200)}}))
		count := 0
		for _, c := range checks {
			if c.CheckName == CheckPercentRange {
				count++
			}
		}
		assert.Equal(t, 2, count)
	})
}

func TestFailuresAnnotateOnly(t *testing.T) {
	// An empty result with a bad percent column yields multiple failed
	// checks but Run never errors or filters the result.
	checks := Run(result([]string{"percent"}, nil))
	require.NotEmpty(t, checks)
	c, _ := byName(checks, CheckNonEmpty)
	assert.False(t, c.Passed)
}
