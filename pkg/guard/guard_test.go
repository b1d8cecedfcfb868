package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
)

func testCatalog() *schema.Catalog {
	mkTable := func(name string, cols ...string) *schema.Table {
		t := &schema.Table{Name: name, Columns: make(map[string]*schema.Column)}
		for _, c := range cols {
			t.Columns[c] = &schema.Column{Name: c, IsPHI: schema.IsPHIName(c)}
		}
		return t
	}
	return &schema.Catalog{
		Tables: map[string]*schema.Table{
			"OVST":     mkTable("OVST", "vn", "an", "hn", "vstdate", "cliniclct", "note"),
			"PT":       mkTable("PT", "hn", "fname", "pttype"),
			"OVSTDIAG": mkTable("OVSTDIAG", "vn", "hn", "icd10"),
		},
		JoinEdges: []schema.JoinEdge{
			{FromTable: "OVST", FromColumn: "hn", ToTable: "PT", ToColumn: "hn",
				Confidence: schema.ConfidenceHigh, RelType: schema.RelUniversal},
			{FromTable: "OVST", FromColumn: "vn", ToTable: "OVSTDIAG", ToColumn: "vn",
				Confidence: schema.ConfidenceHigh, RelType: schema.RelUniversal},
		},
	}
}

func newTestGuard(strict bool) (*Guard, *schema.Catalog, *schema.JoinGraph) {
	cat := testCatalog()
	return New(2000, strict, nil), cat, schema.NewJoinGraph(cat)
}

func TestValidateRejections(t *testing.T) {
	g, cat, graph := newTestGuard(true)

	tests := []struct {
		name      string
		sql       string
		errorType ErrorType
		contains  string
	}{
		{
			name:      "phi column in projection",
			sql:       "SELECT hn, COUNT(*) FROM ovst GROUP BY hn LIMIT 10",
			errorType: ErrPHIExposure,
			contains:  "hn",
		},
		{
			name:      "select star",
			sql:       "SELECT * FROM ovst LIMIT 10",
			errorType: ErrSelectStar,
		},
		{
			name:      "qualified select star",
			sql:       "SELECT o.* FROM ovst o LIMIT 10",
			errorType: ErrSelectStar,
			contains:  "OVST.*",
		},
		{
			name:      "missing limit",
			sql:       "SELECT vn, vstdate FROM ovst",
			errorType: ErrMissingLimit,
		},
		{
			name:      "limit exceeds max",
			sql:       "SELECT vn FROM ovst LIMIT 5000",
			errorType: ErrMissingLimit,
			contains:  "5000",
		},
		{
			name:      "stacked statement",
			sql:       "SELECT COUNT(*) FROM ovst; DROP TABLE ovst",
			errorType: ErrForbiddenKeyword,
			contains:  "DROP",
		},
		{
			name:      "update statement",
			sql:       "UPDATE ovst SET vstdate = now()",
			errorType: ErrForbiddenKeyword,
			contains:  "UPDATE",
		},
		{
			name:      "set role",
			sql:       "SET ROLE admin",
			errorType: ErrForbiddenKeyword,
			contains:  "SET ROLE",
		},
		{
			name:      "explain statement",
			sql:       "EXPLAIN SELECT vn FROM ovst LIMIT 10",
			errorType: ErrForbiddenStatement,
		},
		{
			name:      "garbage",
			sql:       "SELECT FROM WHERE",
			errorType: ErrSQLParse,
		},
		{
			name:      "unknown table",
			sql:       "SELECT something FROM no_such_table LIMIT 10",
			errorType: ErrUnknownTable,
			contains:  "NO_SUCH_TABLE",
		},
		{
			name:      "unknown column",
			sql:       "SELECT o.nosuch FROM ovst o LIMIT 10",
			errorType: ErrUnknownColumn,
			contains:  "OVST.nosuch",
		},
		{
			name:      "select into creates a table",
			sql:       "SELECT vn INTO backup_tbl FROM ovst LIMIT 10",
			errorType: ErrForbiddenStatement,
			contains:  "SELECT INTO",
		},
		{
			name:      "phi inside case expression",
			sql:       "SELECT CASE WHEN vn > 0 THEN hn ELSE 'X' END FROM ovst LIMIT 10",
			errorType: ErrPHIExposure,
			contains:  "hn",
		},
		{
			name:      "phi inside coalesce",
			sql:       "SELECT COALESCE(fname, 'unknown') FROM pt LIMIT 10",
			errorType: ErrPHIExposure,
			contains:  "fname",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Validate(tt.sql, cat, graph)
			require.False(t, res.Valid)
			assert.Equal(t, tt.errorType, res.ErrorType)
			if tt.contains != "" {
				assert.Contains(t, res.Error, tt.contains)
			}
		})
	}
}

// Failure results keep the tables the SQL mentioned so the retry prompt can
// enumerate their real columns.
func TestFailedValidationKeepsTables(t *testing.T) {
	g, cat, graph := newTestGuard(true)

	tests := []struct {
		name      string
		sql       string
		errorType ErrorType
		tables    []string
	}{
		{
			name:      "unknown column",
			sql:       "SELECT o.nosuch FROM ovst o LIMIT 10",
			errorType: ErrUnknownColumn,
			tables:    []string{"OVST"},
		},
		{
			name:      "unknown table",
			sql:       "SELECT vn FROM ovst JOIN no_such_table USING (vn) LIMIT 10",
			errorType: ErrUnknownTable,
			tables:    []string{"NO_SUCH_TABLE", "OVST"},
		},
		{
			name:      "phi exposure",
			sql:       "SELECT hn FROM ovst LIMIT 10",
			errorType: ErrPHIExposure,
			tables:    []string{"OVST"},
		},
		{
			name:      "missing limit",
			sql:       "SELECT vn, vstdate FROM ovst",
			errorType: ErrMissingLimit,
			tables:    []string{"OVST"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Validate(tt.sql, cat, graph)
			require.False(t, res.Valid)
			require.Equal(t, tt.errorType, res.ErrorType)
			assert.Equal(t, tt.tables, res.TablesUsed)
		})
	}
}

func TestValidateAccepted(t *testing.T) {
	g, cat, graph := newTestGuard(true)

	t.Run("aggregate with phi join key", func(t *testing.T) {
		res := g.Validate("SELECT COUNT(*) FROM ovst o JOIN pt p ON o.hn = p.hn", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.True(t, res.HasAggregation)
		assert.Empty(t, res.PHIColumnsFound)
		assert.ElementsMatch(t, []string{"OVST", "PT"}, res.TablesUsed)
	})

	t.Run("count distinct phi not exposed", func(t *testing.T) {
		res := g.Validate("SELECT COUNT(DISTINCT hn) AS n FROM ovst", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.True(t, res.HasAggregation)
	})

	t.Run("limit satisfies rule", func(t *testing.T) {
		res := g.Validate("SELECT vn, vstdate FROM ovst LIMIT 100", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.True(t, res.HasLimit)
		assert.Equal(t, 100, res.LimitValue)
		assert.False(t, res.HasAggregation)
	})

	t.Run("alias resolution", func(t *testing.T) {
		res := g.Validate("SELECT o.vn, o.vstdate FROM ovst o WHERE o.cliniclct = 1 ORDER BY o.vstdate LIMIT 10", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.Subset(t, res.AllColumns["OVST"], []string{"vn", "vstdate", "cliniclct"})
		assert.ElementsMatch(t, []string{"OVST"}, res.TablesUsed)
	})

	t.Run("forbidden word inside string literal", func(t *testing.T) {
		res := g.Validate("SELECT vn FROM ovst WHERE note LIKE '%DELETE%' LIMIT 10", cat, graph)
		require.True(t, res.Valid, res.Error)
	})

	t.Run("union of selects", func(t *testing.T) {
		res := g.Validate("SELECT vn FROM ovst UNION SELECT vn FROM ovstdiag LIMIT 10", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.ElementsMatch(t, []string{"OVST", "OVSTDIAG"}, res.TablesUsed)
	})

	t.Run("cte name is not a catalog table", func(t *testing.T) {
		res := g.Validate("WITH visits AS (SELECT vn FROM ovst LIMIT 100) SELECT vn FROM visits LIMIT 10", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.NotContains(t, res.TablesUsed, "VISITS")
	})

	t.Run("trailing semicolon tolerated", func(t *testing.T) {
		res := g.Validate("SELECT vn FROM ovst LIMIT 10;", cat, graph)
		require.True(t, res.Valid, res.Error)
	})

	t.Run("group by makes aggregate without function", func(t *testing.T) {
		res := g.Validate("SELECT vstdate FROM ovst GROUP BY vstdate", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.True(t, res.HasAggregation)
	})

	t.Run("distinct makes aggregate", func(t *testing.T) {
		res := g.Validate("SELECT DISTINCT vstdate FROM ovst", cat, graph)
		require.True(t, res.Valid, res.Error)
		assert.True(t, res.HasAggregation)
	})
}

func TestValidateNonStrictDowngradesUnknowns(t *testing.T) {
	g, cat, graph := newTestGuard(false)

	res := g.Validate("SELECT o.nosuch FROM ovst o LIMIT 10", cat, graph)
	require.True(t, res.Valid, res.Error)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "nosuch")
}

func TestValidateJoinWarnings(t *testing.T) {
	g, cat, graph := newTestGuard(true)

	t.Run("known high confidence join is silent", func(t *testing.T) {
		res := g.Validate("SELECT COUNT(*) FROM ovst o JOIN pt p ON o.hn = p.hn", cat, graph)
		require.True(t, res.Valid)
		assert.Empty(t, res.JoinWarnings)
	})

	t.Run("same name join not in schema warns", func(t *testing.T) {
		res := g.Validate("SELECT COUNT(*) FROM pt p JOIN ovstdiag d ON p.hn = d.hn", cat, graph)
		require.True(t, res.Valid)
		require.Len(t, res.JoinWarnings, 1)
		assert.Equal(t, "PT.hn", res.JoinWarnings[0].From)
		assert.Equal(t, schema.ConfidenceHeuristic, res.JoinWarnings[0].Confidence)
		assert.Contains(t, res.JoinWarnings[0].Message, "not in schema")
	})

	t.Run("where clause equality through and", func(t *testing.T) {
		res := g.Validate("SELECT COUNT(*) FROM ovst o, pt p WHERE o.hn = p.hn AND o.cliniclct = 1", cat, graph)
		require.True(t, res.Valid)
		assert.Empty(t, res.JoinWarnings)
	})

	t.Run("duplicate conditions coalesce", func(t *testing.T) {
		res := g.Validate("SELECT COUNT(*) FROM pt p JOIN ovstdiag d ON p.hn = d.hn WHERE p.hn = d.hn", cat, graph)
		require.True(t, res.Valid)
		assert.Len(t, res.JoinWarnings, 1)
	})
}

func TestValidateIsDeterministic(t *testing.T) {
	g, cat, graph := newTestGuard(true)

	for _, sql := range []string{
		"SELECT vn, vstdate FROM ovst LIMIT 100",
		"SELECT hn FROM ovst LIMIT 10",
		"SELECT COUNT(*) FROM ovst o JOIN pt p ON o.hn = p.hn",
	} {
		first := g.Validate(sql, cat, graph)
		second := g.Validate(sql, cat, graph)
		assert.Equal(t, first, second, sql)
	}
}

func TestValidateWithoutCatalog(t *testing.T) {
	g := New(2000, true, nil)

	// The name-set PHI rule holds even with no catalog at all.
	res := g.Validate("SELECT hn FROM ovst LIMIT 10", nil, nil)
	require.False(t, res.Valid)
	assert.Equal(t, ErrPHIExposure, res.ErrorType)

	res = g.Validate("SELECT vn FROM anything LIMIT 10", nil, nil)
	require.True(t, res.Valid, res.Error)
}
