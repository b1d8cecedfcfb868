package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripStringLiterals(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		want     string
		literals []string
	}{
		{
			name:     "single quotes",
			sql:      "SELECT vn FROM ovst WHERE note = 'DROP TABLE'",
			want:     "SELECT vn FROM ovst WHERE note = ''",
			literals: []string{"DROP TABLE"},
		},
		{
			name:     "double quotes",
			sql:      `SELECT "vn" FROM ovst`,
			want:     `SELECT "" FROM ovst`,
			literals: []string{"vn"},
		},
		{
			name:     "mixed quotes",
			sql:      `SELECT vn FROM ovst WHERE a = 'x' AND b = "y"`,
			want:     `SELECT vn FROM ovst WHERE a = '' AND b = ""`,
			literals: []string{"x", "y"},
		},
		{
			name: "no literals",
			sql:  "SELECT vn FROM ovst",
			want: "SELECT vn FROM ovst",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, literals := stripStringLiterals(tt.sql)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.literals, literals)
		})
	}
}

func TestFindForbiddenKeyword(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		keyword string
		found   bool
	}{
		{"plain select", "SELECT vn FROM ovst LIMIT 10", "", false},
		{"lowercase drop", "select 1; drop table ovst", "DROP", true},
		{"set role with extra spaces", "SET   ROLE admin", "SET ROLE", true},
		{"plain set is allowed at this layer", "SET search_path = public", "", false},
		{"word boundary respected", "SELECT updated_at FROM ovst LIMIT 10", "", false},
		{"delete as word", "DELETE FROM ovst", "DELETE", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw, found := findForbiddenKeyword(tt.sql)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.keyword, kw)
		})
	}
}

func TestNormalizeStatement(t *testing.T) {
	assert.Equal(t, "SELECT 1", normalizeStatement("  SELECT 1 ;  "))
	assert.Equal(t, "SELECT 1", normalizeStatement("SELECT 1"))
	// only one trailing semicolon is stripped; the rest stays visible to
	// the keyword and parse layers
	assert.Equal(t, "SELECT 1; SELECT 2", normalizeStatement("SELECT 1; SELECT 2;"))
}
