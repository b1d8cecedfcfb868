package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureCatalog() *Catalog {
	mkTable := func(name, family string, cols ...string) *Table {
		t := &Table{Name: name, Family: family, Columns: make(map[string]*Column)}
		for _, c := range cols {
			t.Columns[c] = &Column{Name: c, IsPHI: IsPHIName(c)}
		}
		return t
	}
	cat := &Catalog{
		Tables: map[string]*Table{
			"OVST": mkTable("OVST", "ovst", "vn", "an", "hn", "vstdate", "cliniclct"),
			"PT":   mkTable("PT", "pt", "hn", "fname", "pttype"),
			"IPT":  mkTable("IPT", "ipt", "an", "hn", "ward"),
		},
		JoinEdges: []JoinEdge{
			{FromTable: "OVST", FromColumn: "hn", ToTable: "PT", ToColumn: "hn",
				Confidence: ConfidenceHigh, RelType: RelUniversal},
			{FromTable: "IPT", FromColumn: "hn", ToTable: "PT", ToColumn: "hn",
				Confidence: ConfidenceHigh, RelType: RelUniversal},
		},
	}
	rebuildFamilies(cat)
	return cat
}

func TestCatalogLookups(t *testing.T) {
	cat := fixtureCatalog()

	assert.True(t, cat.TableExists("ovst"))
	assert.True(t, cat.TableExists("OVST"))
	assert.False(t, cat.TableExists("nope"))

	assert.True(t, cat.ColumnExists("ovst", "VN"))
	assert.False(t, cat.ColumnExists("ovst", "nosuch"))
	assert.False(t, cat.ColumnExists("nope", "vn"))

	require.NotNil(t, cat.GetTable("pt"))
	assert.Nil(t, cat.GetTable("nope"))
	require.NotNil(t, cat.GetColumn("pt", "FNAME"))
	assert.Nil(t, cat.GetColumn("pt", "nosuch"))
}

func TestPHIClassification(t *testing.T) {
	cat := fixtureCatalog()

	assert.True(t, cat.IsPHIColumn("hn"))
	assert.True(t, cat.IsPHIColumn("FNAME"))
	assert.False(t, cat.IsPHIColumn("vstdate"))

	assert.Equal(t, []string{"fname", "hn"}, cat.PHIColumnsInTable("PT"))
	assert.Nil(t, cat.PHIColumnsInTable("nope"))
}

func TestTablesWithColumn(t *testing.T) {
	cat := fixtureCatalog()
	assert.Equal(t, []string{"IPT", "OVST", "PT"}, cat.TablesWithColumn("hn"))
	assert.Equal(t, []string{"IPT", "OVST"}, cat.TablesWithColumn("an"))
	assert.Empty(t, cat.TablesWithColumn("nosuch"))
}

func TestValidateSQLReferences(t *testing.T) {
	cat := fixtureCatalog()

	invalidTables, invalidColumns := cat.ValidateSQLReferences(
		[]string{"OVST", "GHOST"},
		map[string][]string{
			"OVST":  {"vn", "nosuch"},
			"GHOST": {"anything"}, // columns of unknown tables are not double-reported
		},
	)
	assert.Equal(t, []string{"GHOST"}, invalidTables)
	assert.Equal(t, []string{"OVST.nosuch"}, invalidColumns)

	invalidTables, invalidColumns = cat.ValidateSQLReferences(
		[]string{"ovst"}, map[string][]string{"ovst": {"vn"}})
	assert.Empty(t, invalidTables)
	assert.Empty(t, invalidColumns)
}

func TestKnowledgeRoundTrip(t *testing.T) {
	cat := fixtureCatalog()
	path := filepath.Join(t.TempDir(), "schema_knowledge.json")

	require.NoError(t, SaveKnowledge(cat, path))
	loaded, err := LoadKnowledge(path)
	require.NoError(t, err)

	assert.Equal(t, cat.Tables, loaded.Tables)
	assert.Equal(t, cat.JoinEdges, loaded.JoinEdges)
	assert.Equal(t, cat.Families, loaded.Families)
}

func TestPHINameSet(t *testing.T) {
	for _, name := range []string{"hn", "cid", "fname", "phone", "tambon", "dob", "ssn"} {
		assert.True(t, IsPHIName(name), name)
	}
	for _, name := range []string{"vn", "vstdate", "icd10", "pttype"} {
		assert.False(t, IsPHIName(name), name)
	}
	assert.True(t, IsUniversalKey("HN"))
	assert.True(t, IsUniversalKey("vn"))
	assert.False(t, IsUniversalKey("icd10"))
}
