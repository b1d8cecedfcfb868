package concepts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fixtureYAML = `concepts:
  - name: diabetes
    description: Patients with a diabetes diagnosis
    condition: "icd10 LIKE 'E1%'"
    icd10: ["E10", "E11"]
    tables: ["OVSTDIAG"]
  - name: hypertension
    description: Patients with a hypertension diagnosis
    icd10: ["I10"]
  - name: cbc panel
    description: Complete blood count lab bundle
    tests: ["WBC", "RBC", "HGB"]
    bundle_logic: same_order
`

func loadFixture(t *testing.T) *Library {
	t.Helper()
	path := filepath.Join(t.TempDir(), "concepts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))
	lib, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	return lib
}

func TestLoad(t *testing.T) {
	lib := loadFixture(t)
	assert.Equal(t, 3, lib.Len())

	c, ok := lib.Get("Diabetes")
	require.True(t, ok)
	assert.Equal(t, "icd10 LIKE 'E1%'", c.Condition)
	assert.Equal(t, []string{"E10", "E11"}, c.ICD10)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	require.Error(t, err)
}

func TestByNames(t *testing.T) {
	lib := loadFixture(t)
	got := lib.ByNames([]string{"diabetes", "unknown", "CBC Panel"})
	require.Len(t, got, 2)
	assert.Equal(t, "diabetes", got[0].Name)
	assert.Equal(t, "cbc panel", got[1].Name)
}

func TestSearch(t *testing.T) {
	lib := loadFixture(t)
	assert.Len(t, lib.Search("diagnosis"), 2)
	assert.Len(t, lib.Search("blood"), 1)
	assert.Empty(t, lib.Search("xyz"))
	assert.Empty(t, lib.Search("  "))
}

func TestAllIsSorted(t *testing.T) {
	lib := loadFixture(t)
	all := lib.All()
	require.Len(t, all, 3)
	assert.Equal(t, "cbc panel", all[0].Name)
	assert.Equal(t, "diabetes", all[1].Name)
	assert.Equal(t, "hypertension", all[2].Name)
}
